// Package mongostore keeps food scans and goals in MongoDB. It serves the
// same operations as the SQLite store and is selected with -backend=mongo.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/prehrana/internal/model"
)

const (
	scansCollection = "food_scans"
	goalsCollection = "goals"
)

// ConnectTimeout bounds the initial connect and ping.
const ConnectTimeout = 10 * time.Second

// Store is a MongoDB-backed scan and goal store.
type Store struct {
	client *mongo.Client
	scans  *mongo.Collection
	goals  *mongo.Collection

	// Now is the server clock. Defaults to time.Now.
	Now func() time.Time
}

// Connect dials uri, pings the server and returns a store on database dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return New(client.Database(dbName)), nil
}

// New returns a store on an already connected database.
func New(database *mongo.Database) *Store {
	return &Store{
		client: database.Client(),
		scans:  database.Collection(scansCollection),
		goals:  database.Collection(goalsCollection),
		Now:    time.Now,
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the lookup indexes. Safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.scans.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating scan indexes: %w", err)
	}

	_, err = s.goals.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}, {Key: "period", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating goal indexes: %w", err)
	}
	return nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// CreateFoodScan stores a scan with a server-assigned timestamp and returns its ID.
func (s *Store) CreateFoodScan(ctx context.Context, userID, imageURL string, items []model.FoodItem, totalCalories float64) (string, error) {
	if items == nil {
		items = []model.FoodItem{}
	}
	scan := model.FoodScan{
		ID:            uuid.NewString(),
		UserID:        userID,
		ImageURL:      imageURL,
		FoodItems:     items,
		TotalCalories: totalCalories,
		Timestamp:     s.now().UnixMilli(),
	}
	if _, err := s.scans.InsertOne(ctx, scan); err != nil {
		return "", fmt.Errorf("creating food scan: %w", err)
	}
	return scan.ID, nil
}

// GetFoodScan returns a scan by ID, or nil if it does not exist.
func (s *Store) GetFoodScan(ctx context.Context, id string) (*model.FoodScan, error) {
	var scan model.FoodScan
	err := s.scans.FindOne(ctx, bson.M{"_id": id}).Decode(&scan)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting food scan: %w", err)
	}
	return &scan, nil
}

// ListFoodScans returns all scans for a user, most recent first.
func (s *Store) ListFoodScans(ctx context.Context, userID string) ([]model.FoodScan, error) {
	return s.findScans(ctx, bson.M{"user_id": userID})
}

// ListRecentFoodScans returns a user's scans with timestamp >= now-window,
// most recent first.
func (s *Store) ListRecentFoodScans(ctx context.Context, userID string, window time.Duration) ([]model.FoodScan, error) {
	since := s.now().Add(-window).UnixMilli()
	return s.findScans(ctx, bson.M{
		"user_id":   userID,
		"timestamp": bson.M{"$gte": since},
	})
}

func (s *Store) findScans(ctx context.Context, filter bson.M) ([]model.FoodScan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := s.scans.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing food scans: %w", err)
	}

	var scans []model.FoodScan
	if err := cursor.All(ctx, &scans); err != nil {
		return nil, fmt.Errorf("reading food scans: %w", err)
	}
	return scans, nil
}

// DeleteFoodScan removes a scan. Deleting a missing scan is not an error.
func (s *Store) DeleteFoodScan(ctx context.Context, id string) error {
	if _, err := s.scans.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting food scan: %w", err)
	}
	return nil
}

// UpsertGoal sets the target of the user's goal for (nutrient, period),
// creating it if needed, and returns the goal ID. Like the SQLite store, the
// lookup and the write are not atomic.
func (s *Store) UpsertGoal(ctx context.Context, userID, nutrient, period string, target float64) (string, error) {
	filter := bson.M{"user_id": userID, "type": nutrient, "period": period}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var existing model.Goal
	err := s.goals.FindOne(ctx, filter, opts).Decode(&existing)
	switch {
	case err == nil:
		_, err = s.goals.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": bson.M{"target": target}})
		if err != nil {
			return "", fmt.Errorf("updating goal: %w", err)
		}
		return existing.ID, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return "", fmt.Errorf("finding goal: %w", err)
	}

	goal := model.Goal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      nutrient,
		Period:    period,
		Target:    target,
		CreatedAt: s.now().UnixMilli(),
	}
	if _, err := s.goals.InsertOne(ctx, goal); err != nil {
		return "", fmt.Errorf("creating goal: %w", err)
	}
	return goal.ID, nil
}

// ListGoals returns all goals for a user.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.goals.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}

	var goals []model.Goal
	if err := cursor.All(ctx, &goals); err != nil {
		return nil, fmt.Errorf("reading goals: %w", err)
	}
	return goals, nil
}
