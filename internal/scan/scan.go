// Package scan turns a meal photo into stored nutrition data: it submits the
// image to a vision model, parses the reply and persists non-empty results.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/erazemk/prehrana/internal/imaging"
	"github.com/erazemk/prehrana/internal/model"
)

var (
	// ErrUnauthorized is returned when no caller identity is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrScanFailed is the single failure callers see for any ingestion error.
	ErrScanFailed = errors.New("failed to scan food image")
	// ErrModel marks a failed call to the vision model.
	ErrModel = errors.New("vision model error")
	// ErrMalformedResponse marks a model reply that did not parse.
	ErrMalformedResponse = errors.New("invalid model response format")
)

// Model describes an image with a text prompt.
type Model interface {
	Describe(ctx context.Context, image []byte, mediaType, prompt string) (string, error)
}

// Store persists scans.
type Store interface {
	CreateFoodScan(ctx context.Context, userID, imageURL string, items []model.FoodItem, totalCalories float64) (string, error)
}

// Service runs the ingestion pipeline.
type Service struct {
	Model Model
	Store Store

	// MaxImageDim, when positive, downscales the copy sent to the model.
	MaxImageDim int
}

// Result is the outcome of one scan. ScanID is empty when nothing was stored.
type Result struct {
	Analysis *Analysis
	ScanID   string
}

// Scan analyzes one uploaded image for userID. Exactly one model call is made
// per invocation and failures are never retried. Store errors are returned
// as-is.
func (s *Service) Scan(ctx context.Context, userID string, data []byte, mediaType string) (*Result, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	img := EncodeImage(data, mediaType)

	payload, payloadType := img.Data, img.MediaType
	if s.MaxImageDim > 0 {
		scaled, err := imaging.Downscale(img.Data, s.MaxImageDim)
		if err != nil {
			return nil, fmt.Errorf("%w: preparing image: %w", ErrScanFailed, err)
		}
		payload, payloadType = scaled.Data, scaled.MIME
	}

	text, err := s.Model.Describe(ctx, payload, payloadType, Prompt)
	if err != nil {
		slog.Error("vision model call failed", "user", userID, "error", err)
		return nil, fmt.Errorf("%w: %w: %w", ErrScanFailed, ErrModel, err)
	}

	analysis, err := ParseResponse(text)
	if err != nil {
		slog.Warn("malformed model response", "user", userID, "error", err, "response", truncate(text, 200))
		return nil, fmt.Errorf("%w: %w", ErrScanFailed, err)
	}

	result := &Result{Analysis: analysis}
	if analysis.Empty() {
		slog.Info("no food detected", "user", userID)
		return result, nil
	}

	id, err := s.Store.CreateFoodScan(ctx, userID, img.DataURL(), analysis.FoodItems, analysis.Total())
	if err != nil {
		return nil, fmt.Errorf("storing food scan: %w", err)
	}
	result.ScanID = id

	slog.Info("food scanned", "user", userID, "scan", id, "items", len(analysis.FoodItems), "calories", analysis.Total())
	return result, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
