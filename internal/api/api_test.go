package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erazemk/prehrana/internal/auth"
	"github.com/erazemk/prehrana/internal/db"
	"github.com/erazemk/prehrana/internal/model"
	"github.com/erazemk/prehrana/internal/scan"
	"github.com/erazemk/prehrana/internal/store"
)

const testJWTSecret = "test-secret"

const appleReply = `{"foodItems":[{"name":"Apple","calories":95,"protein":0.5,"carbs":25,"fat":0.3}],"totalCalories":95}`

// fakeModel returns a canned reply in place of the vision model.
type fakeModel struct {
	reply string
	err   error
	calls int
}

func (m *fakeModel) Describe(context.Context, []byte, string, string) (string, error) {
	m.calls++
	return m.reply, m.err
}

type testServer struct {
	*httptest.Server
	records *store.Records
	model   *fakeModel
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	records := &store.Records{DB: database}
	m := &fakeModel{reply: appleReply}

	router := NewRouter(Config{
		DB:        database,
		JWTSecret: testJWTSecret,
		Records:   records,
		Scanner:   &scan.Service{Model: m, Store: records},
		Location:  time.UTC,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, records: records, model: m}
}

// register creates an account and returns its token.
func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "name": "Test", "password": "password123"})
	resp, err := http.Post(s.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatal("empty token from register")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func do(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{200, 30, 30, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func uploadRequest(t *testing.T, url, token string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "meal.png")
	part.Write(data)
	mw.Close()

	req, err := http.NewRequest("POST", url, &body)
	if err != nil {
		t.Fatalf("building upload: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := setupTestServer(t)
	s.register(t, "ana@example.com")

	// Duplicate email.
	body, _ := json.Marshal(map[string]string{"email": "ana@example.com", "password": "password123"})
	resp, _ := http.Post(s.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Bad password.
	body, _ = json.Marshal(map[string]string{"email": "ana@example.com", "password": "wrong"})
	resp, _ = http.Post(s.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Good login.
	body, _ = json.Marshal(map[string]string{"email": "ana@example.com", "password": "password123"})
	resp, _ = http.Post(s.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for login, got %d", resp.StatusCode)
	}
	var login struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()

	req, _ := authRequest("GET", s.URL+"/api/auth/me", login.Token, nil)
	var me model.User
	if code := do(t, req, &me); code != http.StatusOK {
		t.Fatalf("expected 200 for me, got %d", code)
	}
	if me.ID != login.User.ID || me.Email != "ana@example.com" {
		t.Errorf("unexpected user: %+v", me)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := setupTestServer(t)

	for _, req := range []map[string]string{
		{"email": "not-an-email", "password": "password123"},
		{"email": "ana@example.com", "password": "short"},
	} {
		body, _ := json.Marshal(req)
		resp, _ := http.Post(s.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for %v, got %d", req, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := setupTestServer(t)
	token := s.register(t, "ana@example.com")

	req, _ := authRequest("POST", s.URL+"/api/auth/logout", token, nil)
	if code := do(t, req, nil); code != http.StatusOK {
		t.Fatalf("expected 200 for logout, got %d", code)
	}

	req, _ = authRequest("GET", s.URL+"/api/goals", token, nil)
	if code := do(t, req, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", code)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := setupTestServer(t)

	for _, path := range []string{"/api/food-scans", "/api/goals", "/api/goals/progress", "/api/auth/me"} {
		resp, _ := http.Get(s.URL + path)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 for %s, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	req := uploadRequest(t, s.URL+"/api/scan", "", testPNG())
	if code := do(t, req, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated scan, got %d", code)
	}
	if s.model.calls != 0 {
		t.Error("model must not be called without an identity")
	}
}

func TestScanApple(t *testing.T) {
	s := setupTestServer(t)
	token := s.register(t, "ana@example.com")

	var out struct {
		Success bool          `json:"success"`
		Data    scan.Analysis `json:"data"`
		ScanID  string        `json:"scanId"`
	}
	if code := do(t, uploadRequest(t, s.URL+"/api/scan", token, testPNG()), &out); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !out.Success || out.ScanID == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(out.Data.FoodItems) != 1 || out.Data.Total() != 95 {
		t.Errorf("unexpected analysis: %+v", out.Data)
	}

	req, _ := authRequest("GET", s.URL+"/api/food-scans", token, nil)
	var scans []model.FoodScan
	do(t, req, &scans)
	if len(scans) != 1 || scans[0].ID != out.ScanID || scans[0].TotalCalories != 95 {
		t.Fatalf("expected the stored apple scan, got %+v", scans)
	}
	if want := scan.EncodeImage(testPNG(), "image/png").DataURL(); scans[0].ImageURL != want {
		t.Error("expected the upload stored as a data URL")
	}
}

func TestScanNoFood(t *testing.T) {
	s := setupTestServer(t)
	token := s.register(t, "ana@example.com")
	s.model.reply = "```json\n{}\n```"

	resp, err := http.DefaultClient.Do(uploadRequest(t, s.URL+"/api/scan", token, testPNG()))
	if err != nil {
		t.Fatalf("scan request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&out)
	if string(out["success"]) != "true" || string(out["data"]) != "{}" {
		t.Errorf("expected {success:true, data:{}}, got %v", out)
	}
	if _, ok := out["scanId"]; ok {
		t.Error("expected no scan id for an empty detection")
	}

	recent, _ := s.records.ListFoodScans(context.Background(), userOf(t, token))
	if len(recent) != 0 {
		t.Errorf("expected nothing stored, got %d scans", len(recent))
	}
}

func TestScanFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"truncated json", `{"foodItems":[{"name":"Apple","calories":95`, nil},
		{"model error", "", errors.New("deadline exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			token := s.register(t, "ana@example.com")
			s.model.reply, s.model.err = tt.reply, tt.err

			var out map[string]string
			code := do(t, uploadRequest(t, s.URL+"/api/scan", token, testPNG()), &out)
			if code != http.StatusBadGateway {
				t.Errorf("expected 502, got %d", code)
			}
			if out["error"] != "failed to scan food image" {
				t.Errorf("expected generic failure message, got %q", out["error"])
			}

			scans, _ := s.records.ListFoodScans(context.Background(), userOf(t, token))
			if len(scans) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestScanRejectsNonImage(t *testing.T) {
	s := setupTestServer(t)
	token := s.register(t, "ana@example.com")

	req := uploadRequest(t, s.URL+"/api/scan", token, []byte("GIF89a not really"))
	if code := do(t, req, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	if s.model.calls != 0 {
		t.Error("model must not be called for rejected uploads")
	}
}

func TestFoodScansCRUD(t *testing.T) {
	s := setupTestServer(t)
	ana := s.register(t, "ana@example.com")
	bor := s.register(t, "bor@example.com")

	// Empty items are rejected.
	req, _ := authRequest("POST", s.URL+"/api/food-scans", ana, map[string]any{"food_items": []any{}})
	if code := do(t, req, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty items, got %d", code)
	}

	req, _ = authRequest("POST", s.URL+"/api/food-scans", ana, map[string]any{
		"image_url":  "data:image/png;base64,AA==",
		"food_items": []map[string]any{{"name": "Toast", "calories": 80, "carbs": 15}},
	})
	var created map[string]string
	if code := do(t, req, &created); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	id := created["id"]

	req, _ = authRequest("GET", s.URL+"/api/food-scans/"+id, ana, nil)
	var got model.FoodScan
	if code := do(t, req, &got); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got.TotalCalories != 80 || got.FoodItems[0].Protein != nil {
		t.Errorf("unexpected scan: %+v", got)
	}

	req, _ = authRequest("GET", s.URL+"/api/food-scans/recent", ana, nil)
	var recent []model.FoodScan
	do(t, req, &recent)
	if len(recent) != 1 {
		t.Errorf("expected 1 recent scan, got %d", len(recent))
	}

	// Other users can neither read nor delete it.
	req, _ = authRequest("GET", s.URL+"/api/food-scans/"+id, bor, nil)
	if code := do(t, req, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's scan, got %d", code)
	}
	req, _ = authRequest("DELETE", s.URL+"/api/food-scans/"+id, bor, nil)
	if code := do(t, req, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 deleting another user's scan, got %d", code)
	}

	req, _ = authRequest("DELETE", s.URL+"/api/food-scans/"+id, ana, nil)
	var deleted map[string]bool
	if code := do(t, req, &deleted); code != http.StatusOK || !deleted["deleted"] {
		t.Fatalf("expected deleted:true, got %d %v", code, deleted)
	}

	req, _ = authRequest("GET", s.URL+"/api/food-scans/"+id, ana, nil)
	if code := do(t, req, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", code)
	}
}

func TestGoalsAPIFlow(t *testing.T) {
	s := setupTestServer(t)
	token := s.register(t, "ana@example.com")

	req, _ := authRequest("PUT", s.URL+"/api/goals", token, map[string]any{"type": "sugar", "period": "daily", "target": 50})
	if code := do(t, req, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", code)
	}
	req, _ = authRequest("PUT", s.URL+"/api/goals", token, map[string]any{"type": "calories", "period": "daily", "target": 0})
	if code := do(t, req, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero target, got %d", code)
	}

	req, _ = authRequest("PUT", s.URL+"/api/goals", token, map[string]any{"type": "calories", "period": "daily", "target": 2000})
	var first map[string]string
	if code := do(t, req, &first); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	req, _ = authRequest("POST", s.URL+"/api/food-scans", token, map[string]any{
		"image_url":      "data:image/png;base64,AA==",
		"food_items":     []map[string]any{{"name": "Pasta", "calories": 900}, {"name": "Salad", "calories": 600}},
		"total_calories": 1500,
	})
	if code := do(t, req, nil); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	req, _ = authRequest("GET", s.URL+"/api/goals/progress", token, nil)
	var progress []model.GoalProgress
	do(t, req, &progress)
	if len(progress) != 1 || progress[0].Current != 1500 || progress[0].Percent != 75 {
		t.Fatalf("expected 1500 at 75%%, got %+v", progress)
	}
	if progress[0].GoalID != first["id"] {
		t.Errorf("expected goal id %q, got %q", first["id"], progress[0].GoalID)
	}

	req, _ = authRequest("PUT", s.URL+"/api/goals", token, map[string]any{"type": "calories", "period": "daily", "target": 1000})
	var second map[string]string
	do(t, req, &second)
	if second["id"] != first["id"] {
		t.Errorf("expected the same goal to be updated")
	}

	req, _ = authRequest("GET", s.URL+"/api/goals", token, nil)
	var goals []model.Goal
	do(t, req, &goals)
	if len(goals) != 1 || goals[0].Target != 1000 {
		t.Fatalf("expected one goal with target 1000, got %+v", goals)
	}

	req, _ = authRequest("GET", s.URL+"/api/goals/progress", token, nil)
	do(t, req, &progress)
	if progress[0].Percent != 100 {
		t.Errorf("expected percent clamped to 100, got %v", progress[0].Percent)
	}
}

func TestCreateFoodScanValidation(t *testing.T) {
	s := setupTestServer(t)
	token := s.register(t, "ana@example.com")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing calories", map[string]any{
			"image_url":  "data:image/png;base64,AA==",
			"food_items": []map[string]any{{"name": "Mystery"}},
		}},
		{"null calories", map[string]any{
			"image_url":  "data:image/png;base64,AA==",
			"food_items": []map[string]any{{"name": "Mystery", "calories": nil}},
		}},
		{"missing name", map[string]any{
			"image_url":  "data:image/png;base64,AA==",
			"food_items": []map[string]any{{"calories": 100}},
		}},
		{"missing image", map[string]any{
			"food_items": []map[string]any{{"name": "Toast", "calories": 80}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := authRequest("POST", s.URL+"/api/food-scans", token, tt.body)
			if code := do(t, req, nil); code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
		})
	}

	scans, _ := s.records.ListFoodScans(context.Background(), userOf(t, token))
	if len(scans) != 0 {
		t.Errorf("expected nothing stored, got %+v", scans)
	}
}

func TestCreateFoodScanZeroCaloriesAllowed(t *testing.T) {
	s := setupTestServer(t)
	token := s.register(t, "ana@example.com")

	req, _ := authRequest("POST", s.URL+"/api/food-scans", token, map[string]any{
		"image_url":  "data:image/png;base64,AA==",
		"food_items": []map[string]any{{"name": "Water", "calories": 0}},
	})
	if code := do(t, req, nil); code != http.StatusCreated {
		t.Errorf("expected 201 for an explicit zero, got %d", code)
	}
}

// userOf extracts the user ID from a token.
func userOf(t *testing.T, token string) string {
	t.Helper()
	claims, err := auth.ValidateToken(testJWTSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	return claims.UserID()
}
