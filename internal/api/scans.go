package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/prehrana/internal/imaging"
	"github.com/erazemk/prehrana/internal/model"
	"github.com/erazemk/prehrana/internal/scan"
	"github.com/erazemk/prehrana/internal/store"
)

// defaultMaxUpload is the upload size limit when none is configured.
const defaultMaxUpload = 10 << 20

// Scanner runs the ingestion pipeline for one upload.
type Scanner interface {
	Scan(ctx context.Context, userID string, data []byte, mediaType string) (*scan.Result, error)
}

// ScanStore is the scan side of the record store.
type ScanStore interface {
	CreateFoodScan(ctx context.Context, userID, imageURL string, items []model.FoodItem, totalCalories float64) (string, error)
	GetFoodScan(ctx context.Context, id string) (*model.FoodScan, error)
	ListFoodScans(ctx context.Context, userID string) ([]model.FoodScan, error)
	ListRecentFoodScans(ctx context.Context, userID string, window time.Duration) ([]model.FoodScan, error)
	DeleteFoodScan(ctx context.Context, id string) error
}

// ScansHandler handles food scan endpoints.
type ScansHandler struct {
	Store     ScanStore
	Scanner   Scanner
	MaxUpload int64
}

type scanResponse struct {
	Success bool           `json:"success"`
	Data    *scan.Analysis `json:"data"`
	ScanID  string         `json:"scanId,omitempty"`
}

type createScanRequest struct {
	ImageURL      string                `json:"image_url"`
	FoodItems     []model.FoodItemInput `json:"food_items"`
	TotalCalories *float64              `json:"total_calories"`
}

// Scan handles POST /api/scan.
func (h *ScansHandler) Scan(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUpload
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	// Trust the bytes, not the part's Content-Type header.
	info, err := imaging.Inspect(data)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image must be JPEG, PNG, or WebP")
		return
	}

	res, err := h.Scanner.Scan(r.Context(), userID(r), data, info.MIME)
	switch {
	case errors.Is(err, scan.ErrUnauthorized):
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	case errors.Is(err, scan.ErrScanFailed):
		slog.Error("food scan failed", "user", userID(r), "error", err)
		jsonError(w, http.StatusBadGateway, scan.ErrScanFailed.Error())
		return
	case err != nil:
		slog.Error("failed to store food scan", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to store food scan")
		return
	}

	jsonResponse(w, http.StatusOK, scanResponse{Success: true, Data: res.Analysis, ScanID: res.ScanID})
}

// Create handles POST /api/food-scans.
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ImageURL == "" {
		jsonError(w, http.StatusBadRequest, "image_url required")
		return
	}
	if len(req.FoodItems) == 0 {
		jsonError(w, http.StatusBadRequest, "at least one food item required")
		return
	}

	items := make([]model.FoodItem, 0, len(req.FoodItems))
	var sum float64
	for _, in := range req.FoodItems {
		item, err := in.FoodItem()
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		items = append(items, item)
		sum += item.Calories
	}
	total := sum
	if req.TotalCalories != nil {
		total = *req.TotalCalories
	}

	id, err := h.Store.CreateFoodScan(r.Context(), userID(r), req.ImageURL, items, total)
	if err != nil {
		slog.Error("failed to create food scan", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create food scan")
		return
	}

	slog.Info("food scan created", "user", userID(r), "scan", id)
	jsonResponse(w, http.StatusCreated, map[string]string{"id": id})
}

// List handles GET /api/food-scans.
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	scans, err := h.Store.ListFoodScans(r.Context(), userID(r))
	if err != nil {
		slog.Error("failed to list food scans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list food scans")
		return
	}
	if scans == nil {
		scans = []model.FoodScan{}
	}
	jsonResponse(w, http.StatusOK, scans)
}

// Recent handles GET /api/food-scans/recent.
func (h *ScansHandler) Recent(w http.ResponseWriter, r *http.Request) {
	scans, err := h.Store.ListRecentFoodScans(r.Context(), userID(r), store.RecentWindow)
	if err != nil {
		slog.Error("failed to list recent food scans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list food scans")
		return
	}
	if scans == nil {
		scans = []model.FoodScan{}
	}
	jsonResponse(w, http.StatusOK, scans)
}

// Get handles GET /api/food-scans/{id}.
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.owned(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Delete handles DELETE /api/food-scans/{id}.
func (h *ScansHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.Store.DeleteFoodScan(r.Context(), s.ID); err != nil {
		slog.Error("failed to delete food scan", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete food scan")
		return
	}

	slog.Info("food scan deleted", "user", userID(r), "scan", s.ID)
	jsonResponse(w, http.StatusOK, map[string]bool{"deleted": true})
}

// owned loads the scan named in the path and checks that the caller owns it.
// Scans of other users are reported as not found.
func (h *ScansHandler) owned(w http.ResponseWriter, r *http.Request) (*model.FoodScan, bool) {
	s, err := h.Store.GetFoodScan(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get food scan", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get food scan")
		return nil, false
	}
	if s == nil || s.UserID != userID(r) {
		jsonError(w, http.StatusNotFound, "food scan not found")
		return nil, false
	}
	return s, true
}
