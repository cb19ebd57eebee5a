package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/prehrana/internal/progress"
)

// Records stores scans and goals on either backend.
type Records interface {
	ScanStore
	GoalStore
}

// Config holds the router's dependencies.
type Config struct {
	// DB holds users, revoked tokens and settings.
	DB        *sql.DB
	JWTSecret string
	Records   Records
	Scanner   Scanner

	// Location sets the day boundary for daily goals.
	Location  *time.Location
	MaxUpload int64
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: cfg.DB, JWTSecret: cfg.JWTSecret}
	scansHandler := &ScansHandler{Store: cfg.Records, Scanner: cfg.Scanner, MaxUpload: cfg.MaxUpload}
	goalsHandler := &GoalsHandler{
		Store: cfg.Records,
		Progress: &progress.Service{
			Goals:    cfg.Records,
			Scans:    cfg.Records,
			Location: cfg.Location,
		},
	}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)

	// Public: register and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Scans.
	mux.Handle("POST /api/scan", authMW(http.HandlerFunc(scansHandler.Scan)))
	mux.Handle("POST /api/food-scans", authMW(http.HandlerFunc(scansHandler.Create)))
	mux.Handle("GET /api/food-scans", authMW(http.HandlerFunc(scansHandler.List)))
	mux.Handle("GET /api/food-scans/recent", authMW(http.HandlerFunc(scansHandler.Recent)))
	mux.Handle("GET /api/food-scans/{id}", authMW(http.HandlerFunc(scansHandler.Get)))
	mux.Handle("DELETE /api/food-scans/{id}", authMW(http.HandlerFunc(scansHandler.Delete)))

	// Goals.
	mux.Handle("PUT /api/goals", authMW(http.HandlerFunc(goalsHandler.Upsert)))
	mux.Handle("GET /api/goals", authMW(http.HandlerFunc(goalsHandler.List)))
	mux.Handle("GET /api/goals/progress", authMW(http.HandlerFunc(goalsHandler.GetProgress)))

	return mux
}
