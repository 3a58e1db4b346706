package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/dansontsui/aistock-analysis/internal/database"
	"github.com/dansontsui/aistock-analysis/internal/models"
	"github.com/dansontsui/aistock-analysis/internal/performance"
	"github.com/dansontsui/aistock-analysis/internal/redis"
	"github.com/dansontsui/aistock-analysis/internal/runner"
)

// AnalysisRunner triggers runs and price refreshes.
type AnalysisRunner interface {
	Run(ctx context.Context) (*models.Report, error)
	RefreshPrices(ctx context.Context) (*models.Report, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db         *database.DB
	runner     AnalysisRunner
	redis      *redis.Client
	adminToken string
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, r AnalysisRunner, redisClient *redis.Client, adminToken string) *Handler {
	return &Handler{
		db:         db,
		runner:     r,
		redis:      redisClient,
		adminToken: adminToken,
	}
}

// GetReports handles GET /reports
func (h *Handler) GetReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.db.GetAllReports()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// GetLatestReport handles GET /reports/latest
func (h *Handler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.db.GetLatestReport()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "no reports yet")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// TriggerAnalysis handles POST /analyze. The run executes synchronously; a
// second trigger while one is active gets 409.
func (h *Handler) TriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(r.Context())
	if errors.Is(err, runner.ErrRunInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, report)
}

// RefreshPrices handles POST /reports/latest/refresh-prices
func (h *Handler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.RefreshPrices(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "no reports yet")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// UpdateEntryPrice handles POST /reports/{id}/entry-price
func (h *Handler) UpdateEntryPrice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	var req struct {
		Code  string   `json:"code"`
		Price *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" || req.Price == nil || *req.Price <= 0 {
		respondError(w, http.StatusBadRequest, "code and a positive price are required")
		return
	}

	found, err := h.db.UpdateEntryPrice(id, req.Code, decimal.NewFromFloat(*req.Price))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "report or stock code not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetPerformance handles GET /performance
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	reports, err := h.db.GetAllReports()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary := performance.Aggregate(reports, performance.DefaultWindows, time.Now())
	respondJSON(w, http.StatusOK, summary)
}

// GetSubscribers handles GET /subscribers
func (h *Handler) GetSubscribers(w http.ResponseWriter, r *http.Request) {
	subscribers, err := h.db.ListSubscribers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, subscribers)
}

// AddSubscriber handles POST /subscribers
func (h *Handler) AddSubscriber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	s := &models.Subscriber{Email: req.Email}
	err := h.db.AddSubscriber(s)
	if errors.Is(err, database.ErrDuplicateEmail) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

// RemoveSubscriber handles DELETE /subscribers/{id}
func (h *Handler) RemoveSubscriber(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid subscriber id")
		return
	}

	found, err := h.db.DeleteSubscriber(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "subscriber not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearHistory handles DELETE /admin/clear-history. Requires the configured
// admin token in X-Admin-Token.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		respondError(w, http.StatusForbidden, "admin endpoint disabled")
		return
	}
	if r.Header.Get("X-Admin-Token") != h.adminToken {
		respondError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	deleted, err := h.db.ClearHistory()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[Admin] history cleared, %d reports deleted", deleted)
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	// Check database
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
