package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health and instrumentation
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Analysis
	api.HandleFunc("/analyze", handler.TriggerAnalysis).Methods("POST")

	// Reports
	api.HandleFunc("/reports", handler.GetReports).Methods("GET")
	api.HandleFunc("/reports/latest", handler.GetLatestReport).Methods("GET")
	api.HandleFunc("/reports/latest/refresh-prices", handler.RefreshPrices).Methods("POST")
	api.HandleFunc("/reports/{id}/entry-price", handler.UpdateEntryPrice).Methods("POST")

	// Performance
	api.HandleFunc("/performance", handler.GetPerformance).Methods("GET")

	// Subscribers
	api.HandleFunc("/subscribers", handler.GetSubscribers).Methods("GET")
	api.HandleFunc("/subscribers", handler.AddSubscriber).Methods("POST")
	api.HandleFunc("/subscribers/{id}", handler.RemoveSubscriber).Methods("DELETE")

	// Admin
	api.HandleFunc("/admin/clear-history", handler.ClearHistory).Methods("DELETE")

	return r
}
