package routes

import (
	"github.com/gorilla/mux"

	"assettrack/handlers"
	"assettrack/middleware"
	ws "assettrack/websocket"
)

var (
	MethodsGetOnly    = []string{"GET", "OPTIONS"}
	MethodsPostOnly   = []string{"POST", "OPTIONS"}
	MethodsPutOnly    = []string{"PUT", "OPTIONS"}
	MethodsDeleteOnly = []string{"DELETE", "OPTIONS"}
)

func RegisterRoutes(r *mux.Router, hub *ws.Hub) {
	// Public
	r.HandleFunc("/health", handlers.HealthCheck).Methods(MethodsGetOnly...)
	r.HandleFunc("/api/auth/login", handlers.Login).Methods(MethodsPostOnly...)

	// Live audit stream (token in query string)
	r.HandleFunc("/ws/audit", hub.HandleStream).Methods("GET")

	// Protected API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware)

	api.HandleFunc("/auth/me", handlers.GetCurrentUser).Methods(MethodsGetOnly...)

	// Asset registry
	api.HandleFunc("/assets", handlers.CreateAsset).Methods(MethodsPostOnly...)
	api.HandleFunc("/assets", handlers.ListAssets).Methods(MethodsGetOnly...)
	api.HandleFunc("/assets/{id}", handlers.GetAsset).Methods(MethodsGetOnly...)
	api.HandleFunc("/assets/{id}", handlers.UpdateAsset).Methods(MethodsPutOnly...)
	api.HandleFunc("/assets/{id}", handlers.DeleteAsset).Methods(MethodsDeleteOnly...)
	api.HandleFunc("/assets/{tag}/return", handlers.ReturnAsset).Methods(MethodsPostOnly...)

	// Issuance workflow
	api.HandleFunc("/issuances", handlers.IssueAsset).Methods(MethodsPostOnly...)
	api.HandleFunc("/issuances", handlers.ListIssuances).Methods(MethodsGetOnly...)
	api.HandleFunc("/issuances/pending", handlers.ListPendingSignatures).Methods(MethodsGetOnly...)
	api.HandleFunc("/issuances/{id}", handlers.GetIssuance).Methods(MethodsGetOnly...)
	api.HandleFunc("/issuances/{id}/sign", handlers.SignDocument).Methods(MethodsPostOnly...)
	api.HandleFunc("/issuances/{id}/cancel", handlers.CancelIssuance).Methods(MethodsPostOnly...)
	api.HandleFunc("/issuances/{id}/signatures", handlers.ListIssuanceSignatures).Methods(MethodsGetOnly...)

	// Document templates
	api.HandleFunc("/templates", handlers.ListTemplates).Methods(MethodsGetOnly...)
	api.HandleFunc("/templates/{type}", handlers.GetTemplate).Methods(MethodsGetOnly...)

	// Dashboards & audit trail
	api.HandleFunc("/dashboard/overview", handlers.GetDashboardOverview).Methods(MethodsGetOnly...)
	api.HandleFunc("/audit-logs", handlers.ListAuditLogs).Methods(MethodsGetOnly...)
}
