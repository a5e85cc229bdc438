package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(h.logger),
		Recovery(),
		Observe(),
	)

	// Definitions
	mux.Handle("GET /api/v1/definitions", chain(http.HandlerFunc(h.ListDefinitions)))
	mux.Handle("POST /api/v1/definitions", chain(http.HandlerFunc(h.CreateDefinition)))
	mux.Handle("GET /api/v1/definitions/{id}", chain(http.HandlerFunc(h.GetDefinition)))

	// Blueprints
	mux.Handle("GET /api/v1/blueprints", chain(http.HandlerFunc(h.ListBlueprints)))
	mux.Handle("POST /api/v1/blueprints", chain(http.HandlerFunc(h.CreateBlueprint)))
	mux.Handle("GET /api/v1/blueprints/{id}", chain(http.HandlerFunc(h.GetBlueprint)))

	// Instances
	mux.Handle("GET /api/v1/instances", chain(http.HandlerFunc(h.ListInstances)))
	mux.Handle("POST /api/v1/blueprints/{id}/instances", chain(http.HandlerFunc(h.CreateInstance)))
	mux.Handle("GET /api/v1/instances/{id}", chain(http.HandlerFunc(h.GetInstance)))
	mux.Handle("POST /api/v1/instances/{id}/start", chain(http.HandlerFunc(h.StartInstance)))
	mux.Handle("POST /api/v1/instances/{id}/cancel", chain(http.HandlerFunc(h.CancelInstance)))
	mux.Handle("GET /api/v1/instances/{id}/nodes", chain(http.HandlerFunc(h.ListInstanceNodes)))

	// Worker control protocol
	mux.Handle("GET /action/sdk/{id}/init", chain(http.HandlerFunc(h.InitNode)))
	mux.Handle("POST /action/sdk/{id}/heartbeat", chain(http.HandlerFunc(h.NodeHeartbeat)))
	mux.Handle("POST /action/sdk/{id}/result", chain(http.HandlerFunc(h.NodeResult)))
}
