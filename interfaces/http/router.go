// Package rest wires the service's chi router: per-user CRUD, ingestion,
// RAG query endpoints, and a version endpoint.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Version is the build-time service version reported at /version.
var Version = "dev"

// NewRouter builds the full /api/v1 router.
func NewRouter(h *Handler) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Delete("/", h.DeleteUser)
			r.Post("/ingest", h.Ingest)
			r.Post("/rag/query", h.RAGQuery)
			r.Post("/rag/query-vector", h.RAGQueryVector)
			r.Post("/ask", h.Ask)
			r.Post("/custom-data", h.CustomData)
			r.Post("/schemas", h.StoreSchema)
		})
		r.Get("/version", h.Version)
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
