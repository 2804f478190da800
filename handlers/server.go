package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"formakit.app/cloud/internal/audit"
	"formakit.app/cloud/internal/email"
	"formakit.app/cloud/internal/entitlement"
	"formakit.app/cloud/internal/ratelimit"
	"formakit.app/cloud/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type Server struct {
	Router  chi.Router
	Storage storage.Storage
	Granter *entitlement.Granter
	Audit   *audit.Recorder
	Email   *email.Sender
	Version string
}

type Option func(*Server)

// WithEmail attaches an SMTP sender for purchase notifications.
func WithEmail(sender *email.Sender) Option {
	return func(s *Server) { s.Email = sender }
}

// WithCORS restricts browser origins for the API routes.
func WithCORS(origins []string) Option {
	return func(s *Server) {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
			MaxAge:         300,
		}))
	}
}

// WithVersion sets the build version reported by the health endpoint.
func WithVersion(version string) Option {
	return func(s *Server) { s.Version = version }
}

func NewHTTPServer(store storage.Storage, opts ...Option) *Server {
	s := &Server{
		Router:  chi.NewRouter(),
		Storage: store,
		Granter: entitlement.New(store),
		Audit:   audit.New(store),
		Version: "dev",
	}

	for _, opt := range opts {
		opt(s)
	}

	limiter := ratelimit.New(60, time.Minute)

	s.Router.Get("/health", s.Health)
	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", s.ListProducts)
		r.Get("/products/{slug}", s.GetProduct)
		r.Get("/downloads", s.ListDownloads)

		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(limiter))
			r.Post("/checkout", s.Checkout)
			r.Post("/webhooks/stripe", s.Stripe)
		})
	})

	return s
}

type HealthResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	AuditDropped int64     `json:"audit_dropped"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       "healthy",
		Version:      s.Version,
		AuditDropped: s.Audit.Dropped(),
		Timestamp:    time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to encode response")
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// currentUserID resolves the requesting user. Session handling lives in
// the auth provider in front of this service; it forwards the resolved
// identity in a header.
func currentUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
