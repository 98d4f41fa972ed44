// Package hush implements the HTTP surface of the drop service:
// anonymous upload of client-side-encrypted payloads, retrieval by
// identifier, and password-gated deletion.
package hush

import (
	"errors"
	"net/http"

	"hushd/internal/audit"
	"hushd/internal/notify"
	"hushd/internal/store"

	"github.com/go-chi/chi/v5"
)

// Config holds the collaborators a Server is built from. It is
// assembled once at construction and never mutated afterwards.
type Config struct {
	// Store is the object storage backend.
	Store store.ObjectStore

	// Notifier is told about successful uploads. Defaults to
	// notify.Disabled.
	Notifier notify.Notifier

	// Audit, when non-nil, receives one event per upload, fetch and
	// delete attempt.
	Audit *audit.Log

	// MaxUploadBytes caps the total upload request body. Zero means
	// no limit.
	MaxUploadBytes int64
}

type ConfigOption func(*Config)

func WithStore(s store.ObjectStore) ConfigOption {
	return func(cfg *Config) {
		cfg.Store = s
	}
}

func WithNotifier(n notify.Notifier) ConfigOption {
	return func(cfg *Config) {
		cfg.Notifier = n
	}
}

func WithAudit(l *audit.Log) ConfigOption {
	return func(cfg *Config) {
		cfg.Audit = l
	}
}

func WithMaxUploadBytes(n int64) ConfigOption {
	return func(cfg *Config) {
		cfg.MaxUploadBytes = n
	}
}

func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Server serves the drop API.
type Server struct {
	cfg Config
	ids *Allocator
}

// NewServer validates the configuration and returns a new Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("Store must not be nil")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Disabled{}
	}

	return &Server{cfg: cfg, ids: NewAllocator(cfg.Store)}, nil
}

// Handler returns the router for the drop API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(LogRequest)
	r.Use(Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)

		// Single-identifier operations share the fileid guard.
		r.Get("/exists", s.withFile(s.handleExists))
		r.Get("/file", s.withFile(s.handleCryptofile))
		r.Get("/metadata", s.withFile(s.handleMetadata))
		r.Get("/delete", s.withFile(s.handleDelete))
		r.Get("/ip", s.withFile(s.handleIP))
	})

	return r
}
