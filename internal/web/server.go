// Package web serves the voice-studio page and its HTTP API.
//
// All routes live below the configured root path. Generation endpoints take
// multipart or url-encoded forms and reply with audio/wav; everything else
// speaks JSON. The queue state is also streamed over a websocket.
package web

import (
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/MrWong99/voxstudio/internal/queue"
	"github.com/MrWong99/voxstudio/internal/studio"
)

// defaultMaxUploadBytes applies when Config.MaxUploadBytes is zero.
const defaultMaxUploadBytes = 32 << 20

// QueueStatus exposes the request queue state.
type QueueStatus interface {
	Snapshot() queue.Snapshot
	Subscribe() (<-chan queue.Snapshot, func())
}

// Status is the body of GET {root}/api/status.
type Status struct {
	// Models reports which model slots are loaded.
	Models map[string]bool `json:"models"`

	// Providers maps backend names to their circuit breaker state.
	Providers map[string]string `json:"providers,omitempty"`
}

// Config wires a [Server].
type Config struct {
	// RootPath prefixes every route, e.g. "/studio". Empty mounts at "/".
	RootPath string

	// MaxUploadBytes bounds request bodies of the generation endpoints.
	MaxUploadBytes int64

	Store *Store
	Queue QueueStatus

	// Status is optional; without it /api/status reports no models.
	Status func() Status
}

// Server holds the handlers. It is safe for concurrent use.
type Server struct {
	svc       *studio.Service
	root      string
	maxUpload int64
	store     *Store
	queue     QueueStatus
	status    func() Status
	page      *template.Template
	static    http.Handler
}

// New returns a Server for svc.
func New(svc *studio.Service, cfg Config) (*Server, error) {
	switch {
	case svc == nil:
		return nil, errors.New("web: studio service is required")
	case cfg.Store == nil:
		return nil, errors.New("web: store is required")
	case cfg.Queue == nil:
		return nil, errors.New("web: queue is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Status == nil {
		cfg.Status = func() Status { return Status{Models: map[string]bool{}} }
	}

	page, err := template.ParseFS(assets, "templates/*.html.tmpl")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, err
	}

	root := strings.TrimRight(cfg.RootPath, "/")
	return &Server{
		svc:       svc,
		root:      root,
		maxUpload: cfg.MaxUploadBytes,
		store:     cfg.Store,
		queue:     cfg.Queue,
		status:    cfg.Status,
		page:      page,
		static:    http.StripPrefix(root+"/static/", http.FileServerFS(static)),
	}, nil
}

// Register adds every route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	r := s.root
	mux.HandleFunc("GET "+r+"/{$}", s.handleIndex)
	if r != "" {
		mux.Handle("GET "+r, http.RedirectHandler(r+"/", http.StatusMovedPermanently))
	}
	mux.Handle("GET "+r+"/static/", s.static)
	mux.HandleFunc("GET "+r+"/samples/{path...}", s.handleSample)
	mux.HandleFunc("GET "+r+"/outputs/{file}", s.handleOutput)

	mux.HandleFunc("POST "+r+"/api/tts_generate", s.handleTTS)
	mux.HandleFunc("POST "+r+"/api/turbo_generate", s.handleTurbo)
	mux.HandleFunc("POST "+r+"/api/mtl_generate", s.handleMTL)
	mux.HandleFunc("POST "+r+"/api/vc_generate", s.handleVC)
	mux.HandleFunc("POST "+r+"/api/upload", s.handleUpload)

	mux.HandleFunc("GET "+r+"/api/voices", s.handleVoices)
	mux.HandleFunc("POST "+r+"/api/voice_change", s.handleVoiceChange)
	mux.HandleFunc("GET "+r+"/api/languages", s.handleLanguages)
	mux.HandleFunc("GET "+r+"/api/languages/{code}", s.handleLanguage)
	mux.HandleFunc("GET "+r+"/api/event_tags", s.handleEventTags)
	mux.HandleFunc("POST "+r+"/api/insert_tag", s.handleInsertTag)
	mux.HandleFunc("GET "+r+"/api/requirements", s.handleRequirements)
	mux.HandleFunc("GET "+r+"/api/status", s.handleStatus)
	mux.HandleFunc("GET "+r+"/api/queue", s.handleQueue)
	mux.HandleFunc("GET "+r+"/api/queue/ws", s.handleQueueWS)
}

// Handler returns the routes on a fresh mux behind [ForwardedProto].
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return ForwardedProto(mux)
}

// url returns the public path of p below the root.
func (s *Server) url(p string) string {
	return s.root + p
}
