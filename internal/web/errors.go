package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/internal/queue"
	"github.com/MrWong99/voxstudio/internal/studio"
)

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

// retryAfterSeconds is sent with 503 replies when the queue is full.
const retryAfterSeconds = "5"

type errorBody struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errBadRequest}, args...)...)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errNotFound}, args...)...)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response", "err", err)
	}
}

// writeError maps err to a status code and writes a JSON error body.
// A request abandoned by the client is only logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := observe.Logger(r.Context())

	if r.Context().Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		log.Debug("client went away", "path", r.URL.Path, "err", err)
		return
	}

	body := errorBody{Error: err.Error()}
	var (
		status  int
		maxErr  *http.MaxBytesError
		langErr *studio.LanguageError
	)
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
		body.Error = fmt.Sprintf("upload exceeds the %s limit", humanize.IBytes(uint64(maxErr.Limit)))
	case errors.As(err, &langErr):
		status = http.StatusBadRequest
		body.Suggestion = langErr.Suggestion
	case errors.Is(err, studio.ErrInvalidParam), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, queue.ErrQueueFull):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", retryAfterSeconds)
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, studio.ErrBackend):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}
