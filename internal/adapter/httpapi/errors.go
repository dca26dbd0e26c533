package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/httplog"

	"webmcp-agent/internal/domain/entity"
)

type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrToolNotFound), errors.Is(err, entity.ErrTraceNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrLoopBusy), errors.Is(err, entity.ErrConversationReset), errors.Is(err, entity.ErrNoTools),
		errors.Is(err, entity.ErrSuggestionDropped):
		return http.StatusConflict
	case errors.Is(err, entity.ErrNoModel), errors.Is(err, entity.ErrNoPage):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrModelRequest):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		entry := httplog.LogEntry(r.Context())
		entry.Error().Err(err).Msg("request failed")
		s.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return badRequest(fmt.Errorf("decode body: %w", err))
	}
	return nil
}
