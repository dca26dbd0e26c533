package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"

	"webmcp-agent/internal/application/port/input"
	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Addr      string
	ModelName string
	// AccessLog receives one JSON line per request. Defaults to stdout.
	AccessLog io.Writer
	LogLevel  string
}

// Server exposes tool inspection and the agent loop over HTTP.
type Server struct {
	inspector input.ToolInspector
	loop      input.AgentLoop
	traces    output.TraceStore
	page      output.PageContext
	logger    output.LoggerPort
	opts      Options

	accessLog zerolog.Logger
}

func NewServer(
	inspector input.ToolInspector,
	loop input.AgentLoop,
	traces output.TraceStore,
	page output.PageContext,
	logger output.LoggerPort,
	opts Options,
) *Server {
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stdout
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "info"
	}
	accessLog := httplog.NewLogger("webmcp-agent", httplog.Options{
		JSON:     true,
		Concise:  true,
		LogLevel: opts.LogLevel,
	}).Output(opts.AccessLog)

	return &Server{
		inspector: inspector,
		loop:      loop,
		traces:    traces,
		page:      page,
		logger:    logger.WithField("component", "httpapi"),
		opts:      opts,
		accessLog: accessLog,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(s.accessLog))
	r.Use(middleware.Recoverer)

	r.Get("/status", s.status)

	r.Route("/tools", func(r chi.Router) {
		r.Get("/", s.listTools)
		r.Get("/export", s.exportTools)
		r.Get("/{name}/template", s.toolTemplate)
		r.Post("/{name}/execute", s.executeTool)
	})

	r.Post("/prompt", s.runPrompt)
	r.Get("/prompt/draft", s.getDraft)
	r.Put("/prompt/draft", s.putDraft)
	r.Post("/prompt/suggest", s.suggest)
	r.Post("/reset", s.reset)

	r.Get("/trace", s.currentTrace)
	r.Get("/traces", s.listTraces)
	r.Get("/traces/{id}", s.getTrace)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("HTTP API shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type statusResponse struct {
	State       entity.LoopState `json:"state"`
	PageURL     string           `json:"pageUrl,omitempty"`
	Model       string           `json:"model,omitempty"`
	ToolVersion uint64           `json:"toolVersion,omitempty"`
	ToolCount   int              `json:"toolCount"`
	Draft       string           `json:"draft,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		State: s.loop.State(),
		Model: s.opts.ModelName,
		Draft: s.loop.Draft().Draft(),
	}
	if s.page != nil {
		resp.PageURL = s.page.URL()
	}
	if snap, ok := s.loop.Snapshot(); ok {
		resp.ToolVersion = snap.Version
		resp.ToolCount = len(snap.Tools)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	snap, err := s.inspector.Tools(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) exportTools(w http.ResponseWriter, r *http.Request) {
	format := input.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = input.ExportJSON
	}
	text, err := s.inspector.Export(r.Context(), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == input.ExportJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (s *Server) toolTemplate(w http.ResponseWriter, r *http.Request) {
	name := entity.ToolName(chi.URLParam(r, "name"))
	template, err := s.inspector.Template(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tool": string(name), "template": template})
}

func (s *Server) executeTool(w http.ResponseWriter, r *http.Request) {
	name := entity.ToolName(chi.URLParam(r, "name"))
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		s.writeError(w, r, badRequest(errors.New("input args must be a JSON object")))
		return
	}

	res, err := s.inspector.Execute(r.Context(), name, string(body))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) runPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Prompt == "" {
		s.writeError(w, r, badRequest(errors.New("prompt is required")))
		return
	}

	result, err := s.loop.Run(r.Context(), req.Prompt)
	if err != nil {
		if result != nil {
			writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "result": result})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type draftBody struct {
	Draft string `json:"draft"`
}

func (s *Server) getDraft(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, draftBody{Draft: s.loop.Draft().Draft()})
}

func (s *Server) putDraft(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.loop.Draft().SetDraft(body.Draft)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	text, err := s.loop.SuggestPrompt(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftBody{Draft: text})
}

func (s *Server) reset(w http.ResponseWriter, _ *http.Request) {
	s.loop.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"state": s.loop.State()})
}

func (s *Server) currentTrace(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.loop.Trace())
}

func (s *Server) listTraces(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		writeJSON(w, http.StatusOK, []entity.TraceRecord{})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, badRequest(fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = n
	}

	records, err := s.traces.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []entity.TraceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getTrace(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		s.writeError(w, r, entity.ErrTraceNotFound)
		return
	}
	rec, err := s.traces.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
