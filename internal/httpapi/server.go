package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/babel/internal/config"
	"github.com/ent0n29/babel/internal/live"
	"github.com/ent0n29/babel/internal/observability"
	"github.com/ent0n29/babel/internal/pipeline"
	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/synth"
	"github.com/ent0n29/babel/internal/transcript"
)

// Deps are the services the HTTP surface drives.
type Deps struct {
	Pipeline *pipeline.Service
	Registry *session.Registry
	Feed     *transcript.Feed
	Driver   *live.Driver
	Synth    *synth.Service
	Metrics  *observability.Metrics
	// MetricsHandler defaults to the process-wide Prometheus registry.
	MetricsHandler http.Handler
}

type Server struct {
	cfg      config.Config
	pipeline *pipeline.Service
	registry *session.Registry
	feed     *transcript.Feed
	driver   *live.Driver
	synth    *synth.Service
	metrics  *observability.Metrics
	metricsH http.Handler
	upgrader websocket.Upgrader
	logger   *log.Logger
}

func New(cfg config.Config, d Deps) *Server {
	metricsH := d.MetricsHandler
	if metricsH == nil {
		metricsH = observability.MetricsHandler()
	}
	return &Server{
		cfg:      cfg,
		pipeline: d.Pipeline,
		registry: d.Registry,
		feed:     d.Feed,
		driver:   d.Driver,
		synth:    d.Synth,
		metrics:  d.Metrics,
		metricsH: metricsH,
		logger:   log.With("component", "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.cfg.AllowAnyOrigin {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.metricsH.ServeHTTP)

	r.Post("/start_stream", s.handleStartStream)
	r.Post("/stop_stream", s.handleStopStream)
	r.Post("/translate_realtime", s.handleTranslate)
	r.Post("/synthesize_speech", s.handleSynthesize)

	r.Get("/stream_transcription", s.handleStreamTranscription)
	r.Get("/stream_translation/{lang}", s.handleStreamTranslation)
	r.Get("/ws/translation/{lang}", s.handleTranslationWS)

	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/perf/translation", s.handlePerfTranslation)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"streaming": s.driver.Running(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"streaming": s.driver.Running(),
		"sessions":  s.registry.Count(),
		"listeners": s.feed.Listeners(),
	})
}

func (s *Server) handleStartStream(w http.ResponseWriter, _ *http.Request) {
	if s.driver.Start() {
		s.logger.Info("stream start requested")
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStopStream(w http.ResponseWriter, _ *http.Request) {
	s.driver.Stop()
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	snap := s.registry.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(snap),
		"sessions": snap,
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
