package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/leadflow/internal/automation"
	"github.com/teemow/leadflow/internal/instrumentation"
	"github.com/teemow/leadflow/internal/leads"
)

const (
	// DefaultRunTimeout bounds one HTTP-triggered run.
	DefaultRunTimeout = 10 * time.Minute

	bannerText = "Lead Automation is live 🚀"
)

// Runner runs the automation once.
type Runner interface {
	Run(ctx context.Context, trigger string) (*automation.Result, error)
}

// Config configures the trigger server.
type Config struct {
	Addr       string
	Runner     Runner
	Health     *HealthChecker
	Metrics    *instrumentation.Metrics
	Logger     *slog.Logger
	RunTimeout time.Duration
}

// Server is the HTTP trigger for the automation.
type Server struct {
	runner     Runner
	health     *HealthChecker
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	runTimeout time.Duration
	httpServer *http.Server
}

// New creates the trigger server.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthChecker()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	s := &Server{
		runner:     cfg.Runner,
		health:     cfg.Health,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		runTimeout: cfg.RunTimeout,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware(s.metrics, s.logger))

	r.Get("/", s.handleBanner)
	r.Post("/run", s.handleRun)
	s.health.RegisterHealthEndpoints(r)
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting trigger server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server as shutting down and waits for in-flight
// requests, including a running automation, to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	s.logger.Info("shutting down trigger server")
	return s.httpServer.Shutdown(ctx)
}

// RunResponse is the body of POST /run.
type RunResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	RunID   string         `json:"run_id,omitempty"`
	Summary *leads.Summary `json:"summary,omitempty"`
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(bannerText))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("run triggered over HTTP", "request_id", middleware.GetReqID(r.Context()))

	// A client hanging up must not stop a run halfway through the sends.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.runTimeout)
	defer cancel()

	res, err := s.runner.Run(ctx, automation.TriggerHTTP)
	if errors.Is(err, automation.ErrRunInProgress) {
		respondJSON(w, http.StatusConflict, RunResponse{Status: "error", Message: err.Error()})
		return
	}
	s.health.RecordRun(res, err)

	if err != nil {
		resp := RunResponse{Status: "error", Message: err.Error()}
		if res != nil {
			resp.RunID = res.RunID
		}
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}
	respondJSON(w, http.StatusOK, RunResponse{
		Status:  "success",
		Message: "Automation executed",
		RunID:   res.RunID,
		Summary: &res.Summary,
	})
}
