package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/logging"
	"github.com/mohammad-safakhou/itturia/internal/sefaria"
	"github.com/mohammad-safakhou/itturia/internal/store"
	"github.com/mohammad-safakhou/itturia/provider"
)

var serverTracer trace.Tracer = otel.Tracer("itturia/internal/server")

// Deps are the collaborators the HTTP API is built from. Recorder, Metrics,
// Sefaria and Logger are optional.
type Deps struct {
	Config   *config.Config
	Models   *provider.Registry
	Index    core.Searcher
	Store    store.RunStore
	Sefaria  *sefaria.Client
	Recorder interface {
		core.Recorder
		SetIndexHealthy(bool)
	}
	Metrics prometheus.Gatherer
	Logger  *zap.Logger
}

type Server struct {
	e        *echo.Echo
	deps     Deps
	logger   *zap.Logger
	healthy  atomic.Bool
	watchdog *Watchdog
}

// New validates the index once and mounts every route.
func New(ctx context.Context, deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Models == nil || deps.Index == nil || deps.Store == nil {
		return nil, errors.New("server: config, models, index and store are required")
	}
	s := &Server{deps: deps, logger: logging.OrNop(deps.Logger).Named("http")}
	s.setHealthy(deps.Index.Validate(ctx))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New()}
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError
	origins := deps.Config.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/readyz", s.ready)
	gatherer := deps.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	secret := []byte(deps.Config.Server.JWTSecret)
	auth := &AuthHandler{Secret: secret, PasswordHash: deps.Config.Server.AdminPasswordHash, TTL: deps.Config.Server.TokenTTL}
	auth.Register(api.Group("/auth"))

	protected := api.Group("")
	if len(secret) > 0 {
		protected.Use(EchoAuthMiddleware(secret))
	}
	sh := &SearchHandler{srv: s}
	sh.Register(protected)
	rh := &RunsHandler{store: deps.Store}
	rh.Register(protected.Group("/runs"))
	protected.GET("/providers", s.providers)
	if deps.Sefaria != nil {
		th := &TextsHandler{client: deps.Sefaria}
		th.Register(protected)
	}

	s.e = e
	return s, nil
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

// Start serves until ctx is cancelled, then shuts down gracefully. The index
// watchdog runs alongside when search.validate_cron is set.
func (s *Server) Start(ctx context.Context) error {
	if spec := s.deps.Config.Search.ValidateCron; spec != "" {
		s.watchdog = &Watchdog{
			Spec:     spec,
			Index:    s.deps.Index,
			OnResult: s.setHealthy,
			Stop:     make(chan struct{}),
			Logger:   s.logger.Named("watchdog"),
		}
		s.watchdog.Start()
		defer close(s.watchdog.Stop)
	}

	addr := s.deps.Config.Server.Address
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- s.e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Healthy reports the last index validation result.
func (s *Server) Healthy() bool { return s.healthy.Load() }

func (s *Server) setHealthy(ok bool) {
	s.healthy.Store(ok)
	if s.deps.Recorder != nil {
		s.deps.Recorder.SetIndexHealthy(ok)
	}
}

// orchestrator builds a loop bound to the named provider.
func (s *Server) orchestrator(name string) (*core.Orchestrator, string, error) {
	lm, err := s.deps.Models.Get(name)
	if err != nil {
		return nil, "", err
	}
	loop := s.deps.Config.Loop
	opts := []core.Option{
		core.WithLogger(s.logger.Named("loop")),
		core.WithDefaults(loop.NumResults, loop.MaxIterations),
		core.WithCallTimeout(loop.CallTimeout),
	}
	if s.deps.Recorder != nil {
		opts = append(opts, core.WithRecorder(s.deps.Recorder))
	}
	return core.NewOrchestrator(lm, s.deps.Index, opts...), lm.Name(), nil
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	fields := []zap.Field{
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("remote", c.RealIP()),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, HTTPError{Error: msg})
	}
}

// Readiness
//
//	@Summary	Readiness probe
//	@Tags		ops
//	@Produce	plain
//	@Success	200	{string}	string	"ok"
//	@Failure	503	{object}	HTTPError
//	@Router		/readyz [get]
func (s *Server) ready(c echo.Context) error {
	if !s.Healthy() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "index unavailable")
	}
	return c.String(http.StatusOK, "ok")
}

// Providers
//
//	@Summary	List language model providers
//	@Tags		search
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	ProvidersResponse
//	@Router		/api/providers [get]
func (s *Server) providers(c echo.Context) error {
	return c.JSON(http.StatusOK, ProvidersResponse{Providers: s.deps.Models.Names(), Default: s.deps.Models.Default()})
}
