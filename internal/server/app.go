package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"guardian-gateway/internal/auth"
	"guardian-gateway/internal/authflow"
	"guardian-gateway/internal/backend"
	"guardian-gateway/internal/config"
	"guardian-gateway/internal/hub"
	"guardian-gateway/internal/metrics"
	"guardian-gateway/internal/middleware"
	"guardian-gateway/internal/realtime"
	"guardian-gateway/internal/session"
	"guardian-gateway/internal/storage"
	"guardian-gateway/internal/store"
)

type AppOptions struct {
	Config   config.Config
	Storage  storage.Storage
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Version  string
	// HTTPClient overrides the backend client, mainly for tests.
	HTTPClient *http.Client
}

// App is the gateway's application context: one session, its caches and
// the push channel.
type App struct {
	Session   *session.Store
	Cache     *store.Store
	Backend   *backend.Client
	Flow      *authflow.Service
	Transport *realtime.Transport
	Watcher   *realtime.Watcher
	Hub       *hub.Hub
	Metrics   *metrics.Collector

	logger       *slog.Logger
	router       *gin.Engine
	loginLimiter *middleware.RateLimiter
	stopState    func()
}

func NewApp(opts AppOptions) *App {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	st := opts.Storage
	if st == nil {
		st = storage.NewMemory()
	}

	a := &App{logger: logger}
	a.Metrics = metrics.NewCollector(reg)
	a.Session = session.New(st, logger)
	a.Cache = store.New()
	a.Hub = hub.New(a.Metrics, logger)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.BackendTimeout}
	}
	a.Backend = backend.New(backend.Options{
		BaseURL:      cfg.BackendBaseURL,
		HTTPClient:   httpClient,
		Tokens:       a.Session,
		Logger:       logger,
		Observer:     a.Metrics,
		CommandRate:  cfg.CommandRatePerSec,
		CommandBurst: cfg.CommandBurst,
	})
	a.Flow = authflow.New(authflow.Options{
		Backend:  a.Backend,
		Session:  a.Session,
		Logger:   logger,
		Recorder: a.Metrics,
	})

	a.Transport = realtime.NewTransport(realtime.TransportOptions{
		URL:        cfg.BackendWSURL,
		Tokens:     a.Session,
		MaxRetries: cfg.WSMaxRetries,
		RetryDelay: cfg.WSRetryDelay,
		HeartBeat:  10 * time.Second,
		Recorder:   a.Metrics,
		Logger:     logger,
	})
	a.Watcher = realtime.NewWatcher(realtime.WatcherOptions{
		Session:      a.Session,
		Transport:    a.Transport,
		Cache:        a.Cache,
		Publisher:    a.Hub,
		Recorder:     a.Metrics,
		SeenCapacity: cfg.NotifyDedupCapacity,
		OnUserChange: a.Cache.Reset,
		Logger:       logger,
	})

	a.Flow.OnLogout(a.Cache.Reset)
	a.Flow.OnLogout(func() { a.Hub.EndSession(auth.RouteLogin) })
	a.stopState = a.Transport.OnState(func(s realtime.State) {
		a.Hub.PublishState(string(s))
	})

	limit := cfg.LoginRateLimit
	if limit <= 0 {
		limit = 10
	}
	a.loginLimiter = middleware.NewRateLimiter(limit, time.Minute)

	a.router = NewRouter(Deps{
		Session:      a.Session,
		Cache:        a.Cache,
		Backend:      a.Backend,
		Flow:         a.Flow,
		Transport:    a.Transport,
		Hub:          a.Hub,
		Metrics:      a.Metrics,
		Gatherer:     reg,
		LoginLimiter: a.loginLimiter,
		Version:      opts.Version,
	})
	return a
}

func (a *App) Router() *gin.Engine { return a.router }

// Start restores a persisted session and brings the push channel up when
// there is one.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Init(ctx); err != nil {
		return err
	}
	a.Watcher.Start()
	if ident := a.Session.Identity(); ident != nil {
		a.logger.Info("session restored", slog.String("user", ident.UserKey()), slog.String("role", string(ident.Role)))
	}
	return nil
}

func (a *App) Close() {
	a.Watcher.Stop()
	a.stopState()
	a.Transport.Close()
	a.Hub.CloseAll()
	a.loginLimiter.Close()
}
