package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/domain/org"
	"evalconsole/internal/platform/apiclient"
	"evalconsole/internal/platform/cache"
	"evalconsole/internal/platform/config"
	"evalconsole/internal/platform/db"
	"evalconsole/internal/platform/jobs"
	"evalconsole/internal/platform/journal"
	"evalconsole/internal/platform/metrics"
	authhandler "evalconsole/internal/transport/http/handlers/auth"
	evaluationshandler "evalconsole/internal/transport/http/handlers/evaluations"
	opshandler "evalconsole/internal/transport/http/handlers/ops"
	orghandler "evalconsole/internal/transport/http/handlers/org"
	"evalconsole/internal/transport/http/middleware"
)

const (
	idempotencyCapacity = 4096
	idempotencyTTL      = 24 * time.Hour
	jsonBodyBytes       = 1 << 20
)

// App holds everything the router needs. Journal and Jobs are nil when no
// database is configured.
type App struct {
	Config      config.Config
	API         *apiclient.Client
	Evaluations *evaluation.Service
	Org         *org.Service
	Journal     *journal.Service
	Jobs        *jobs.Service
	Metrics     *metrics.Collector
}

func Run() {
	cfg := config.Load()
	configureLogging(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.JournalEnabled() {
		var err error
		pool, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.RunMigrations {
			if err := journal.Migrate(ctx, pool); err != nil {
				slog.Error("migrations failed", "err", err)
				os.Exit(1)
			}
		}
	}

	app, err := New(cfg, pool)
	if err != nil {
		slog.Error("server setup failed", "err", err)
		os.Exit(1)
	}
	if app.Jobs != nil {
		app.Jobs.Start(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "err", err)
		}
	}()

	slog.Info("evaluation console listening", "addr", cfg.Addr, "api", cfg.APIBaseURL, "journal", pool != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func configureLogging(cfg config.Config) {
	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}

// New wires the services. pool may be nil.
func New(cfg config.Config, pool *pgxpool.Pool) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("display timezone: %w", err)
	}
	collector := metrics.New()

	client := apiclient.New(cfg.APIBaseURL, cfg.APITimeout)
	client.Metrics = collector

	ttls := map[string]time.Duration{
		evaluation.CacheEvaluation:   cfg.CacheEvaluationTTL,
		evaluation.CacheActivity:     cfg.CacheEvaluationTTL,
		evaluation.CacheEvaluations:  cfg.CacheCollectionTTL,
		evaluation.CacheObjectives:   cfg.CacheCollectionTTL,
		evaluation.CacheCompetencies: cfg.CacheCollectionTTL,
		org.CacheEmployees:           cfg.CacheCollectionTTL,
		org.CachePlacements:          cfg.CacheCollectionTTL,
		org.CacheUsers:               cfg.CacheReferenceTTL,
	}
	for _, level := range org.Levels {
		ttls[org.CacheNamespace(level)] = cfg.CacheReferenceTTL
	}
	readCache := cache.New(cache.Config{DefaultTTL: cfg.CacheCollectionTTL, TTLs: ttls})
	readCache.Metrics = collector

	app := &App{Config: cfg, API: client, Metrics: collector}

	// An untyped nil keeps the service's journal check honest.
	var transitions evaluation.Journal
	if pool != nil {
		app.Journal = journal.New(pool)
		app.Jobs = jobs.New(pool)
		app.Jobs.Every(jobs.JobJournalSweep, cfg.JournalSweepInterval, app.sweep)
		transitions = app.Journal
	}

	app.Evaluations = evaluation.NewService(client, readCache, transitions)
	app.Evaluations.Location = loc
	app.Org = org.NewService(client, readCache)
	return app, nil
}

func (a *App) sweep(ctx context.Context) (any, error) {
	res, err := a.Journal.Sweep(ctx, a.Config.JournalRetention, time.Now())
	if err != nil {
		return nil, err
	}
	if res.Unresolved > 0 {
		slog.Warn("unresolved transitions in journal", "count", res.Unresolved)
	}
	return res, nil
}

func (a *App) Router() http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production", apiOrigin(cfg.APIBaseURL)))
	router.Use(middleware.BodyLimit(jsonBodyBytes, cfg.MaxBodyBytes))
	router.Use(middleware.Auth)
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.Journal != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.Journal.Ping(ctx); err != nil {
				http.Error(w, "journal not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	var store opshandler.JournalStore
	var sweep jobs.RunFunc
	if a.Journal != nil {
		store = a.Journal
		sweep = a.sweep
	}
	var snap opshandler.Snapshotter
	if cfg.MetricsEnabled {
		snap = a.Metrics
	}
	opsHandler := opshandler.NewHandler(store, a.Jobs, sweep, snap)
	router.With(middleware.RequireUser).Get("/metrics", opsHandler.HandleMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(a.API, a.Org)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/refresh", authHandler.HandleRefresh)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/auth/me", authHandler.HandleMe)
			r.Get("/profile", authHandler.HandleProfile)
			r.Patch("/profile", authHandler.HandleUpdateProfile)
			r.Post("/auth/change-password", authHandler.HandleChangePassword)
		})

		evaluationsHandler := evaluationshandler.NewHandler(a.Evaluations, middleware.NewIdempotencyStore(idempotencyCapacity, idempotencyTTL))
		evaluationsHandler.RegisterRoutes(r)

		orgHandler := orghandler.NewHandler(a.Org)
		orgHandler.RegisterRoutes(r)

		opsHandler.RegisterRoutes(r)
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})
	return router
}

func apiOrigin(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, filepath.Clean("/"+r.URL.Path))
	_, err := os.Stat(path)
	if err == nil {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}

	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
