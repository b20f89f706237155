package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/provider-search/internal/api"
	"github.com/onnwee/provider-search/internal/auth"
	"github.com/onnwee/provider-search/internal/config"
	"github.com/onnwee/provider-search/internal/corpus"
	"github.com/onnwee/provider-search/internal/db"
	"github.com/onnwee/provider-search/internal/features"
	"github.com/onnwee/provider-search/internal/health"
	"github.com/onnwee/provider-search/internal/middleware"
	"github.com/onnwee/provider-search/internal/persona"
	"github.com/onnwee/provider-search/internal/ranking"
	"github.com/onnwee/provider-search/internal/retrieval"
	"github.com/onnwee/provider-search/internal/search"
	"github.com/onnwee/provider-search/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Watcher debounce and in-memory limiter cleanup cadence.
const (
	personaWatchDebounce = 250 * time.Millisecond
	rateLimitCleanup     = 5 * time.Minute
)

// app holds the assembled HTTP handler and everything that must be released
// on shutdown.
type app struct {
	handler http.Handler
	store   *persona.Store
	index   *retrieval.Index

	closers []func(context.Context) error
}

// newApp wires configuration into the service graph: personas, corpus,
// retrieval index, reranker, rate limiting, admin auth and the middleware chain.
// On error everything opened so far is released.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			if cerr := a.Close(context.Background()); cerr != nil {
				logger.Error("cleanup after failed startup", "error", cerr)
			}
			a = nil
		}
	}()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    api.ServiceName,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	})
	if err != nil {
		return a, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.onClose(tp.Shutdown)

	// Metrics live on a private registry so tests can build several apps.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	rankingMetrics := ranking.NewMetrics()
	retrievalMetrics := retrieval.NewMetrics()
	personaMetrics := persona.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		httpMetrics.Register, rankingMetrics.Register, retrievalMetrics.Register, personaMetrics.Register,
	} {
		if err := register(registry); err != nil {
			return a, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	// Personas
	loadPersonas := func() (*persona.Registry, error) { return persona.LoadDir(cfg.PersonaDir) }
	personas, err := loadPersonas()
	if err != nil {
		return a, fmt.Errorf("failed to load personas: %w", err)
	}
	a.store = persona.NewStore(personas, personaMetrics)
	logger.Info("personas loaded", "dir", cfg.PersonaDir, "count", personas.Len(), "ids", personas.IDs())

	if cfg.WatchPersonas {
		watcher, err := persona.NewWatcher(cfg.PersonaDir, a.store, loadPersonas, personaWatchDebounce)
		if err != nil {
			return a, err
		}
		watcher.Start()
		a.onClose(func(context.Context) error { return watcher.Stop() })
		logger.Info("watching persona directory", "dir", cfg.PersonaDir)
	}

	// Corpus and index
	healthCfg := api.HealthHandlersConfig{PersonaChecker: health.NewPersonaChecker(a.store)}
	var pool *sql.DB
	if cfg.DatabaseURL != "" {
		pool, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return a, err
		}
		a.onClose(func(context.Context) error { return pool.Close() })
		healthCfg.DBChecker = health.NewDBChecker(pool, cfg.ProvidersTable)
	}
	source, err := corpus.NewSource(cfg, pool)
	if err != nil {
		return a, err
	}
	if err := a.openIndex(ctx, cfg, source, &healthCfg, logger); err != nil {
		return a, err
	}
	retriever := retrieval.Instrument(a.index, retrievalMetrics)

	// Ranking
	limits := features.DefaultLimits()
	limits.ReviewCeiling = float64(cfg.ReviewCeiling)
	reranker := ranking.NewReranker(features.NewExtractor(limits), a.store, rankingMetrics)
	service := search.NewService(retriever, reranker, a.store, search.Config{
		CandidatePool:    cfg.CandidatePool,
		RetrievalTimeout: cfg.RetrievalTimeout(),
		ExplainTopN:      cfg.ExplainTopN,
	})

	// Rate limiting: Redis when configured so limits hold across replicas.
	var limitStore middleware.LimitStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return a, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.onClose(func(context.Context) error { return client.Close() })
		limitStore = middleware.NewRedisStore(client, httpMetrics)
		healthCfg.RedisChecker = health.NewRedisChecker(client)
		logger.Info("using redis rate limit store")
	} else {
		memStore := middleware.NewMemoryStore()
		stop := startCleanup(memStore, rateLimitCleanup)
		a.onClose(func(context.Context) error { stop(); return nil })
		limitStore = memStore
	}

	routes := api.RouterConfig{
		Personas: api.NewPersonaHandlers(a.store),
		Search:   api.NewSearchHandlers(service),
		Health:   api.NewHealthHandlers(healthCfg),
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Version:  version,
	}
	if cfg.SearchRateLimitPerMinute > 0 {
		routes.SearchLimiter = middleware.RateLimit(limitStore,
			middleware.SearchLimit(cfg.SearchRateLimitPerMinute),
			middleware.ClientIP(cfg.TrustProxyHeaders), httpMetrics)
	}
	if cfg.AdminEnabled() {
		jwtService := auth.NewJWTServiceWithRotation(cfg.AdminJWTSecret, cfg.AdminJWTPreviousSecret)
		routes.Admin = api.NewAdminHandlers(a.store, loadPersonas)
		routes.AdminGuard = middleware.RequireAdmin(jwtService, httpMetrics)
		routes.AdminLimiter = middleware.RateLimit(limitStore, middleware.AdminLimit(),
			middleware.SubjectOrIP(cfg.TrustProxyHeaders), httpMetrics)
	} else {
		logger.Info("admin routes disabled: ADMIN_JWT_SECRET not set")
	}

	// Middleware chain, outermost first:
	// Tracing -> RequestID -> Logging -> HTTPMetrics -> CORS -> routes
	var handler http.Handler = api.NewRouter(routes)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Tracing(api.ServiceName)(handler)
	a.handler = handler

	return a, nil
}

// openIndex opens or builds the bleve index and registers it for readiness and shutdown.
func (a *app) openIndex(ctx context.Context, cfg *config.Config, source corpus.Source, healthCfg *api.HealthHandlersConfig, logger *slog.Logger) error {
	idx, err := retrieval.OpenOrBuild(ctx, cfg.IndexDir, source)
	if err != nil {
		return fmt.Errorf("failed to open provider index: %w", err)
	}
	a.onClose(func(context.Context) error { return idx.Close() })
	a.index = idx
	healthCfg.IndexChecker = idx

	if n, err := idx.DocCount(); err == nil {
		logger.Info("provider index ready", "dir", cfg.IndexDir, "documents", n)
	}
	return nil
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// startCleanup periodically drops ended in-memory rate limit windows.
// The returned function stops the loop.
func startCleanup(store *middleware.MemoryStore, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				store.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
