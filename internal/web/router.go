package web

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"thermolog/internal/alerts"
	"thermolog/internal/memguard"
	"thermolog/internal/retention"
	middleware "thermolog/internal/web/middlewares"
)

// Config holds tunables for the HTTP layer.
type Config struct {
	RateLimit      float64 // requests per second
	RateLimitBurst int
	CacheSize      int // history response cache entries
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RateLimit:      5.0,
		RateLimitBurst: 10,
		CacheSize:      128,
	}
}

// NewRouter wires the full middleware chain and all routes. The chain
// order follows request ID first, rate limiting early, then logging and
// metrics; caching sits last, on the history route only, so errors are
// never cached.
func NewRouter(
	store *retention.Store,
	engine *alerts.Engine,
	guardian *memguard.Guardian,
	persist Persister,
	logger *logrus.Logger,
	cfg Config,
) (*gin.Engine, error) {
	s := &Server{
		store:    store,
		alerts:   engine,
		guardian: guardian,
		persist:  persist,
		logger:   logger,
	}

	cache, err := middleware.NewResponseCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	requests, latency := middleware.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(requests, latency)
	registerSystemGauges(registry, store, guardian)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RateLimiting(cfg.RateLimit, cfg.RateLimitBurst))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Metrics(requests, latency))

	r.GET("/", s.handleDashboard)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/current", s.handleCurrent)
		api.GET("/history", cache.Middleware(s.historyCacheKey), s.handleHistory)

		api.GET("/alert/get", s.handleAlertGet(engine.Temperature))
		api.POST("/alert/set", s.handleAlertSet(engine.Temperature))
		api.POST("/alert/acknowledge", s.handleAlertAcknowledge(engine.Temperature))

		api.GET("/humidity-alert/get", s.handleAlertGet(engine.Humidity))
		api.POST("/humidity-alert/set", s.handleAlertSet(engine.Humidity))
		api.POST("/humidity-alert/acknowledge", s.handleAlertAcknowledge(engine.Humidity))

		api.POST("/save", s.handleSave)
	}

	return r, nil
}

// registerSystemGauges exports buffer and heap state for scraping.
func registerSystemGauges(registry *prometheus.Registry, store *retention.Store, guardian *memguard.Guardian) {
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "thermolog_detailed_buffer_size",
			Help: "Entries currently in the detailed buffer.",
		},
		func() float64 {
			detailed, _ := store.Lens()
			return float64(detailed)
		},
	))
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "thermolog_aggregated_buffer_size",
			Help: "Entries currently in the aggregated buffer.",
		},
		func() float64 {
			_, aggregated := store.Lens()
			return float64(aggregated)
		},
	))
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "thermolog_heap_usage_percent",
			Help: "Heap usage as a percentage of the configured budget.",
		},
		guardian.Usage,
	))
	registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "thermolog_emergency_mode",
			Help: "1 while the memory guardian is in emergency mode.",
		},
		func() float64 {
			if guardian.Emergency() {
				return 1
			}
			return 0
		},
	))
}
