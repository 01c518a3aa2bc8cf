package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/config"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/database"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/engine"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/handlers"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/refresh"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/store"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			"http://localhost:5173": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Holdings engine starting...")

	var (
		api   services.HoldingsAPI
		local handlers.LocalStore
	)
	if config.Cfg.HoldingsAPIURL != "" {
		logger.L.Info("Using remote holdings API", "url", config.Cfg.HoldingsAPIURL)
		api = services.NewHoldingsClient(config.Cfg.HoldingsAPIURL, config.Cfg.HoldingsAPIToken, config.Cfg.HTTPClientTimeout)
	} else {
		logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
		database.InitDB(config.Cfg.DatabasePath)
		database.RunMigrations()

		st, err := store.New(context.Background(), database.DB, config.Cfg.SystemTags)
		if err != nil {
			stdlog.Fatalf("failed to prepare holdings store: %v", err)
		}
		api = st
		local = st
	}

	viewCache := cache.New(config.Cfg.ViewCacheExpiration, config.Cfg.ViewCacheCleanup)
	eng := engine.New(api, viewCache, refresh.Options{
		BatchSize:   config.Cfg.RefreshBatchSize,
		Concurrency: config.Cfg.RefreshConcurrency,
		Interval:    config.Cfg.RefreshRequestInterval,
	})

	// Warm the default view; a failure here is retried by the first request.
	if _, err := eng.Load(context.Background(), models.DefaultViewState()); err != nil {
		logger.L.Warn("Initial holdings load failed", "error", err)
	}

	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware(limiter))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Holdings engine is running"})
	})

	r.Mount("/api", handlers.Routes(eng, local))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			handlers.NotFound(w, r)
			return
		}
		http.NotFound(w, r)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
