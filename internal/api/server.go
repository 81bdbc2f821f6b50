// Package api serves analysis results and coordinate probes over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/pipeline"
)

// ContextSource yields the analysis context a request should use.
// *pipeline.Holder satisfies it.
type ContextSource interface {
	Current() *pipeline.AnalysisContext
}

// Server holds the HTTP handlers and their shared state.
type Server struct {
	src     ContextSource
	cfg     config.ServerConfig
	cache   *ProbeCache
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewServer creates a server reading contexts from src.
func NewServer(src ContextSource, cfg config.ServerConfig) *Server {
	s := &Server{
		src:   src,
		cfg:   cfg,
		cache: NewProbeCache(cfg.ProbeCacheSize, cfg.ProbeCacheTTL, cfg.GeohashPrecision),
		log:   zap.L().With(zap.String("component", "api")),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Cache exposes the probe cache.
func (s *Server) Cache() *ProbeCache {
	return s.cache
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeoutSecs > 0 {
		r.Use(middleware.Timeout(time.Duration(s.cfg.RequestTimeoutSecs) * time.Second))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimit)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/schools", s.handleFacilities(model.ClassSchool))
	r.Get("/healthcare", s.handleFacilities(model.ClassHealthcare))
	r.Get("/underserved", s.handleUnderserved)
	r.Get("/recommendations", s.handleRecommendations)
	r.Get("/search", s.handleSearch)
	r.Get("/analyze", s.handleAnalyze)
	r.Get("/cache/stats", s.handleCacheStats)
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
