package api

import (
	// Go Internal Packages
	"net/http"
	"time"

	// External Packages
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

type RouterOptions struct {
	AllowedOrigins []string
	// RateLimit is the number of requests allowed per IP and minute; 0 disables it.
	RateLimit int
	// Metrics and KafkaMetrics are mounted on /metrics and /metrics/kafka when set.
	Metrics      http.Handler
	KafkaMetrics http.Handler
}

func (h *Handler) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}

	r.Get("/healthz", h.Health)
	r.Get("/card", h.Card)
	r.Get("/mode", h.Mode)
	r.Post("/intents", h.ApplyIntent)
	r.Get("/history", h.History)
	r.Get("/cards/{id}/history", h.CardHistory)
	if h.Notifications != nil {
		r.Get("/notifications", h.RecentNotifications)
	}

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.KafkaMetrics != nil {
		r.Method(http.MethodGet, "/metrics/kafka", opts.KafkaMetrics)
	}
	return r
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
