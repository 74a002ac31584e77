package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/guesswho-backend/internal/hub"
	"github.com/DoyleJ11/guesswho-backend/internal/roster"
	"github.com/DoyleJ11/guesswho-backend/internal/ws"
)

type Options struct {
	Logger         *zap.Logger
	OutboxSize     int
	OriginPatterns []string
}

func SetupRoutes(h *hub.Hub, rs *roster.Roster, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	// Public routes
	r.Get("/healthz", Healthz(h))
	r.Get("/roster", Roster(rs))
	r.Get("/sessions/{code}", Session(h))
	r.Get("/sessions/{code}/qr", SessionQR(h, opts.Logger))
	r.Get("/ws", ws.Handler(ws.Config{
		Hub:            h,
		Logger:         opts.Logger,
		OutboxSize:     opts.OutboxSize,
		OriginPatterns: opts.OriginPatterns,
	}))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
