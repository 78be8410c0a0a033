package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/app"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, hub *Hub) http.Handler {
	return newRouter(application.Transcripts, hub, application.Ready, application.Cfg.Storage.MaxUploadBytes)
}

func newRouter(svc TranscriptService, hub *Hub, ready func() bool, maxUploadBytes int64) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handler{svc: svc, maxUploadBytes: maxUploadBytes}

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/upload", h.upload)
		r.Get("/files", h.files)
		r.Delete("/files/{filename}", h.delete)
		r.Get("/transcripts/{filename}", h.transcript)
		r.Post("/retranscribe/{filename}", h.retranscribe)
		r.Post("/rename", h.rename)
		r.Post("/speaker-names", h.speakerNames)
		r.Get("/jobs/{id}", h.job)
		if hub != nil {
			r.Get("/ws", hub.ServeWS)
		}
	})

	return r
}

// requestLogger logs one line per request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Info().
			Str("component", "http").
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
