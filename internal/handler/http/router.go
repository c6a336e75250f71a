package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Services struct {
	Upload      UploadService
	Download    DownloadService
	Thumbnails  ThumbnailService
	Counters    CounterService
	Maintenance MaintenanceService
}

func NewRouter(maxFileSize int64, s *Services, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/download", NewDownloadHandler(s.Download, log))
		r.Get("/thumbnail", NewThumbnailHandler(s.Thumbnails, log))
		r.Get("/stats", NewCounterHandler(s.Counters, log))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/upload", NewUploadHandler(maxFileSize, s.Upload, log))
			r.Delete("/materials", NewRemoveHandler(s.Upload, log))
			r.Post("/maintenance/sweep", NewSweepHandler(s.Maintenance, log))
			r.Post("/maintenance/warm", NewWarmHandler(s.Maintenance, log))
		})
	})

	return r
}
