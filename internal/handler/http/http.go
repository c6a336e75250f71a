package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/spf13/afero"
)

const (
	multipartMemory = 32 << 20
	formOverhead    = 1 << 20

	thumbnailMaxAge = 24 * time.Hour
)

type UploadService interface {
	Upload(ctx context.Context, req *entity.UploadRequest) (*entity.Material, error)
	Remove(ctx context.Context, publicPath string) error
}

type DownloadService interface {
	Download(ctx context.Context, clientID, publicPath string) (*entity.Download, error)
	Open(download *entity.Download) (afero.File, error)
}

type ThumbnailService interface {
	Generate(ctx context.Context, sourcePath, format string) (*entity.Thumbnail, error)
	Open(thumb *entity.Thumbnail) (afero.File, error)
}

type CounterService interface {
	GetMaterialCounter(ctx context.Context, publicPath string) (*entity.MaterialCounter, error)
}

type MaintenanceService interface {
	Sweep(ctx context.Context, removeFiles bool) (*entity.SweepReport, error)
	Warm(ctx context.Context, format string) (int, error)
}

type response struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Material *entity.Material `json:"material,omitempty"`
}

func NewUploadHandler(maxFileSize int64, srv UploadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "UploadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(r, log)

		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+formOverhead)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, log, common.ErrFileTooLarge)

				return
			}

			log.Warn("Cannot parse upload form", slog.Any("error", err))
			writeError(w, log, common.ErrMissingField)

			return
		}

		req := &entity.UploadRequest{
			SemesterID:  r.FormValue("semester"),
			BranchID:    r.FormValue("branch"),
			SubjectID:   r.FormValue("subject"),
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
		}

		file, header, err := r.FormFile("pdf")
		if err == nil {
			defer file.Close()
			req.File = file
			req.Filename = header.Filename
		} else if !errors.Is(err, http.ErrMissingFile) {
			log.Warn("Cannot read uploaded file", slog.Any("error", err))
		}

		material, err := srv.Upload(r.Context(), req)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, &response{Success: true, Message: "PDF uploaded and notes updated.", Material: material})
	}
}

func NewRemoveHandler(srv UploadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "RemoveHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(r, log)

		if err := srv.Remove(r.Context(), r.URL.Query().Get("path")); err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, &response{Success: true, Message: "Material removed."})
	}
}

func NewDownloadHandler(srv DownloadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(r, log)

		download, err := srv.Download(r.Context(), clientID(r), r.URL.Query().Get("path"))
		if err != nil {
			writeError(w, log, err)

			return
		}

		f, err := srv.Open(download)
		if err != nil {
			writeError(w, log, err)

			return
		}
		defer f.Close()

		var modTime time.Time
		if info, err := f.Stat(); err == nil {
			modTime = info.ModTime()
		}

		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download.Name}))
		http.ServeContent(w, r, download.Name, modTime, f)
	}
}

func NewThumbnailHandler(srv ThumbnailService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ThumbnailHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(r, log)

		q := r.URL.Query()
		path := q.Get("path")
		if path == "" {
			writeError(w, log, common.ErrEmptyPath)

			return
		}

		thumb, err := srv.Generate(r.Context(), path, q.Get("format"))
		if err != nil {
			writeError(w, log, err)

			return
		}

		f, err := srv.Open(thumb)
		if err != nil {
			writeError(w, log, err)

			return
		}
		defer f.Close()

		var modTime time.Time
		if info, err := f.Stat(); err == nil {
			modTime = info.ModTime()
		}

		w.Header().Set("Content-Type", entity.ContentType(thumb.Format))
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(thumbnailMaxAge.Seconds())))
		http.ServeContent(w, r, "", modTime, f)
	}
}

func NewCounterHandler(srv CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CounterHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(r, log)

		path := r.URL.Query().Get("path")
		if path == "" {
			writeError(w, log, common.ErrEmptyPath)

			return
		}

		counter, err := srv.GetMaterialCounter(r.Context(), path)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, counter)
	}
}

func NewSweepHandler(srv MaintenanceService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SweepHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(r, log)

		remove, _ := strconv.ParseBool(r.URL.Query().Get("remove"))

		report, err := srv.Sweep(r.Context(), remove)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, report)
	}
}

func NewWarmHandler(srv MaintenanceService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "WarmHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLog(r, log)

		rendered, err := srv.Warm(r.Context(), r.URL.Query().Get("format"))
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, map[string]int{"rendered": rendered})
	}
}

// statusOf maps an error to the HTTP status and the message shown to the client.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrMissingField):
		return http.StatusBadRequest, "Missing required fields."
	case errors.Is(err, common.ErrUnsupportedType):
		return http.StatusBadRequest, "Only PDF files are allowed."
	case errors.Is(err, common.ErrFileTooLarge):
		return http.StatusBadRequest, "File size exceeds maximum limit."
	case errors.Is(err, common.ErrInvalidFilename):
		return http.StatusBadRequest, "Invalid filename."
	case errors.Is(err, common.ErrUnsupportedFormat):
		return http.StatusBadRequest, "Unsupported thumbnail format."
	case errors.Is(err, common.ErrConversion):
		return http.StatusBadRequest, "Cannot convert document to PDF."
	case errors.Is(err, common.ErrEmptyPath):
		return http.StatusBadRequest, "Path parameter is required."
	case errors.Is(err, common.ErrPathViolation):
		return http.StatusBadRequest, "Invalid path."
	case errors.Is(err, common.ErrSemesterNotFound):
		return http.StatusNotFound, "Semester not found."
	case errors.Is(err, common.ErrBranchNotFound):
		return http.StatusNotFound, "Branch not found."
	case errors.Is(err, common.ErrSubjectNotFound):
		return http.StatusNotFound, "Subject not found."
	case errors.Is(err, common.ErrMaterialNotFound):
		return http.StatusNotFound, "Material not found."
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrSourceNotFound):
		return http.StatusNotFound, "File not found."
	case errors.Is(err, common.ErrTraversal), errors.Is(err, common.ErrContainment):
		return http.StatusForbidden, "Access denied."
	case errors.Is(err, common.ErrDisallowedExtension):
		return http.StatusForbidden, "Only PDF files can be downloaded."
	case errors.Is(err, common.ErrRenderError):
		return http.StatusUnprocessableEntity, "Cannot render thumbnail."
	case errors.Is(err, common.ErrMaintenanceAlreadyRunning):
		return http.StatusConflict, "Maintenance process has already started."
	case errors.Is(err, common.ErrCatalogUnreadable):
		return http.StatusInternalServerError, "Error reading notes data."
	case errors.Is(err, common.ErrCatalogWrite):
		return http.StatusInternalServerError, "Error updating notes data."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, message := statusOf(err)

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Info("Request rejected", slog.Int("status", status), slog.String("category", common.CategoryOf(err).String()), slog.Any("error", err))
	}

	writeJSON(w, log, status, &response{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Cannot write response", slog.Any("error", err))
	}
}

// clientID identifies the caller for unique download counting.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}

	return host
}
