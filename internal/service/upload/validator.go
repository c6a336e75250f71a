package upload

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/jgivc/notehub/internal/util"
	"github.com/ledongthuc/pdf"
)

type validator struct {
	maxFileSize int64
	extensions  []string
	log         *slog.Logger
}

func NewValidator(maxFileSize int64, extensions []string, log *slog.Logger) *validator {
	return &validator{
		maxFileSize: maxFileSize,
		extensions:  extensions,
		log:         log.With(slog.String("item", "UploadValidator")),
	}
}

// Validate checks the upload preconditions in order: required fields, extension, size,
// PDF structure and filename. The file is left positioned at its start.
func (v *validator) Validate(req *entity.UploadRequest) (*entity.ValidatedUpload, error) {
	if req == nil || req.File == nil || req.Filename == "" || blank(req.SemesterID, req.BranchID, req.SubjectID, req.Title, req.Description) {
		v.log.Warn("Upload with missing fields")

		return nil, common.ErrMissingField
	}

	ext := Extension(req.Filename)
	if ext == "" || !slices.Contains(v.extensions, ext) {
		v.log.Warn("Upload with unsupported type", slog.String("filename", req.Filename))

		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedType, req.Filename)
	}

	size, err := probeSize(req.File)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot measure upload: %w", common.ErrStorage, err)
	}

	if size > v.maxFileSize {
		v.log.Warn("Upload exceeds size limit", slog.String("filename", req.Filename), slog.Int64("size", size))

		return nil, fmt.Errorf("%w: %d bytes, limit is %d MB", common.ErrFileTooLarge, size, v.maxFileSize/(1024*1024))
	}

	if ext == entity.MaterialTypePDF {
		if err := checkPDF(req.File, size); err != nil {
			v.log.Warn("Upload is not a PDF document", slog.String("filename", req.Filename), slog.Any("error", err))

			return nil, fmt.Errorf("%w: %w", common.ErrUnsupportedType, err)
		}
	}

	safe := util.SanitizeFilename(req.Filename)
	if safe == "" || Extension(safe) != ext {
		v.log.Warn("Invalid filename after sanitization", slog.String("filename", req.Filename))

		return nil, fmt.Errorf("%w: %s", common.ErrInvalidFilename, req.Filename)
	}

	return &entity.ValidatedUpload{
		UploadRequest: req,
		SafeFilename:  safe,
		Extension:     ext,
		Size:          size,
	}, nil
}

// Extension returns the lowercase text after the last dot of name, or "" when there is none.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}

	return strings.ToLower(name[i+1:])
}

func blank(values ...string) bool {
	for _, val := range values {
		if strings.TrimSpace(val) == "" {
			return true
		}
	}

	return false
}

func probeSize(f io.Seeker) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	return size, nil
}

func checkPDF(r io.ReaderAt, size int64) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("cannot read PDF: %w", err)
	}

	if reader.Trailer().Key("Root").IsNull() {
		return fmt.Errorf("PDF has no document catalog")
	}

	return nil
}
