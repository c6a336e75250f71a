package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/config"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/jgivc/notehub/internal/pathguard"
	"github.com/jgivc/notehub/internal/repository/catalog"
	"github.com/jgivc/notehub/internal/util"
	"github.com/spf13/afero"
)

const (
	serviceName = "upload"

	semesterDirPrefix = "semester-"
	dateLayout        = "2006-01-02"
	DownloadURLPath   = "/api/download"
)

type Validator interface {
	Validate(req *entity.UploadRequest) (*entity.ValidatedUpload, error)
}

type CatalogRepository interface {
	Update(ctx context.Context, fn func(c *entity.Catalog) error) error
}

type ThumbnailCache interface {
	Generate(ctx context.Context, sourcePath, format string) (*entity.Thumbnail, error)
	Delete(sourcePath string) error
}

type MarkdownRenderer interface {
	ToHTML(src string) (string, error)
}

type Converter interface {
	Convert(ctx context.Context, r io.Reader, sourceFormat string) ([]byte, error)
}

type uploadService struct {
	fs          afero.Fs
	guard       *pathguard.Guard
	baseDir     string
	storageRoot string
	thumbCfg    *config.ThumbnailConfig
	validator   Validator
	repo        CatalogRepository
	thumbs      ThumbnailCache
	md          MarkdownRenderer
	converter   Converter
	now         func() time.Time
	log         *slog.Logger
}

func NewUploadService(cfg *config.Config, validator Validator, repo CatalogRepository, thumbs ThumbnailCache,
	md MarkdownRenderer, converter Converter, log *slog.Logger) *uploadService {
	return NewUploadServiceWithFS(afero.NewOsFs(), cfg, validator, repo, thumbs, md, converter, log)
}

// NewUploadServiceWithFS builds the service on fs. converter may be nil when office formats are disabled.
func NewUploadServiceWithFS(fs afero.Fs, cfg *config.Config, validator Validator, repo CatalogRepository, thumbs ThumbnailCache,
	md MarkdownRenderer, converter Converter, log *slog.Logger) *uploadService {
	return &uploadService{
		fs:          fs,
		guard:       pathguard.New(fs),
		baseDir:     cfg.BaseDir,
		storageRoot: cfg.StorageRoot(),
		thumbCfg:    &cfg.Thumbnails,
		validator:   validator,
		repo:        repo,
		thumbs:      thumbs,
		md:          md,
		converter:   converter,
		now:         time.Now,
		log:         log.With(slog.String("service", serviceName)),
	}
}

// Upload validates req, stores the file under its subject directory and registers a new material.
func (s *uploadService) Upload(ctx context.Context, req *entity.UploadRequest) (*entity.Material, error) {
	v, err := s.validator.Validate(req)
	if err != nil {
		return nil, err
	}

	content, filename, err := s.content(ctx, v)
	if err != nil {
		return nil, err
	}

	descriptionHTML, err := s.md.ToHTML(v.Description)
	if err != nil {
		s.log.Warn("Cannot render description", slog.Any("error", err))
	}

	var (
		material *entity.Material
		replaced bool
	)

	err = s.repo.Update(ctx, func(c *entity.Catalog) error {
		subject, err := catalog.FindSubject(c, v.SemesterID, v.BranchID, v.SubjectID)
		if err != nil {
			return err
		}

		dir, err := s.targetDir(v.SemesterID, v.BranchID, subject.Name)
		if err != nil {
			return err
		}

		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			s.log.Error("Cannot create directory", slog.String("dir", dir), slog.Any("error", err))

			return fmt.Errorf("%w: cannot create directory: %w", common.ErrStorage, err)
		}

		target := filepath.Join(dir, filename)
		replaced, err = afero.Exists(s.fs, target)
		if err != nil {
			s.log.Warn("Cannot check existing file", slog.String("path", target), slog.Any("error", err))
			replaced = true
		}

		if err := afero.WriteReader(s.fs, target, content); err != nil {
			s.log.Error("Cannot save file", slog.String("path", target), slog.Any("error", err))

			return fmt.Errorf("%w: cannot save file: %w", common.ErrStorage, err)
		}

		info, err := s.fs.Stat(target)
		if err != nil {
			return fmt.Errorf("%w: cannot stat saved file: %w", common.ErrStorage, err)
		}

		publicPath, err := s.publicPath(target)
		if err != nil {
			return err
		}

		material = &entity.Material{
			Title:           v.Title,
			Description:     v.Description,
			DescriptionHTML: descriptionHTML,
			Path:            publicPath,
			Type:            entity.MaterialTypePDF,
			Size:            util.FormatKB(info.Size()),
			UploadDate:      s.now().Format(dateLayout),
			DownloadURL:     DownloadURL(publicPath),
		}
		catalog.AppendMaterial(subject, material)

		s.log.Info("File uploaded", slog.String("path", target))

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshThumbnails(ctx, material.Path, replaced)

	return material, nil
}

// Remove deletes every material stored at publicPath, its file and its thumbnails.
func (s *uploadService) Remove(ctx context.Context, publicPath string) error {
	if publicPath == "" {
		return common.ErrEmptyPath
	}

	file := filepath.Join(s.baseDir, strings.TrimLeft(publicPath, "/"))
	if !s.guard.IsSafePath(s.storageRoot, file) {
		s.log.Warn("Material path outside storage root", slog.String("path", publicPath))

		return fmt.Errorf("%w: %s", common.ErrContainment, publicPath)
	}

	err := s.repo.Update(ctx, func(c *entity.Catalog) error {
		removed := 0
		for {
			subject, _, err := catalog.FindMaterial(c, publicPath)
			if err != nil {
				if removed > 0 && errors.Is(err, common.ErrMaterialNotFound) {
					return nil
				}

				return err
			}
			removed += catalog.RemoveMaterial(subject, publicPath)
		}
	})
	if err != nil {
		return err
	}

	if err := s.fs.Remove(file); err != nil && !os.IsNotExist(err) {
		s.log.Error("Cannot delete file", slog.String("path", file), slog.Any("error", err))

		return fmt.Errorf("%w: cannot delete file: %w", common.ErrStorage, err)
	}

	if err := s.thumbs.Delete(publicPath); err != nil {
		s.log.Error("Cannot delete thumbnails", slog.String("path", publicPath), slog.Any("error", err))
	}

	s.log.Info("Material removed", slog.String("path", publicPath))

	return nil
}

// DownloadURL returns the retrieval URL of a stored material.
func DownloadURL(publicPath string) string {
	return DownloadURLPath + "?path=" + url.QueryEscape(publicPath)
}

// content returns the bytes to store and the stored file name. Office documents are converted to PDF first.
func (s *uploadService) content(ctx context.Context, v *entity.ValidatedUpload) (io.Reader, string, error) {
	if v.Extension == entity.MaterialTypePDF {
		return v.File, v.SafeFilename, nil
	}

	if s.converter == nil || !slices.Contains(config.ConvertibleExtensions, v.Extension) {
		return nil, "", fmt.Errorf("%w: %s", common.ErrUnsupportedType, v.Filename)
	}

	data, err := s.converter.Convert(ctx, v.File, v.Extension)
	if err != nil {
		return nil, "", err
	}

	stem := strings.TrimSuffix(v.SafeFilename, "."+v.Extension)

	return bytes.NewReader(data), stem + "." + entity.MaterialTypePDF, nil
}

// targetDir returns {storageRoot}/semester-{id}/{branch}/{subject-slug}. The semester id is used as given,
// so the result is checked against the storage root before it is cleaned.
func (s *uploadService) targetDir(semesterID, branchID, subjectName string) (string, error) {
	branch := util.SanitizeFilename(branchID)
	subject := util.SanitizeFilename(strings.ToLower(strings.ReplaceAll(subjectName, " ", "-")))

	if branch == "" || subject == "" {
		s.log.Error("Empty directory component", slog.String("branch", branchID), slog.String("subject", subjectName))

		return "", fmt.Errorf("%w: empty directory component", common.ErrPathViolation)
	}

	sep := string(filepath.Separator)
	candidate := strings.Join([]string{s.storageRoot, semesterDirPrefix + semesterID, branch, subject}, sep)

	if !s.guard.IsSafePath(s.storageRoot, candidate) {
		s.log.Error("Path traversal attempt detected", slog.String("dir", candidate))

		return "", fmt.Errorf("%w: %s", common.ErrPathViolation, candidate)
	}

	return filepath.Clean(candidate), nil
}

func (s *uploadService) publicPath(target string) (string, error) {
	p, err := util.PublicPath(s.baseDir, target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrPathViolation, err)
	}

	return p, nil
}

func (s *uploadService) refreshThumbnails(ctx context.Context, publicPath string, replaced bool) {
	if replaced {
		if err := s.thumbs.Delete(publicPath); err != nil {
			s.log.Error("Cannot drop stale thumbnails", slog.String("path", publicPath), slog.Any("error", err))
		}
	}

	if !s.thumbCfg.OnUpload {
		return
	}

	if _, err := s.thumbs.Generate(ctx, publicPath, s.thumbCfg.DefaultFormat); err != nil {
		s.log.Warn("Cannot render thumbnail", slog.String("path", publicPath), slog.Any("error", err))
	}
}
