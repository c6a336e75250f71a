package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/config"
	"github.com/spf13/afero"
)

const (
	tempDirPrefix = "notehub-convert-"
	waitDelay     = time.Second
)

// officeConverter turns office documents into PDF with a headless office suite process.
type officeConverter struct {
	fs  afero.Fs
	cfg *config.ConverterConfig
	log *slog.Logger
}

func NewOfficeConverter(cfg *config.ConverterConfig, log *slog.Logger) *officeConverter {
	return &officeConverter{
		fs:  afero.NewOsFs(),
		cfg: cfg,
		log: log.With(slog.String("item", "OfficeConverter")),
	}
}

// Convert returns the PDF rendition of r. The external process is killed when cfg.Timeout passes.
func (c *officeConverter) Convert(ctx context.Context, r io.Reader, sourceFormat string) ([]byte, error) {
	if !slices.Contains(config.ConvertibleExtensions, sourceFormat) {
		return nil, fmt.Errorf("%w: cannot convert %s", common.ErrConversion, sourceFormat)
	}

	dir, err := afero.TempDir(c.fs, "", tempDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot create work dir: %w", common.ErrConversion, err)
	}
	defer func() {
		if err := c.fs.RemoveAll(dir); err != nil {
			c.log.Warn("Cannot remove work dir", slog.String("dir", dir), slog.Any("error", err))
		}
	}()

	input := filepath.Join(dir, "document."+sourceFormat)
	if err := afero.WriteReader(c.fs, input, r); err != nil {
		return nil, fmt.Errorf("%w: cannot write input: %w", common.ErrConversion, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Binary, "--headless", "--convert-to", "pdf", "--outdir", dir, input)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.log.Error("Conversion timed out", slog.Duration("timeout", c.cfg.Timeout))

			return nil, fmt.Errorf("%w: timed out after %s", common.ErrConversion, c.cfg.Timeout)
		}

		c.log.Error("Conversion failed", slog.String("output", string(out)), slog.Any("error", err))

		return nil, fmt.Errorf("%w: %w", common.ErrConversion, err)
	}

	data, err := afero.ReadFile(c.fs, filepath.Join(dir, "document.pdf"))
	if err != nil {
		return nil, fmt.Errorf("%w: no output produced: %w", common.ErrConversion, err)
	}

	c.log.Info("Document converted", slog.String("format", sourceFormat), slog.Duration("took", time.Since(start)))

	return data, nil
}
