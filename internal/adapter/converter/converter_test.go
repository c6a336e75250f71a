package converter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/config"
	"github.com/stretchr/testify/require"
)

// Arguments: --headless --convert-to pdf --outdir DIR INPUT
const (
	copyScript = `#!/bin/sh
in="$6"
base=$(basename "$in")
cp "$in" "$5/${base%.*}.pdf"
`
	sleepScript = `#!/bin/sh
exec sleep 10
`
	failScript = `#!/bin/sh
echo "source file could not be loaded" >&2
exit 1
`
)

func newConverter(t *testing.T, script string, timeout time.Duration) *officeConverter {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available")
	}

	bin := filepath.Join(t.TempDir(), "soffice")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	cfg := &config.ConverterConfig{Enabled: true, Binary: bin, Timeout: timeout}

	return NewOfficeConverter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConvert(t *testing.T) {
	c := newConverter(t, copyScript, 5*time.Second)

	data, err := c.Convert(context.Background(), strings.NewReader("lecture notes"), "txt")
	require.NoError(t, err)
	require.Equal(t, "lecture notes", string(data))
}

func TestConvertFailures(t *testing.T) {
	testCases := []struct {
		name    string
		script  string
		format  string
		timeout time.Duration
	}{
		{name: "Scenario 1: Unsupported source format", script: copyScript, format: "exe", timeout: time.Second},
		{name: "Scenario 2: Process fails", script: failScript, format: "docx", timeout: 5 * time.Second},
		{name: "Scenario 3: Process exceeds timeout", script: sleepScript, format: "pptx", timeout: 200 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newConverter(t, tc.script, tc.timeout)

			start := time.Now()
			_, err := c.Convert(context.Background(), strings.NewReader("x"), tc.format)
			require.ErrorIs(t, err, common.ErrConversion)
			require.Less(t, time.Since(start), 5*time.Second)
		})
	}
}
