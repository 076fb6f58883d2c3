package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/probe"
)

type stubProbe struct {
	png []byte
	err error
}

func (s stubProbe) Name() string { return "Google Pixel 8 (Android 14.0)" }
func (s stubProbe) Snapshot(context.Context) (probe.Snapshot, error) {
	return probe.Snapshot{}, nil
}
func (s stubProbe) Screenshot(context.Context) ([]byte, error) { return s.png, s.err }
func (s stubProbe) Close(context.Context) error                { return nil }

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("disk full")
}

func TestCaptureWritesScreenshotAndSource(t *testing.T) {
	dir := t.TempDir()
	saved := Capture(context.Background(), logger.Discard(), DirSink{Dir: dir},
		stubProbe{png: []byte("png")}, "sync_failed", probe.Snapshot{Text: "<tree/>"})

	require.Len(t, saved, 2)
	require.True(t, strings.HasSuffix(saved[0], ".png"))
	b, err := os.ReadFile(saved[1])
	require.NoError(t, err)
	require.Equal(t, "<tree/>", string(b))
	require.Contains(t, filepath.Base(saved[0]), "sync_failed_Google_Pixel_8_Android_14.0_")
}

func TestCaptureIsBestEffort(t *testing.T) {
	saved := Capture(context.Background(), logger.Discard(), failingSink{},
		stubProbe{err: errors.New("session gone")}, "error", probe.Snapshot{Text: "x"})
	require.Empty(t, saved)

	saved = Capture(context.Background(), logger.Discard(), DirSink{Dir: t.TempDir()},
		stubProbe{err: probe.ErrNoScreenshot}, "error", probe.Snapshot{})
	require.Empty(t, saved)
}

func TestMultiSink(t *testing.T) {
	dir := t.TempDir()
	loc, err := Multi{failingSink{}, DirSink{Dir: dir}}.Put(context.Background(), "a.txt", []byte("a"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a.txt"), loc)

	_, err = Multi{failingSink{}}.Put(context.Background(), "a.txt", nil, "")
	require.ErrorContains(t, err, "disk full")
}

func TestNewMinIOSinkNeedsEndpoint(t *testing.T) {
	_, err := NewMinIOSink(context.Background(), MinIOConfig{})
	require.Error(t, err)
}
