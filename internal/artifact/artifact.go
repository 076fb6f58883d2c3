// Package artifact stores failure diagnostics and build outputs.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/probe"
)

// Sink persists a named blob and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// DirSink writes files under Dir.
type DirSink struct {
	Dir string
}

func (d DirSink) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	p := filepath.Join(d.Dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return p, nil
}

// Multi writes to every sink and returns all locations. It fails only when
// every sink failed.
type Multi []Sink

func (m Multi) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	var locs []string
	var errs []error
	for _, s := range m {
		loc, err := s.Put(ctx, name, data, contentType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locs = append(locs, loc)
	}
	if len(locs) == 0 && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return strings.Join(locs, ","), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName builds a filesystem-safe artifact name.
func FileName(prefix, target, ext string) string {
	t := strings.Trim(unsafeChars.ReplaceAllString(target, "_"), "_")
	return fmt.Sprintf("%s_%s_%s.%s", prefix, t, time.Now().UTC().Format("20060102T150405"), ext)
}

// Capture saves the probe's screenshot and last page source, best effort.
// Failures are logged, never returned.
func Capture(ctx context.Context, log *slog.Logger, sink Sink, p probe.Probe, prefix string, last probe.Snapshot) []string {
	var saved []string

	if png, err := p.Screenshot(ctx); err == nil {
		if loc, err := sink.Put(ctx, FileName(prefix, p.Name(), "png"), png, "image/png"); err == nil {
			saved = append(saved, loc)
			log.Info("screenshot saved", slog.String("location", loc))
		} else {
			log.Warn("screenshot not saved", logger.Err(err))
		}
	} else if !errors.Is(err, probe.ErrNoScreenshot) {
		log.Warn("screenshot failed", logger.Err(err))
	}

	if last.Text != "" {
		name := FileName(prefix, p.Name(), "txt")
		if loc, err := sink.Put(ctx, name, []byte(last.Text), "text/plain"); err == nil {
			saved = append(saved, loc)
		} else {
			log.Warn("page source not saved", logger.Err(err))
		}
	}
	return saved
}
