// Package probe abstracts "look at what the app is showing right now".
package probe

import (
	"context"
	"errors"
)

// ErrNoScreenshot is returned by probes that have nothing to capture.
var ErrNoScreenshot = errors.New("probe: screenshots not supported")

// Snapshot is the text a probe could read from the app's UI.
type Snapshot struct {
	Text string
}

type Probe interface {
	Name() string
	Snapshot(ctx context.Context) (Snapshot, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}
