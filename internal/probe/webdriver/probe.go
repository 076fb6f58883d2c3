package webdriver

import (
	"context"
	"fmt"

	"github.com/Makepad-fr/syncprobe/internal/probe"
)

// Probe reads the UI through a live WebDriver session.
type Probe struct {
	name   string
	client *Client
}

var _ probe.Probe = (*Probe)(nil)

// Open starts a session and, when appURL is set, navigates to it.
func Open(ctx context.Context, c *Client, name string, caps map[string]any, appURL string) (*Probe, error) {
	if err := c.NewSession(ctx, caps); err != nil {
		return nil, fmt.Errorf("open session for %s: %w", name, err)
	}
	p := &Probe{name: name, client: c}
	if appURL != "" {
		if err := c.Navigate(ctx, appURL); err != nil {
			_ = c.DeleteSession(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("navigate %s: %w", appURL, err)
		}
	}
	return p, nil
}

func (p *Probe) Name() string { return p.name }

func (p *Probe) Snapshot(ctx context.Context) (probe.Snapshot, error) {
	src, err := p.client.Source(ctx)
	if err != nil {
		return probe.Snapshot{}, err
	}
	return probe.Snapshot{Text: src}, nil
}

func (p *Probe) Screenshot(ctx context.Context) ([]byte, error) {
	return p.client.Screenshot(ctx)
}

func (p *Probe) Close(ctx context.Context) error {
	return p.client.DeleteSession(ctx)
}
