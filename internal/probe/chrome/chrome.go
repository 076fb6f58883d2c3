// Package chrome drives a Chrome tab over the DevTools protocol. It covers
// the web quickstart without a WebDriver hub: either a local headless
// browser or one already listening for remote debugging.
package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Makepad-fr/syncprobe/internal/probe"
)

type Options struct {
	RemoteURL string // ws:// debugger URL; empty launches a local browser
	ExecPath  string // Chrome binary for local launches
	NoSandbox bool   // needed in most CI containers
}

const startTimeout = 30 * time.Second

type Probe struct {
	name        string
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

var _ probe.Probe = (*Probe)(nil)

// Open starts a tab and navigates it to appURL when set. The browser
// outlives ctx; Close releases it.
func Open(ctx context.Context, name string, opt Options, appURL string) (*Probe, error) {
	base := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if opt.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(base, opt.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("disable-popup-blocking", true),
		)
		if opt.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(opt.ExecPath))
		}
		if opt.NoSandbox {
			opts = append(opts, chromedp.NoSandbox)
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(base, opts...)
	}
	tab, cancelTab := chromedp.NewContext(allocCtx)
	p := &Probe{name: name, tab: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc}

	actions := []chromedp.Action{}
	if appURL != "" {
		actions = append(actions, chromedp.Navigate(appURL))
	}
	if err := p.run(ctx, startTimeout, actions...); err != nil {
		p.release()
		return nil, fmt.Errorf("chrome: start: %w", err)
	}
	return p, nil
}

// run executes actions in the tab, bounded by ctx and timeout.
func (p *Probe) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (p *Probe) Name() string { return p.name }

// Snapshot reads the rendered text of the page.
func (p *Probe) Snapshot(ctx context.Context) (probe.Snapshot, error) {
	var text string
	err := p.run(ctx, 15*time.Second,
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	)
	if err != nil {
		return probe.Snapshot{}, fmt.Errorf("chrome: read text: %w", err)
	}
	return probe.Snapshot{Text: text}, nil
}

func (p *Probe) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 15*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("chrome: screenshot: %w", err)
	}
	return buf, nil
}

func (p *Probe) Close(context.Context) error {
	p.release()
	return nil
}

func (p *Probe) release() {
	p.cancelTab()
	p.cancelAlloc()
}
