package matrix

import (
	"context"
	"fmt"

	"github.com/Makepad-fr/syncprobe/internal/probe"
	"github.com/Makepad-fr/syncprobe/internal/probe/chrome"
	"github.com/Makepad-fr/syncprobe/internal/probe/cloudprobe"
	"github.com/Makepad-fr/syncprobe/internal/probe/webdriver"
)

// Drivers holds the connection settings for each target kind. A nil Store
// makes cloud targets fail to open.
type Drivers struct {
	Store     cloudprobe.Lister
	WebDriver webdriver.Options
	Chrome    chrome.Options
}

// DefaultOpener opens each target with the driver for its kind. Every
// webdriver target gets its own client.
func DefaultOpener(d Drivers) Opener {
	return func(ctx context.Context, t Target) (probe.Probe, error) {
		switch t.Kind {
		case KindCloud:
			if d.Store == nil {
				return nil, fmt.Errorf("target %q needs the store api", t.Name)
			}
			return cloudprobe.New(t.Name, d.Store), nil
		case KindChrome:
			return chrome.Open(ctx, t.Name, d.Chrome, t.URL)
		case KindWebDriver, "":
			c, err := webdriver.NewClient(d.WebDriver)
			if err != nil {
				return nil, err
			}
			caps := map[string]any{}
			for k, v := range t.Capabilities {
				caps[k] = v
			}
			return webdriver.Open(ctx, c, t.Name, caps, t.URL)
		}
		return nil, fmt.Errorf("unknown target kind %q", t.Kind)
	}
}
