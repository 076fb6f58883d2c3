package matrix

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	KindCloud     = "cloud"
	KindWebDriver = "webdriver"
	KindChrome    = "chrome" // DevTools protocol, local or remote browser
)

// Target is one device or browser configuration to verify on.
type Target struct {
	Name         string         `yaml:"name"`
	Kind         string         `yaml:"kind"`
	URL          string         `yaml:"url"`
	Capabilities map[string]any `yaml:"capabilities"`
	Timeout      time.Duration  `yaml:"timeout"`
	Warmup       time.Duration  `yaml:"warmup"`
}

// File is the YAML matrix layout.
type File struct {
	Label   string   `yaml:"label" env:"SYNCPROBE_LABEL"`
	HubURL  string   `yaml:"hub_url" env:"WEBDRIVER_URL"`
	Targets []Target `yaml:"targets"`
}

// Load reads and validates a matrix file. Environment variables override
// the scalar fields.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("matrix file: %w", err)
	}
	var f File
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	if len(f.Targets) == 0 {
		return fmt.Errorf("matrix: no targets")
	}
	seen := map[string]bool{}
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.Name == "" {
			return fmt.Errorf("matrix: target %d has no name", i+1)
		}
		if seen[t.Name] {
			return fmt.Errorf("matrix: duplicate target %q", t.Name)
		}
		seen[t.Name] = true
		if t.Kind == "" {
			t.Kind = KindWebDriver
		}
		switch t.Kind {
		case KindCloud, KindWebDriver, KindChrome:
		default:
			return fmt.Errorf("matrix: target %q: unknown kind %q", t.Name, t.Kind)
		}
	}
	return nil
}
