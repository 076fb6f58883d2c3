package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the CLI reads from the environment.
type Config struct {
	Env      string
	LogLevel string
	Ditto    DittoConfig
	CI       CIConfig
	Poll     PollConfig
	Driver   DriverConfig
	Artifact ArtifactConfig
	GitHub   GitHubConfig

	MetricsFile string
	HistoryFile string
}

type DittoConfig struct {
	AppID        string
	APIURL       string
	APIKey       string
	WebsocketURL string
	Collection   string
	RateLimit    float64 // requests per second against the HTTP API
}

type CIConfig struct {
	RunID     string
	RunNumber string
	TestDocID string
	Branch    string
}

type PollConfig struct {
	Timeout       time.Duration
	Interval      time.Duration
	ProgressEvery time.Duration
	Warmup        time.Duration
}

// DriverConfig points at a W3C WebDriver hub and, for chrome targets, at a
// DevTools endpoint or a local browser binary.
type DriverConfig struct {
	HubURL    string
	Username  string
	AccessKey string

	ChromeURL       string
	ChromePath      string
	ChromeNoSandbox bool
}

type ArtifactConfig struct {
	Dir   string
	MinIO MinIOConfig
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type GitHubConfig struct {
	Token  string
	Repo   string // owner/name
	APIURL string
}

// Load reads the nearest .env (walking up from the working directory) and
// then the process environment. Process variables win over .env values.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, err
		}
	} else if p, err := FindEnvFile(); err == nil {
		_ = godotenv.Load(p)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SYNCPROBE_ENV", "local")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DITTO_COLLECTION", "tasks")
	v.SetDefault("DITTO_API_RATE", 5.0)
	v.SetDefault("SYNC_TIMEOUT", "60s")
	v.SetDefault("SYNC_INTERVAL", "2s")
	v.SetDefault("SYNC_PROGRESS_EVERY", "15s")
	v.SetDefault("SYNC_WARMUP", "0s")
	v.SetDefault("WEBDRIVER_URL", "http://localhost:4444/wd/hub")
	v.SetDefault("ARTIFACT_DIR", "artifacts")
	v.SetDefault("MINIO_BUCKET", "syncprobe")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("SYNCPROBE_HISTORY", defaultHistoryPath())

	cfg := &Config{
		Env:      v.GetString("SYNCPROBE_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Ditto: DittoConfig{
			AppID:        v.GetString("DITTO_APP_ID"),
			APIURL:       v.GetString("DITTO_API_URL"),
			APIKey:       v.GetString("DITTO_API_KEY"),
			WebsocketURL: v.GetString("DITTO_WEBSOCKET_URL"),
			Collection:   v.GetString("DITTO_COLLECTION"),
			RateLimit:    v.GetFloat64("DITTO_API_RATE"),
		},
		CI: CIConfig{
			RunID:     v.GetString("GITHUB_RUN_ID"),
			RunNumber: v.GetString("GITHUB_RUN_NUMBER"),
			TestDocID: v.GetString("GITHUB_TEST_DOC_ID"),
			Branch:    v.GetString("GITHUB_REF_NAME"),
		},
		Driver: DriverConfig{
			HubURL:    v.GetString("WEBDRIVER_URL"),
			Username:  v.GetString("WEBDRIVER_USERNAME"),
			AccessKey: v.GetString("WEBDRIVER_ACCESS_KEY"),

			ChromeURL:       v.GetString("CHROME_REMOTE_URL"),
			ChromePath:      v.GetString("CHROME_PATH"),
			ChromeNoSandbox: v.GetBool("CHROME_NO_SANDBOX"),
		},
		Artifact: ArtifactConfig{
			Dir: v.GetString("ARTIFACT_DIR"),
			MinIO: MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
				Bucket:    v.GetString("MINIO_BUCKET"),
			},
		},
		GitHub: GitHubConfig{
			Token:  firstNonEmpty(v.GetString("GITHUB_TOKEN"), v.GetString("GH_TOKEN")),
			Repo:   v.GetString("GITHUB_REPOSITORY"),
			APIURL: v.GetString("GITHUB_API_URL"),
		},
		MetricsFile: v.GetString("SYNCPROBE_METRICS_FILE"),
		HistoryFile: v.GetString("SYNCPROBE_HISTORY"),
	}

	var errs []error
	for _, f := range []struct {
		key string
		dst *time.Duration
	}{
		{"SYNC_TIMEOUT", &cfg.Poll.Timeout},
		{"SYNC_INTERVAL", &cfg.Poll.Interval},
		{"SYNC_PROGRESS_EVERY", &cfg.Poll.ProgressEvery},
		{"SYNC_WARMUP", &cfg.Poll.Warmup},
	} {
		d, err := parseDuration(v.GetString(f.key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.key, err))
			continue
		}
		*f.dst = d
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration reads a Go duration ("90s", "2m"). A bare number is taken
// as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", raw)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// RequireAPI reports the Ditto HTTP API settings that are missing.
func (c *Config) RequireAPI() error {
	var missing []string
	if c.Ditto.APIURL == "" {
		missing = append(missing, "DITTO_API_URL")
	}
	if c.Ditto.APIKey == "" {
		missing = append(missing, "DITTO_API_KEY")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

// FindEnvFile looks for .env in the working directory and its parents.
func FindEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "syncprobe-history.json"
	}
	return filepath.Join(home, ".syncprobe", "history.json")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
