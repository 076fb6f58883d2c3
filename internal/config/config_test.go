package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("DITTO_API_URL", "cloud.example.test")
	t.Setenv("DITTO_API_KEY", "secret")
	t.Setenv("SYNC_TIMEOUT", "90s")
	t.Setenv("GITHUB_TEST_DOC_ID", "github_test_web_1_2")

	cfg, err := Load(writeEnv(t, ""))
	require.NoError(t, err)
	require.Equal(t, "cloud.example.test", cfg.Ditto.APIURL)
	require.Equal(t, "tasks", cfg.Ditto.Collection)
	require.Equal(t, 90*time.Second, cfg.Poll.Timeout)
	require.Equal(t, 2*time.Second, cfg.Poll.Interval)
	require.Equal(t, "github_test_web_1_2", cfg.CI.TestDocID)
	require.NoError(t, cfg.RequireAPI())
}

func TestLoadEnvFile(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("DITTO_APP_ID")
		os.Unsetenv("SYNC_INTERVAL")
	})
	p := writeEnv(t, "DITTO_APP_ID=from-file\nSYNC_INTERVAL=5s\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Ditto.AppID)
	require.Equal(t, 5*time.Second, cfg.Poll.Interval)
}

func TestLoadReadsBareDurationsAsSeconds(t *testing.T) {
	t.Setenv("SYNC_TIMEOUT", "120")
	t.Setenv("SYNC_INTERVAL", "0.5")
	t.Setenv("SYNC_WARMUP", "2m")

	cfg, err := Load(writeEnv(t, ""))
	require.NoError(t, err)
	require.Equal(t, 120*time.Second, cfg.Poll.Timeout)
	require.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	require.Equal(t, 2*time.Minute, cfg.Poll.Warmup)
	require.Equal(t, 15*time.Second, cfg.Poll.ProgressEvery)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("SYNC_TIMEOUT", "soon")
	t.Setenv("SYNC_INTERVAL", "-3")

	_, err := Load(writeEnv(t, ""))
	require.ErrorContains(t, err, `SYNC_TIMEOUT: invalid duration "soon"`)
	require.ErrorContains(t, err, `SYNC_INTERVAL: negative duration "-3"`)
}

func TestRequireAPIListsMissing(t *testing.T) {
	err := (&Config{}).RequireAPI()
	require.ErrorContains(t, err, "DITTO_API_URL")
	require.ErrorContains(t, err, "DITTO_API_KEY")
}

func TestFindEnvFileWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("X=1\n"), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PWD", nested)

	p, err := FindEnvFile()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, ".env"), p)
}

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}
