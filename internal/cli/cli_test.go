package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/syncprobe/internal/auth"
	"github.com/Makepad-fr/syncprobe/internal/config"
	"github.com/Makepad-fr/syncprobe/internal/model"
	"github.com/Makepad-fr/syncprobe/internal/probe/webdriver/webdrivertest"
	"github.com/Makepad-fr/syncprobe/internal/store/cloud"
	"github.com/Makepad-fr/syncprobe/internal/store/cloud/cloudtest"
	"github.com/Makepad-fr/syncprobe/internal/store/jsonstore"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

const apiKey = "test-key"

type harness struct {
	t      *testing.T
	srv    *cloudtest.Server
	opt    Options
	dir    string
	out    bytes.Buffer
	errOut bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Setenv(auth.EnvKey, "")
	for _, k := range []string{"WEBDRIVER_URL", "SYNCPROBE_LABEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	h := &harness{t: t, srv: cloudtest.New(apiKey), dir: t.TempDir()}
	t.Cleanup(h.srv.Close)
	h.opt = Options{
		Config: &config.Config{
			Ditto: config.DittoConfig{APIURL: h.srv.URL, APIKey: apiKey, Collection: "tasks"},
			CI:    config.CIConfig{RunID: "8812345", RunNumber: "42"},
			Poll:  config.PollConfig{Timeout: 300 * time.Millisecond, Interval: 5 * time.Millisecond},
			Artifact: config.ArtifactConfig{
				Dir: filepath.Join(h.dir, "artifacts"),
			},
			HistoryFile: filepath.Join(h.dir, "history.json"),
			MetricsFile: filepath.Join(h.dir, "syncprobe.prom"),
		},
		Auth: auth.Store{Dir: filepath.Join(h.dir, "creds")},
	}

	prevOut, prevErr := ui.Stdout, ui.Stderr
	ui.Stdout, ui.Stderr = &h.out, &h.errOut
	ui.SetColorForcing(false, true)
	t.Cleanup(func() {
		ui.Stdout, ui.Stderr = prevOut, prevErr
		ui.SetColorForcing(false, false)
	})
	return h
}

func (h *harness) run(args ...string) int {
	h.out.Reset()
	h.errOut.Reset()
	return Run(context.Background(), args, h.opt)
}

func (h *harness) tasks() []model.Task {
	c, err := cloud.New(cloud.Options{BaseURL: h.srv.URL, APIKey: apiKey})
	require.NoError(h.t, err)
	ts, err := c.List(context.Background(), true)
	require.NoError(h.t, err)
	return ts
}

func TestSeedVerifyAndHistory(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("seed", "-label", "KMP Android", "-verify"))
	const id = "github_test_kmp-android_8812345_42"
	doc, ok := h.srv.Doc(id)
	require.True(t, ok)
	require.Equal(t, "GitHub KMP Android Test 8812345", doc["title"])
	require.Equal(t, false, doc["deleted"])
	require.Contains(t, h.out.String(), "export GITHUB_TEST_DOC_ID="+id)

	require.Equal(t, 0, h.run("verify", "-label", "KMP Android"))
	require.Contains(t, h.out.String(), "Sync verification")

	runs, err := jsonstore.New(h.opt.Config.HistoryFile).Load()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.True(t, runs[0].Passed())
	require.Equal(t, id, runs[0].DocID)

	prom, err := os.ReadFile(h.opt.Config.MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(prom), `syncprobe_verifications_total{result="pass",target="cloud"} 1`)

	require.Equal(t, 0, h.run("history"))
	require.Contains(t, h.out.String(), id)
}

func TestSeedUsesDocIDFromCI(t *testing.T) {
	h := newHarness(t)
	h.opt.Config.CI.TestDocID = "github_test_web_99_7"

	require.Equal(t, 0, h.run("seed", "-label", "Web"))
	doc, ok := h.srv.Doc("github_test_web_99_7")
	require.True(t, ok)
	require.Equal(t, "GitHub Web Test 99", doc["title"])
}

func TestVerifyFailsWhenDocumentNeverSyncs(t *testing.T) {
	h := newHarness(t)
	h.srv.Put(model.Task{ID: "other", Title: "unrelated"}.Map())

	require.Equal(t, 1, h.run("verify", "-id", "github_test_ios_1_2"))
	require.Contains(t, h.out.String(), "did not sync within the timeout")

	runs, err := jsonstore.New(h.opt.Config.HistoryFile).Load()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.False(t, runs[0].Passed())

	files, err := os.ReadDir(h.opt.Config.Artifact.Dir)
	require.NoError(t, err)
	require.Len(t, files, 1, "page source of the failed target")
}

func TestSeedFailsWithoutAPI(t *testing.T) {
	h := newHarness(t)
	h.opt.Config.Ditto.APIURL = ""
	require.Equal(t, 1, h.run("seed"))
	require.Contains(t, h.errOut.String(), "DITTO_API_URL")
}

func TestStoreErrorsNameEveryMissingSetting(t *testing.T) {
	h := newHarness(t)
	h.opt.Config.Ditto.APIURL = ""
	h.opt.Config.Ditto.APIKey = ""
	require.Equal(t, 1, h.run("ls"))
	require.Contains(t, h.errOut.String(), "missing required environment variables: DITTO_API_URL, DITTO_API_KEY")

	h.opt.Config.Ditto.APIURL = h.srv.URL
	require.Equal(t, 1, h.run("ls"))
	require.Contains(t, h.errOut.String(), "auth login")

	require.Equal(t, 0, h.run("auth", "login", apiKey))
	require.Equal(t, 0, h.run("ls"))
}

func TestRunCountsSeedFailures(t *testing.T) {
	h := newHarness(t)
	h.opt.Config.Ditto.APIKey = "wrong-key"

	matrixFile := filepath.Join(h.dir, "targets.yaml")
	require.NoError(t, os.WriteFile(matrixFile, []byte("label: Web\ntargets:\n  - name: cloud\n    kind: cloud\n"), 0o644))

	require.Equal(t, 1, h.run("run", "-matrix", matrixFile, "-seed"))
	require.Contains(t, h.errOut.String(), "seed:")

	prom, err := os.ReadFile(h.opt.Config.MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(prom), "syncprobe_seed_failures_total 1")
}

func TestRunMatrix(t *testing.T) {
	h := newHarness(t)
	const title = "GitHub Web Test 8812345"
	hub := webdrivertest.New(func(call int) string {
		if call >= 2 {
			return "<ul><li>" + title + "</li></ul>"
		}
		return "<ul></ul>"
	})
	defer hub.Close()

	matrixFile := filepath.Join(h.dir, "targets.yaml")
	require.NoError(t, os.WriteFile(matrixFile, []byte(`
label: Web
hub_url: `+hub.URL+`
targets:
  - name: chrome
    capabilities:
      browserName: chrome
  - name: cloud
    kind: cloud
`), 0o644))

	require.Equal(t, 0, h.run("run", "-matrix", matrixFile, "-seed"))
	_, ok := h.srv.Doc("github_test_web_8812345_42")
	require.True(t, ok)
	require.Equal(t, 1, hub.Deleted())

	runs, err := jsonstore.New(h.opt.Config.HistoryFile).Load()
	require.NoError(t, err)
	require.Len(t, runs[0].Targets, 2)
	require.Equal(t, "chrome", runs[0].Targets[0].Name)
	require.Equal(t, title, runs[0].Expect)
}

func TestTaskCommands(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("add", "Buy", "milk"))
	require.Equal(t, 0, h.run("add", "Answer mail"))
	require.Equal(t, 0, h.run("ls"))
	require.Contains(t, h.out.String(), " 1. ☐ Answer mail")
	require.Contains(t, h.out.String(), " 2. ☐ Buy milk")

	require.Equal(t, 0, h.run("done", "1"))
	require.Equal(t, 0, h.run("edit", "2", "Buy", "oat", "milk"))

	ts := h.tasks()
	require.Len(t, ts, 2)
	require.Equal(t, "Answer mail", ts[0].Title)
	require.True(t, ts[0].Done)
	require.Equal(t, "Buy oat milk", ts[1].Title)

	require.Equal(t, 0, h.run("rm", ts[1].ID))
	require.Equal(t, 0, h.run("ls"))
	require.NotContains(t, h.out.String(), "Buy oat milk")
	require.Equal(t, 0, h.run("ls", "-all"))
	require.Contains(t, h.out.String(), "Buy oat milk (deleted)")

	require.Equal(t, 2, h.run("done", "5"))
	require.Contains(t, h.errOut.String(), "index out of range: have 1, got 5")
	require.Equal(t, 1, h.run("done", "no-such-id"))
	require.Equal(t, 1, h.run("rm", ts[1].ID), "already deleted")
	require.Equal(t, 2, h.run("add"))
	require.Equal(t, 2, h.run("edit", "1"))
}

func jwt(payload string) string {
	enc := base64.RawURLEncoding.EncodeToString
	return enc([]byte(`{"alg":"none"}`)) + "." + enc([]byte(payload)) + ".sig"
}

func TestAuthCommands(t *testing.T) {
	h := newHarness(t)
	h.opt.Config.Ditto.APIKey = ""

	require.Equal(t, 0, h.run("auth", "status"))
	require.Contains(t, h.out.String(), "not logged in")
	require.Equal(t, 2, h.run("auth", "whoami"))
	require.Equal(t, 1, h.run("ls"))

	require.Equal(t, 0, h.run("auth", "login", "Bearer "+apiKey))
	require.Equal(t, 0, h.run("auth", "whoami"))
	require.Contains(t, h.out.String(), "Opaque key")
	require.Equal(t, 0, h.run("ls"), "saved key is used for the api")

	token := jwt(`{"sub":"ci","exp":4102444800}`)
	h.opt.Stdin = strings.NewReader(token + "\n")
	require.Equal(t, 0, h.run("auth", "login"))
	require.Equal(t, 0, h.run("auth", "status"))
	require.Contains(t, h.out.String(), "source: file")
	require.Contains(t, h.out.String(), "expires: 2100-01-01T00:00:00Z")
	require.Equal(t, 0, h.run("auth", "whoami"))
	require.Contains(t, h.out.String(), `"sub":"ci"`)

	require.Equal(t, 0, h.run("auth", "logout"))
	require.Equal(t, 0, h.run("auth", "status"))
	require.Contains(t, h.out.String(), "not logged in")

	t.Setenv(auth.EnvKey, apiKey)
	require.Equal(t, 0, h.run("auth", "logout"))
	require.Contains(t, h.out.String(), "nothing to delete")
}

func TestUpload(t *testing.T) {
	h := newHarness(t)
	apk := filepath.Join(h.dir, "app-debug.apk")
	require.NoError(t, os.WriteFile(apk, []byte("apk"), 0o644))

	require.Equal(t, 0, h.run("upload", apk))
	b, err := os.ReadFile(filepath.Join(h.opt.Config.Artifact.Dir, "app-debug.apk"))
	require.NoError(t, err)
	require.Equal(t, "apk", string(b))

	require.Equal(t, 1, h.run("upload", filepath.Join(h.dir, "missing.ipa")))
	require.Equal(t, 2, h.run("upload"))
}

func TestUsage(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 2, h.run())
	require.Equal(t, 0, h.run("help"))
	require.Contains(t, h.out.String(), "syncprobe - ")
	require.Equal(t, 2, h.run("bogus"))
	require.Contains(t, h.errOut.String(), "unknown subcommand: bogus")
	require.Equal(t, 2, h.run("run"))
	require.Equal(t, 2, h.run("seed", "-nope"))
	require.Equal(t, 2, h.run("smoke", "https://not-a-websocket"))
	require.Equal(t, 1, h.run("smoke", "wss://cloud.example/ws"), "no repository configured")
	require.Equal(t, 2, h.run("auth", "sideways"))
}
