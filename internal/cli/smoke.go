package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Makepad-fr/syncprobe/internal/smoke"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

func doSmoke(ctx context.Context, opt Options, args []string) int {
	cfg := opt.Config
	branch := cfg.CI.Branch
	if branch == "" {
		branch = "main"
	}
	fs := newFlags("smoke")
	ref := fs.String("ref", branch, "branch the workflows run on")
	workflows := fs.String("workflows", strings.Join(smoke.DefaultWorkflows, ","), "comma separated workflow files")
	interval := fs.Duration("interval", 30*time.Second, "status check interval")
	maxWait := fs.Duration("max-wait", 45*time.Minute, "give up after this long")
	if code, ok := parse(fs, args); !ok {
		return code
	}

	wsURL := cfg.Ditto.WebsocketURL
	if fs.NArg() > 0 {
		wsURL = fs.Arg(0)
	}
	if wsURL == "" {
		return usage("smoke <ws-url>")
	}
	if err := smoke.ValidateWebsocketURL(wsURL); err != nil {
		ui.Fail(err.Error())
		return exitUsage
	}
	if cfg.GitHub.Repo == "" {
		ui.Fail("smoke: GITHUB_REPOSITORY is not set")
		return exitFailure
	}

	var wfs []string
	for _, w := range strings.Split(*workflows, ",") {
		if w = strings.TrimSpace(w); w != "" {
			wfs = append(wfs, w)
		}
	}
	s := &smoke.Smoke{
		API:          &smoke.GitHub{BaseURL: cfg.GitHub.APIURL, Repo: cfg.GitHub.Repo, Token: cfg.GitHub.Token},
		Log:          opt.Log,
		PollInterval: *interval,
		MaxWait:      *maxWait,
	}

	runs, missed, err := s.DispatchAll(ctx, wfs, *ref, wsURL)
	if err != nil {
		ui.Fail("smoke: " + err.Error())
		return exitFailure
	}
	ids := make([]int64, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.RunID)
	}
	all := true
	if len(ids) > 0 {
		if all, err = s.Watch(ctx, ids); err != nil {
			ui.Fail("smoke: " + err.Error())
			return exitFailure
		}
	}
	sums, err := s.Summarize(ctx, runs)
	if err != nil {
		ui.Fail("smoke: " + err.Error())
		return exitFailure
	}
	printSmoke(wsURL, sums, missed, all)
	return smoke.ExitCode(sums, missed, all)
}

func printSmoke(wsURL string, sums []smoke.Summary, missed []string, all bool) {
	t := ui.Current()
	lines := []string{ui.C(t.Title, "Cloud smoke test"), ui.C(t.Muted, "endpoint: "+wsURL), ""}
	for _, s := range sums {
		state := s.Run.State()
		lines = append(lines, fmt.Sprintf("%s %s  %s", ui.Mark(s.Success()), s.Workflow, ui.C(t.Muted, state)))
		if s.Run.HTMLURL != "" {
			lines = append(lines, "    "+ui.C(t.Muted, s.Run.HTMLURL))
		}
		for _, j := range s.FailedJobs {
			lines = append(lines, "    "+ui.C(t.Error, "failed job: "+j))
		}
	}
	for _, w := range missed {
		lines = append(lines, fmt.Sprintf("%s %s  %s", ui.Mark(false), w, ui.C(t.Muted, "not dispatched")))
	}
	if !all {
		lines = append(lines, "", ui.C(t.Error, "timed out before every run completed"))
	}
	ui.Panel(lines)
}
