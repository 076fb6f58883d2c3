package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"golang.org/x/exp/slog"

	"github.com/Makepad-fr/syncprobe/internal/config"
	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/matrix"
	"github.com/Makepad-fr/syncprobe/internal/metrics"
	"github.com/Makepad-fr/syncprobe/internal/model"
	"github.com/Makepad-fr/syncprobe/internal/probe/chrome"
	"github.com/Makepad-fr/syncprobe/internal/probe/cloudprobe"
	"github.com/Makepad-fr/syncprobe/internal/probe/webdriver"
	"github.com/Makepad-fr/syncprobe/internal/store/cloud"
	"github.com/Makepad-fr/syncprobe/internal/store/jsonstore"
	"github.com/Makepad-fr/syncprobe/internal/syncwait"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

const defaultLabel = "Sync"

// seedTask resolves the document under test: explicit flags first, then
// GITHUB_TEST_DOC_ID, then an ID derived from the CI run. The label it
// returns has the default applied.
func seedTask(cfg *config.Config, label, id, title string) (model.Task, string) {
	if strings.TrimSpace(label) == "" {
		label = defaultLabel
	}
	if id == "" {
		id = cfg.CI.TestDocID
	}
	if id == "" {
		id = model.SeedID(label, cfg.CI.RunID, cfg.CI.RunNumber)
	}
	t := model.SeedTask(label, id)
	if title = strings.TrimSpace(title); title != "" {
		t.Title = title
	}
	return t, label
}

// upsertSeed inserts the document and counts failed inserts.
func upsertSeed(ctx context.Context, log *slog.Logger, store *cloud.Client, task model.Task, m *metrics.Metrics) error {
	log.Info("seeding document", slog.String("doc", task.ID), slog.String("title", task.Title), slog.String("collection", store.Collection()))
	if err := store.Upsert(ctx, task); err != nil {
		m.SeedFailures.Inc()
		return err
	}
	return nil
}

type docFlags struct {
	label, id, title *string
}

func addDocFlags(fs *flag.FlagSet, label string) docFlags {
	return docFlags{
		label: fs.String("label", label, "platform label used in the document id and title"),
		id:    fs.String("id", "", "document id (default: GITHUB_TEST_DOC_ID or derived from the CI run)"),
		title: fs.String("title", "", "document title (default: derived from the label and run)"),
	}
}

func doSeed(ctx context.Context, opt Options, args []string) int {
	fs := newFlags("seed")
	df := addDocFlags(fs, defaultLabel)
	verify := fs.Bool("verify", false, "read the document back after inserting it")
	if code, ok := parse(fs, args); !ok {
		return code
	}

	store, err := openStore(opt)
	if err != nil {
		ui.Fail("seed: " + err.Error())
		return exitFailure
	}
	task, _ := seedTask(opt.Config, *df.label, *df.id, *df.title)
	m := metrics.New()
	defer writeMetrics(opt, m)

	if err := upsertSeed(ctx, opt.Log, store, task, m); err != nil {
		ui.Fail("seed: " + err.Error())
		return exitFailure
	}
	ui.OK("seeded " + task.ID)

	if *verify {
		got, found, err := store.Get(ctx, task.ID)
		switch {
		case err != nil:
			ui.Fail("verify: " + err.Error())
			return exitFailure
		case !found:
			ui.Fail("verify: document not found after insert")
			return exitFailure
		case got.Title != task.Title:
			ui.Fail(fmt.Sprintf("verify: title is %q, want %q", got.Title, task.Title))
			return exitFailure
		}
		ui.OK("verified " + task.ID)
	}

	fmt.Fprintf(ui.Stdout, "title: %s\nexport GITHUB_TEST_DOC_ID=%s\n", task.Title, task.ID)
	return exitOK
}

// doVerify waits for the document to be readable from the cloud store. It
// is the vendor-free check CI runs before any device target.
func doVerify(ctx context.Context, opt Options, args []string) int {
	fs := newFlags("verify")
	df := addDocFlags(fs, defaultLabel)
	timeout := fs.Duration("timeout", 0, "how long to wait (default SYNC_TIMEOUT)")
	if code, ok := parse(fs, args); !ok {
		return code
	}

	store, err := openStore(opt)
	if err != nil {
		ui.Fail("verify: " + err.Error())
		return exitFailure
	}
	task, label := seedTask(opt.Config, *df.label, *df.id, *df.title)
	m := metrics.New()
	defer writeMetrics(opt, m)

	targets := []matrix.Target{{Name: "cloud", Kind: matrix.KindCloud, Timeout: *timeout}}
	return checkTargets(ctx, opt, m, task, label, targets, matrix.DefaultOpener(matrix.Drivers{Store: store}))
}

func doRun(ctx context.Context, opt Options, args []string) int {
	fs := newFlags("run")
	path := fs.String("matrix", opt.Matrix, "target matrix file (YAML)")
	df := addDocFlags(fs, "")
	seed := fs.Bool("seed", false, "insert the document before checking targets")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if *path == "" && fs.NArg() == 1 {
		*path = fs.Arg(0)
	}
	if *path == "" {
		return usage("run -matrix <file>")
	}

	f, err := matrix.Load(*path)
	if err != nil {
		ui.Fail("run: " + err.Error())
		return exitFailure
	}
	label := *df.label
	if label == "" {
		label = f.Label
	}
	task, label := seedTask(opt.Config, label, *df.id, *df.title)
	m := metrics.New()
	defer writeMetrics(opt, m)

	var lister cloudprobe.Lister
	if *seed || hasCloudTarget(f.Targets) {
		store, err := openStore(opt)
		if err != nil {
			ui.Fail("run: " + err.Error())
			return exitFailure
		}
		if *seed {
			if err := upsertSeed(ctx, opt.Log, store, task, m); err != nil {
				ui.Fail("seed: " + err.Error())
				return exitFailure
			}
		}
		lister = store
	}

	drv := opt.Config.Driver
	hub := f.HubURL
	if hub == "" {
		hub = drv.HubURL
	}
	open := matrix.DefaultOpener(matrix.Drivers{
		Store:     lister,
		WebDriver: webdriver.Options{HubURL: hub, Username: drv.Username, AccessKey: drv.AccessKey},
		Chrome:    chrome.Options{RemoteURL: drv.ChromeURL, ExecPath: drv.ChromePath, NoSandbox: drv.ChromeNoSandbox},
	})
	return checkTargets(ctx, opt, m, task, label, f.Targets, open)
}

func hasCloudTarget(ts []matrix.Target) bool {
	for _, t := range ts {
		if t.Kind == matrix.KindCloud {
			return true
		}
	}
	return false
}

// checkTargets runs the matrix, prints the report and records it in the
// local history.
func checkTargets(ctx context.Context, opt Options, m *metrics.Metrics, task model.Task, label string, targets []matrix.Target, open matrix.Opener) int {
	p := opt.Config.Poll
	rn := &matrix.Runner{
		Log:     opt.Log,
		Open:    open,
		Sink:    openSink(ctx, opt, task.ID),
		Metrics: m,
		Poll: syncwait.Options{
			Timeout:       p.Timeout,
			Interval:      p.Interval,
			ProgressEvery: p.ProgressEvery,
			Warmup:        p.Warmup,
		},
	}
	opt.Log.Info("verifying sync", slog.String("doc", task.ID), slog.String("expect", task.Title), slog.Int("targets", len(targets)))
	rep := rn.Run(ctx, syncwait.ForSeed(task.Title, label, model.RunTag(task.ID)), task.Title, targets)
	printReport(rep)

	if path := opt.Config.HistoryFile; path != "" {
		if err := jsonstore.New(path).Append(rep.Record(task.ID)); err != nil {
			opt.Log.Warn("saving history", logger.Err(err))
		}
	}
	return rep.ExitCode()
}

func printReport(rep matrix.Report) {
	t := ui.Current()
	total := len(rep.Results)
	lines := []string{
		fmt.Sprintf("%s  %s %d  %s %d  %s %d",
			ui.C(t.Title, "Sync verification"),
			ui.C(t.Success, t.SymDone), rep.Passed(),
			ui.C(t.Error, t.SymFailed), rep.Failed(),
			ui.C(t.Accent, "Total"), total,
		),
		ui.C(t.Muted, ui.ProgressBar(rep.Passed(), total, ui.BarWidth())),
		ui.C(t.Muted, "expect: "+rep.Expect),
		"",
	}
	for _, r := range rep.Results {
		line := fmt.Sprintf("%s %s  %s", ui.Mark(r.Passed), r.Target,
			ui.C(t.Muted, fmt.Sprintf("%d attempts, %s", r.Outcome.Attempts, ui.Duration(r.Outcome.Elapsed))))
		lines = append(lines, line)
		if r.Err != nil {
			lines = append(lines, "    "+ui.C(t.Error, oneLine(r.Err.Error())))
		}
		for _, a := range r.Artifacts {
			lines = append(lines, "    "+ui.C(t.Muted, a))
		}
	}
	if total == 0 {
		lines = append(lines, ui.C(t.Muted, "no targets"))
	}
	ui.Panel(lines)
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", "; ")
	if len(s) > 160 {
		s = s[:157] + "..."
	}
	return s
}
