package matrix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"github.com/Makepad-fr/syncprobe/internal/artifact"
	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/metrics"
	"github.com/Makepad-fr/syncprobe/internal/model"
	"github.com/Makepad-fr/syncprobe/internal/probe"
	"github.com/Makepad-fr/syncprobe/internal/syncwait"
)

// Opener starts a probe session for a target.
type Opener func(ctx context.Context, t Target) (probe.Probe, error)

type Runner struct {
	Log     *slog.Logger
	Open    Opener
	Sink    artifact.Sink // nil disables failure capture
	Metrics *metrics.Metrics
	Poll    syncwait.Options
}

type Result struct {
	Target    string
	Passed    bool
	Outcome   syncwait.Outcome
	Err       error
	Artifacts []string
}

type Report struct {
	StartedAt time.Time
	Expect    string
	Results   []Result
}

func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}
	return n
}

func (r Report) Failed() int { return len(r.Results) - r.Passed() }

// ExitCode is 0 only when there was at least one target and all passed.
func (r Report) ExitCode() int {
	if len(r.Results) == 0 || r.Failed() > 0 {
		return 1
	}
	return 0
}

// Record converts the report for the history file.
func (r Report) Record(docID string) model.RunRecord {
	rec := model.RunRecord{StartedAt: r.StartedAt, DocID: docID, Expect: r.Expect}
	for _, res := range r.Results {
		tr := model.TargetRecord{
			Name:      res.Target,
			Passed:    res.Passed,
			Attempts:  res.Outcome.Attempts,
			Elapsed:   res.Outcome.Elapsed,
			Artifacts: res.Artifacts,
		}
		if res.Err != nil {
			tr.Error = res.Err.Error()
		}
		rec.Targets = append(rec.Targets, tr)
	}
	return rec
}

// Run verifies targets one after another. A failing target is recorded and
// the run moves on; only cancellation of ctx stops it early.
func (rn *Runner) Run(ctx context.Context, m syncwait.Matcher, expect string, targets []Target) Report {
	rep := Report{StartedAt: time.Now().UTC(), Expect: expect}
	for _, t := range targets {
		if ctx.Err() != nil {
			rep.Results = append(rep.Results, Result{Target: t.Name, Err: ctx.Err()})
			continue
		}
		res := rn.runOne(ctx, m, t)
		if rn.Metrics != nil {
			rn.Metrics.Observe(t.Name, res.Passed, res.Outcome.Elapsed.Seconds())
		}
		if res.Passed {
			rn.Log.Info("target passed", slog.String("target", t.Name))
		} else {
			rn.Log.Error("target failed", slog.String("target", t.Name), logger.Err(res.Err))
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

func (rn *Runner) runOne(ctx context.Context, m syncwait.Matcher, t Target) (res Result) {
	res.Target = t.Name
	log := rn.Log.With(slog.String("target", t.Name))
	log.Info("starting session", slog.String("kind", t.Kind))

	p, err := rn.Open(ctx, t)
	if err != nil {
		res.Err = fmt.Errorf("open: %w", err)
		return res
	}
	defer func() {
		// the session must go even if ctx is already cancelled
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := p.Close(cctx); err != nil {
			log.Warn("closing session", logger.Err(err))
		}
	}()

	opt := rn.Poll
	if t.Timeout > 0 {
		opt.Timeout = t.Timeout
	}
	if t.Warmup > 0 {
		opt.Warmup = t.Warmup
	}

	out, err := syncwait.Wait(ctx, log, p, m, opt)
	res.Outcome = out
	switch {
	case err != nil:
		res.Err = err
	case !out.Found:
		res.Err = syncwait.ErrNotFound
		if out.LastError != nil && out.Last.Text == "" {
			res.Err = errors.Join(syncwait.ErrNotFound, out.LastError)
		}
	default:
		res.Passed = true
		return res
	}

	if rn.Sink != nil {
		prefix := "sync_failed"
		if err != nil {
			prefix = "error"
		}
		res.Artifacts = artifact.Capture(context.WithoutCancel(ctx), log, rn.Sink, p, prefix, out.Last)
	}
	return res
}
