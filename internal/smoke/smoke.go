package smoke

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"github.com/Makepad-fr/syncprobe/internal/logger"
)

// DefaultWorkflows are the CI jobs that exercise the cloud sync path.
var DefaultWorkflows = []string{
	"android-kotlin-ci.yml",
	"swift-ci.yml",
	"javascript-web-browserstack.yml",
	"android-cpp-browserstack.yml",
}

// ValidateWebsocketURL accepts ws:// and wss:// URLs only.
func ValidateWebsocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid websocket url: must use ws:// or wss://")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid websocket url: missing host")
	}
	return nil
}

// API is the part of the GitHub client the smoke test drives.
type API interface {
	Dispatch(ctx context.Context, workflow, ref string, inputs map[string]string) error
	Runs(ctx context.Context, workflow, branch string, limit int) ([]Run, error)
	Run(ctx context.Context, id int64) (Run, error)
	Jobs(ctx context.Context, id int64) ([]Job, error)
}

type Smoke struct {
	API API
	Log *slog.Logger

	FindAttempts int           // polls for the new run after dispatch
	FindInterval time.Duration // delay between those polls
	PollInterval time.Duration // status check interval while watching
	MaxWait      time.Duration
}

func (s *Smoke) defaults() {
	if s.FindAttempts <= 0 {
		s.FindAttempts = 10
	}
	if s.FindInterval <= 0 {
		s.FindInterval = 2 * time.Second
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 30 * time.Second
	}
	if s.MaxWait <= 0 {
		s.MaxWait = 45 * time.Minute
	}
}

type Dispatched struct {
	Workflow string
	RunID    int64
}

// DispatchAll starts every workflow with the websocket URL as input and
// finds the run each dispatch created. Workflows whose run could not be
// found are returned in missed.
func (s *Smoke) DispatchAll(ctx context.Context, workflows []string, ref, websocketURL string) (runs []Dispatched, missed []string, err error) {
	s.defaults()
	for _, wf := range workflows {
		log := s.Log.With(slog.String("workflow", wf))
		since := time.Now().Add(-2 * time.Minute)
		if err := s.API.Dispatch(ctx, wf, ref, map[string]string{"websocket_url": websocketURL}); err != nil {
			log.Error("dispatch failed", logger.Err(err))
			missed = append(missed, wf)
			continue
		}
		run, ok, err := s.findRun(ctx, wf, ref, since)
		if err != nil {
			return runs, missed, err
		}
		if !ok {
			log.Error("dispatched run not found")
			missed = append(missed, wf)
			continue
		}
		log.Info("dispatched", slog.Int64("run", run.ID))
		runs = append(runs, Dispatched{Workflow: wf, RunID: run.ID})
	}
	return runs, missed, nil
}

func (s *Smoke) findRun(ctx context.Context, wf, branch string, since time.Time) (Run, bool, error) {
	for i := 0; i < s.FindAttempts; i++ {
		select {
		case <-ctx.Done():
			return Run{}, false, ctx.Err()
		case <-time.After(s.FindInterval):
		}
		runs, err := s.API.Runs(ctx, wf, branch, 5)
		if err != nil {
			s.Log.Warn("listing runs", slog.String("workflow", wf), logger.Err(err))
			continue
		}
		for _, r := range runs {
			if r.HeadBranch == branch && r.CreatedAt.After(since) {
				return r, true, nil
			}
		}
	}
	return Run{}, false, nil
}

// Watch polls runs until all completed or MaxWait passes. Only state
// changes are logged. It reports whether every run completed.
func (s *Smoke) Watch(ctx context.Context, ids []int64) (bool, error) {
	s.defaults()
	ctx, cancel := context.WithTimeout(ctx, s.MaxWait)
	defer cancel()

	var mu sync.Mutex
	last := map[int64]string{}
	done := map[int64]bool{}

	for {
		var pending []int64
		for _, id := range ids {
			if !done[id] {
				pending = append(pending, id)
			}
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range pending {
			id := id
			g.Go(func() error {
				r, err := s.API.Run(gctx, id)
				if err != nil {
					s.Log.Warn("run status", slog.Int64("run", id), logger.Err(err))
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				if st := r.State(); last[id] != st {
					s.Log.Info("run status", slog.String("workflow", r.Name), slog.Int64("run", id), slog.String("state", st))
					last[id] = st
				}
				if r.Completed() {
					done[id] = true
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(done) == len(ids) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				s.Log.Warn("timed out waiting for runs", slog.Int("completed", len(done)), slog.Int("total", len(ids)))
				return false, nil
			}
			return false, ctx.Err()
		case <-time.After(s.PollInterval):
		}
	}
}

type Summary struct {
	Workflow   string
	Run        Run
	FailedJobs []string
}

func (s Summary) Success() bool { return s.Run.Conclusion == "success" }

// Summarize fetches final state and failed job names for each run.
func (s *Smoke) Summarize(ctx context.Context, runs []Dispatched) ([]Summary, error) {
	out := make([]Summary, 0, len(runs))
	for _, d := range runs {
		r, err := s.API.Run(ctx, d.RunID)
		if err != nil {
			return out, fmt.Errorf("run %d: %w", d.RunID, err)
		}
		sum := Summary{Workflow: d.Workflow, Run: r}
		if !sum.Success() {
			jobs, err := s.API.Jobs(ctx, d.RunID)
			if err != nil {
				s.Log.Warn("listing jobs", slog.Int64("run", d.RunID), logger.Err(err))
			}
			for _, j := range jobs {
				if j.Conclusion == "failure" {
					sum.FailedJobs = append(sum.FailedJobs, j.Name)
				}
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// ExitCode is 1 on any miss, incomplete wait or unsuccessful run.
func ExitCode(sums []Summary, missed []string, allCompleted bool) int {
	if len(missed) > 0 || !allCompleted || len(sums) == 0 {
		return 1
	}
	for _, s := range sums {
		if !s.Success() {
			return 1
		}
	}
	return 0
}
