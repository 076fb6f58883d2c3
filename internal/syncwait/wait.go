// Package syncwait polls a probe until the expected document shows up.
package syncwait

import (
	"context"
	"errors"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"

	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/probe"
)

type Options struct {
	Timeout       time.Duration
	Interval      time.Duration
	ProgressEvery time.Duration // 0 disables progress lines
	Warmup        time.Duration // initial delay before the first look
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	return o
}

type Outcome struct {
	Found     bool
	Attempts  int
	Errors    int
	Elapsed   time.Duration
	Evidence  string
	Last      probe.Snapshot
	LastError error
}

// Wait polls p until m matches or opt.Timeout passes. A timeout is not an
// error: it yields Found=false. Only cancellation of ctx is returned.
func Wait(ctx context.Context, log *slog.Logger, p probe.Probe, m Matcher, opt Options) (Outcome, error) {
	opt = opt.withDefaults()
	log = log.With(slog.String("target", p.Name()))
	start := time.Now()
	var out Outcome

	if opt.Warmup > 0 {
		log.Debug("warming up", slog.Duration("for", opt.Warmup))
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(opt.Warmup):
		}
	}

	deadline, cancel := context.WithTimeout(ctx, opt.Timeout)
	defer cancel()

	log.Info("waiting for document", slog.String("match", m.String()), slog.Duration("timeout", opt.Timeout))

	lim := rate.NewLimiter(rate.Every(opt.Interval), 1)
	nextProgress := opt.ProgressEvery
	for {
		if err := lim.Wait(deadline); err != nil {
			// Wait fails early when the next token would land past the deadline.
			break
		}
		out.Attempts++
		snap, err := p.Snapshot(deadline)
		if err != nil {
			if deadline.Err() != nil {
				break
			}
			out.Errors++
			out.LastError = err
			log.Warn("snapshot failed", logger.Err(err), slog.Int("attempt", out.Attempts))
		} else {
			out.Last = snap
			if ev, ok := m.Match(snap.Text); ok {
				out.Found = true
				out.Evidence = ev
				out.Elapsed = time.Since(start)
				log.Info("document found", slog.String("evidence", ev), slog.Duration("elapsed", out.Elapsed))
				return out, nil
			}
		}

		if elapsed := time.Since(start); opt.ProgressEvery > 0 && elapsed >= nextProgress {
			log.Info("still waiting", slog.Duration("elapsed", elapsed.Truncate(time.Second)))
			nextProgress += opt.ProgressEvery
		}
	}

	out.Elapsed = time.Since(start)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	log.Warn("document not found",
		slog.Duration("elapsed", out.Elapsed),
		slog.Int("attempts", out.Attempts),
		slog.Int("page_chars", len(out.Last.Text)),
	)
	return out, nil
}

// ErrNotFound is what callers wrap when a wait ends without a match.
var ErrNotFound = errors.New("document did not sync within the timeout")
