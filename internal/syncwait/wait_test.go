package syncwait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/probe"
)

type scripted struct {
	calls atomic.Int32
	fn    func(call int) (string, error)
}

func (s *scripted) Name() string { return "scripted" }
func (s *scripted) Snapshot(context.Context) (probe.Snapshot, error) {
	text, err := s.fn(int(s.calls.Add(1)))
	return probe.Snapshot{Text: text}, err
}
func (s *scripted) Screenshot(context.Context) ([]byte, error) { return nil, probe.ErrNoScreenshot }
func (s *scripted) Close(context.Context) error                { return nil }

var fast = Options{Timeout: 2 * time.Second, Interval: 5 * time.Millisecond, ProgressEvery: time.Millisecond}

func TestWaitFindsAfterRetriesAndErrors(t *testing.T) {
	p := &scripted{fn: func(call int) (string, error) {
		switch {
		case call == 1:
			return "", errors.New("session busy")
		case call < 4:
			return "<list/>", nil
		}
		return `<item text="GitHub Web Test 42"/>`, nil
	}}

	out, err := Wait(context.Background(), logger.Discard(), p, Contains("GitHub Web Test 42"), fast)
	require.NoError(t, err)
	require.True(t, out.Found)
	require.Equal(t, 4, out.Attempts)
	require.Equal(t, 1, out.Errors)
	require.EqualError(t, out.LastError, "session busy")
	require.Equal(t, "GitHub Web Test 42", out.Evidence)
}

func TestWaitTimesOutWithoutError(t *testing.T) {
	p := &scripted{fn: func(int) (string, error) { return "nothing here", nil }}
	opt := fast
	opt.Timeout = 60 * time.Millisecond

	out, err := Wait(context.Background(), logger.Discard(), p, Contains("GitHub"), opt)
	require.NoError(t, err)
	require.False(t, out.Found)
	require.GreaterOrEqual(t, out.Attempts, 1)
	require.Equal(t, "nothing here", out.Last.Text)
}

func TestWaitHonorsCancellation(t *testing.T) {
	p := &scripted{fn: func(int) (string, error) { return "", nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Wait(ctx, logger.Discard(), p, Contains("x"), Options{Warmup: time.Second})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, p.calls.Load())
}

func TestMatchers(t *testing.T) {
	page := "header\n  GitHub KMP Test 42 (synced)\nfooter"

	ev, ok := Contains("KMP Test 42").Match(page)
	require.True(t, ok)
	require.Equal(t, "KMP Test 42", ev)

	_, ok = Contains("").Match(page)
	require.False(t, ok)

	ev, ok = TagWithKeywords("42", "GitHub", "Test").Match(page)
	require.True(t, ok)
	require.Equal(t, "GitHub KMP Test 42 (synced)", ev)

	_, ok = TagWithKeywords("42", "Android").Match(page)
	require.False(t, ok)

	ev, ok = TagWithKeywords("Test 42", "KMP").Match(page)
	require.True(t, ok)
	require.Equal(t, "GitHub KMP Test 42 (synced)", ev)
}

func TestMatchersRequireWholeWords(t *testing.T) {
	_, ok := Contains("GitHub android Test 4").Match("[ ] GitHub android Test 42")
	require.False(t, ok, "title must not match a longer run number")

	_, ok = TagWithKeywords("4", "GitHub", "Test").Match("[ ] GitHub ios Test 14")
	require.False(t, ok, "tag must not match inside another number")

	_, ok = TagWithKeywords("12", "GitHub", "Test").Match("GitHubber Test 12")
	require.False(t, ok, "keywords match whole words only")

	ev, ok := Contains("Test 4").Match("<li>GitHub android Test 4</li>")
	require.True(t, ok)
	require.Equal(t, "Test 4", ev)

	_, ok = Contains("Test 4").Match("Test 42 then Test 4.")
	require.True(t, ok, "a later whole-word occurrence still matches")
}

func TestForSeedOnlyMatchesItsOwnRun(t *testing.T) {
	m := ForSeed("GitHub android Test 8812345", "android", "8812345")
	require.Contains(t, m.String(), " or ")

	for _, page := range []string{
		"[ ] GitHub android Test 88123450",
		"[ ] GitHub ios Test 8812345",
		"[ ] GitHub Sync Test 1234",
		"[x] GitHub android Test 4",
	} {
		_, ok := m.Match(page)
		require.False(t, ok, page)
	}

	ev, ok := m.Match("header\n[ ] GitHub android Test 8812345\nfooter")
	require.True(t, ok)
	require.Equal(t, "GitHub android Test 8812345", ev)

	ev, ok = m.Match("android · GitHub Test · run 8812345…")
	require.True(t, ok, "reformatted titles still match on tag, label and markers")
	require.Equal(t, "android · GitHub Test · run 8812345…", ev)
}
