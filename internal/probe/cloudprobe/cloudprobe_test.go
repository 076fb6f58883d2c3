package cloudprobe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/syncprobe/internal/model"
	"github.com/Makepad-fr/syncprobe/internal/probe"
)

type listerFunc func(ctx context.Context, includeDeleted bool) ([]model.Task, error)

func (f listerFunc) List(ctx context.Context, includeDeleted bool) ([]model.Task, error) {
	return f(ctx, includeDeleted)
}

func TestSnapshotRendersVisibleTasks(t *testing.T) {
	p := New("cloud", listerFunc(func(_ context.Context, includeDeleted bool) ([]model.Task, error) {
		require.False(t, includeDeleted)
		return []model.Task{{Title: "Buy milk", Done: true}, {Title: "Call mom"}}, nil
	}))

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "[x] Buy milk\n[ ] Call mom\n", snap.Text)
	require.Equal(t, "cloud", p.Name())

	_, err = p.Screenshot(context.Background())
	require.ErrorIs(t, err, probe.ErrNoScreenshot)
	require.NoError(t, p.Close(context.Background()))
}

func TestSnapshotPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	p := New("cloud", listerFunc(func(context.Context, bool) ([]model.Task, error) { return nil, boom }))
	_, err := p.Snapshot(context.Background())
	require.ErrorIs(t, err, boom)
}
