// Package cloudprobe reads the "UI" straight from the cloud store: one line
// per visible task, the way the quickstart apps list them.
package cloudprobe

import (
	"context"
	"fmt"
	"strings"

	"github.com/Makepad-fr/syncprobe/internal/model"
	"github.com/Makepad-fr/syncprobe/internal/probe"
)

// Lister is the slice of the cloud client this probe needs.
type Lister interface {
	List(ctx context.Context, includeDeleted bool) ([]model.Task, error)
}

type Probe struct {
	name  string
	store Lister
}

var _ probe.Probe = (*Probe)(nil)

func New(name string, store Lister) *Probe {
	return &Probe{name: name, store: store}
}

func (p *Probe) Name() string { return p.name }

func (p *Probe) Snapshot(ctx context.Context) (probe.Snapshot, error) {
	tasks, err := p.store.List(ctx, false)
	if err != nil {
		return probe.Snapshot{}, err
	}
	return probe.Snapshot{Text: Render(tasks)}, nil
}

func (p *Probe) Screenshot(context.Context) ([]byte, error) {
	return nil, probe.ErrNoScreenshot
}

func (p *Probe) Close(context.Context) error { return nil }

// Render lists tasks as "[x] title" lines.
func Render(tasks []model.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		box := "[ ]"
		if t.Done {
			box = "[x]"
		}
		fmt.Fprintf(&b, "%s %s\n", box, t.Title)
	}
	return b.String()
}
