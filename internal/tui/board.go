// Package tui is an interactive task board over the cloud store. The board
// re-reads the collection periodically so edits made on other peers show up
// without restarting it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/syncprobe/internal/model"
)

// Store is the subset of the cloud client the board needs.
type Store interface {
	List(ctx context.Context, includeDeleted bool) ([]model.Task, error)
	Upsert(ctx context.Context, t model.Task) error
	SetDone(ctx context.Context, id string, done bool) error
	SetTitle(ctx context.Context, id, title string) error
	SoftDelete(ctx context.Context, id string) error
}

const (
	DefaultRefresh = 2 * time.Second
	errorTTL       = 3 * time.Second
	opTimeout      = 15 * time.Second
)

type mode int

const (
	browsing mode = iota
	adding
	editing
)

type (
	tasksMsg struct {
		tasks []model.Task
		err   error
	}
	opMsg       struct{ err error }
	tickMsg     struct{}
	clearErrMsg struct{ seq int }
)

type Board struct {
	ctx     context.Context
	store   Store
	refresh time.Duration

	tasks  []model.Task
	cursor int
	loaded bool

	mode   mode
	editID string
	ti     textinput.Model
	help   help.Model

	err    string
	errSeq int

	width, height int
}

func New(ctx context.Context, store Store, refresh time.Duration) Board {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200
	return Board{ctx: ctx, store: store, refresh: refresh, ti: ti, help: help.New(), width: 80, height: 24}
}

// Run starts the board full screen and blocks until the user quits.
func Run(ctx context.Context, store Store, refresh time.Duration) error {
	p := tea.NewProgram(New(ctx, store, refresh), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (b Board) Init() tea.Cmd { return tea.Batch(b.load(), b.tick()) }

func (b Board) load() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(b.ctx, opTimeout)
		defer cancel()
		tasks, err := b.store.List(ctx, false)
		return tasksMsg{tasks: tasks, err: err}
	}
}

func (b Board) tick() tea.Cmd {
	return tea.Tick(b.refresh, func(time.Time) tea.Msg { return tickMsg{} })
}

func (b Board) do(op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(b.ctx, opTimeout)
		defer cancel()
		return opMsg{err: op(ctx)}
	}
}

func (b *Board) fail(err error) tea.Cmd {
	b.errSeq++
	b.err = err.Error()
	seq := b.errSeq
	return tea.Tick(errorTTL, func(time.Time) tea.Msg { return clearErrMsg{seq: seq} })
}

func (b Board) selected() (model.Task, bool) {
	if b.cursor < 0 || b.cursor >= len(b.tasks) {
		return model.Task{}, false
	}
	return b.tasks[b.cursor], true
}

func (b Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		return b, nil
	case tasksMsg:
		if msg.err != nil {
			return b, b.fail(fmt.Errorf("refresh: %w", msg.err))
		}
		b.tasks = model.Visible(msg.tasks)
		model.SortByTitle(b.tasks)
		b.loaded = true
		b.clamp()
		return b, nil
	case tickMsg:
		return b, tea.Batch(b.load(), b.tick())
	case opMsg:
		if msg.err != nil {
			return b, tea.Batch(b.fail(msg.err), b.load())
		}
		return b, b.load()
	case clearErrMsg:
		if msg.seq == b.errSeq {
			b.err = ""
		}
		return b, nil
	case tea.KeyMsg:
		if b.mode != browsing {
			return b.updateInput(msg)
		}
		return b.updateBrowse(msg)
	}
	return b, nil
}

func (b Board) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return b, tea.Quit
	case key.Matches(msg, keys.Down):
		if b.cursor < len(b.tasks)-1 {
			b.cursor++
		}
	case key.Matches(msg, keys.Up):
		if b.cursor > 0 {
			b.cursor--
		}
	case key.Matches(msg, keys.Refresh):
		return b, b.load()
	case key.Matches(msg, keys.Toggle):
		t, ok := b.selected()
		if !ok {
			return b, nil
		}
		b.tasks[b.cursor].Done = !t.Done
		return b, b.do(func(ctx context.Context) error { return b.store.SetDone(ctx, t.ID, !t.Done) })
	case key.Matches(msg, keys.Delete):
		t, ok := b.selected()
		if !ok {
			return b, nil
		}
		b.tasks = append(b.tasks[:b.cursor:b.cursor], b.tasks[b.cursor+1:]...)
		b.clamp()
		return b, b.do(func(ctx context.Context) error { return b.store.SoftDelete(ctx, t.ID) })
	case key.Matches(msg, keys.Add):
		b.mode = adding
		b.ti.SetValue("")
		b.ti.Placeholder = "New task title..."
		return b, b.ti.Focus()
	case key.Matches(msg, keys.Edit):
		t, ok := b.selected()
		if !ok {
			return b, nil
		}
		b.mode = editing
		b.editID = t.ID
		b.ti.SetValue(t.Title)
		b.ti.CursorEnd()
		b.ti.Placeholder = "Edit task title..."
		return b, b.ti.Focus()
	}
	return b, nil
}

func (b Board) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		b.leaveInput()
		return b, nil
	case tea.KeyEnter:
		title := strings.TrimSpace(b.ti.Value())
		if title == "" {
			return b, b.fail(fmt.Errorf("title cannot be empty"))
		}
		var cmd tea.Cmd
		if b.mode == adding {
			t := model.NewTask(title)
			b.tasks = append(b.tasks, t)
			cmd = b.do(func(ctx context.Context) error { return b.store.Upsert(ctx, t) })
		} else {
			id := b.editID
			for i := range b.tasks {
				if b.tasks[i].ID == id {
					b.tasks[i].Title = title
				}
			}
			cmd = b.do(func(ctx context.Context) error { return b.store.SetTitle(ctx, id, title) })
		}
		b.leaveInput()
		return b, cmd
	}
	var cmd tea.Cmd
	b.ti, cmd = b.ti.Update(msg)
	return b, cmd
}

func (b *Board) leaveInput() {
	b.mode = browsing
	b.editID = ""
	b.ti.SetValue("")
	b.ti.Blur()
}

func (b *Board) clamp() {
	if b.cursor >= len(b.tasks) {
		b.cursor = len(b.tasks) - 1
	}
	if b.cursor < 0 {
		b.cursor = 0
	}
}

func (b Board) View() string {
	done, pending := model.Stats(b.tasks)
	var s strings.Builder
	fmt.Fprintf(&s, "%s   %s %d  %s %d  %s %d\n\n",
		titleStyle.Render("Tasks"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), len(b.tasks),
	)

	switch {
	case !b.loaded:
		s.WriteString(mutedStyle.Render("loading...") + "\n")
	case len(b.tasks) == 0:
		s.WriteString(mutedStyle.Render("no tasks, press a to add one") + "\n")
	}
	for i, t := range b.tasks {
		box, text := mutedStyle.Render(boxUnchecked), t.Title
		if t.Done {
			box, text = successStyle.Render(boxChecked), doneStyle.Render(t.Title)
		}
		prefix := "  "
		if i == b.cursor {
			prefix = selectedStyle.Render(">") + " "
		}
		s.WriteString(prefix + box + " " + text + "\n")
	}

	if b.mode != browsing {
		label := "Add task"
		if b.mode == editing {
			label = "Edit task"
		}
		s.WriteString("\n" + frameStyle.Render(label+"\n"+b.ti.View()) + "\n")
	}
	if b.err != "" {
		s.WriteString("\n" + errorStyle.Render(b.err) + "\n")
	}
	b.help.Width = b.width - 4
	s.WriteString("\n" + b.help.View(keys))
	return frameStyle.Render(s.String())
}
