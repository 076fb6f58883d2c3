package tui

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/syncprobe/internal/model"
)

type memStore struct {
	mu    sync.Mutex
	tasks map[string]model.Task
	fail  error
}

func newMemStore(titles ...string) *memStore {
	s := &memStore{tasks: map[string]model.Task{}}
	for _, title := range titles {
		t := model.NewTask(title)
		s.tasks[t.ID] = t
	}
	return s
}

func (s *memStore) List(_ context.Context, includeDeleted bool) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Task
	for _, t := range s.tasks {
		if includeDeleted || !t.Deleted {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *memStore) Upsert(_ context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *memStore) change(id string, f func(*model.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	t, ok := s.tasks[id]
	if !ok {
		return errors.New("no such task")
	}
	f(&t)
	s.tasks[id] = t
	return nil
}

func (s *memStore) SetDone(_ context.Context, id string, done bool) error {
	return s.change(id, func(t *model.Task) { t.Done = done })
}

func (s *memStore) SetTitle(_ context.Context, id, title string) error {
	return s.change(id, func(t *model.Task) { t.Title = title })
}

func (s *memStore) SoftDelete(_ context.Context, id string) error {
	return s.change(id, func(t *model.Task) { t.Deleted = true })
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

// send applies msg and then resolves the store operation and reload it
// triggered, the way the bubbletea runtime would.
func send(t *testing.T, b Board, msg tea.Msg) Board {
	t.Helper()
	m, cmd := b.Update(msg)
	b = m.(Board)
	for cmd != nil {
		out := cmd()
		switch out.(type) {
		case opMsg, tasksMsg:
		default:
			return b
		}
		m, cmd = b.Update(out)
		b = m.(Board)
	}
	return b
}

// press applies msg without running the command it returns.
func press(b Board, msg tea.Msg) Board {
	m, _ := b.Update(msg)
	return m.(Board)
}

func loaded(t *testing.T, s *memStore) Board {
	b := New(context.Background(), s, 0)
	return send(t, b, b.load()())
}

func TestBoardLoadsVisibleTasksSorted(t *testing.T) {
	s := newMemStore("buy milk", "Answer mail")
	gone := model.NewTask("obsolete chore")
	gone.Deleted = true
	s.tasks[gone.ID] = gone

	b := loaded(t, s)
	require.Len(t, b.tasks, 2)
	require.Equal(t, "Answer mail", b.tasks[0].Title)
	require.Contains(t, b.View(), "buy milk")
	require.NotContains(t, b.View(), "obsolete chore")
}

func TestBoardToggleEditDelete(t *testing.T) {
	s := newMemStore("alpha", "beta")
	b := loaded(t, s)

	b = press(b, runes("j"))
	require.Equal(t, 1, b.cursor)
	b = send(t, b, space)
	beta := b.tasks[1]
	require.Equal(t, "beta", beta.Title)
	require.True(t, beta.Done)
	require.True(t, s.tasks[beta.ID].Done)

	b = press(b, runes("e"))
	require.Equal(t, editing, b.mode)
	require.Equal(t, "beta", b.ti.Value())
	b.ti.SetValue("gamma")
	b = send(t, b, enter)
	require.Equal(t, browsing, b.mode)
	require.Equal(t, "gamma", s.tasks[beta.ID].Title)

	b = press(b, runes("k"))
	alpha := b.tasks[0]
	b = send(t, b, runes("d"))
	require.True(t, s.tasks[alpha.ID].Deleted)
	require.Len(t, b.tasks, 1)
	require.Equal(t, 0, b.cursor)
}

func TestBoardAdd(t *testing.T) {
	s := newMemStore()
	b := loaded(t, s)
	require.Contains(t, b.View(), "no tasks")

	b = press(b, runes("a"))
	require.Equal(t, adding, b.mode)
	b = press(b, enter)
	require.Equal(t, "title cannot be empty", b.err)
	require.Equal(t, adding, b.mode)

	b.ti.SetValue("  write report ")
	b = send(t, b, enter)
	require.Len(t, s.tasks, 1)
	require.Len(t, b.tasks, 1)
	require.Equal(t, "write report", b.tasks[0].Title)

	b = press(b, runes("a"))
	b = press(b, esc)
	require.Equal(t, browsing, b.mode)
	require.Len(t, s.tasks, 1)
}

func TestBoardErrorClearsOnlyForLatest(t *testing.T) {
	s := newMemStore("alpha")
	b := loaded(t, s)
	s.fail = errors.New("store unavailable")

	b = press(b, space)
	b = press(b, opMsg{err: s.fail})
	require.Equal(t, "store unavailable", b.err)
	require.True(t, strings.Contains(b.View(), "store unavailable"))

	b = press(b, opMsg{err: errors.New("second")})
	b = press(b, clearErrMsg{seq: 1})
	require.Equal(t, "second", b.err)
	b = press(b, clearErrMsg{seq: 2})
	require.Empty(t, b.err)
}

func TestBoardQuit(t *testing.T) {
	b := loaded(t, newMemStore())
	_, cmd := b.Update(runes("q"))
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}
