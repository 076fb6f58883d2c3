package model

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Task is the synced document shape shared by every quickstart app.
type Task struct {
	ID      string `json:"_id"`
	Title   string `json:"title"`
	Done    bool   `json:"done"`
	Deleted bool   `json:"deleted"`
}

// NewTask returns a pending task with a random UUID.
func NewTask(title string) Task {
	return Task{ID: uuid.New().String(), Title: strings.TrimSpace(title)}
}

// Map returns the document form used as a DQL argument.
func (t Task) Map() map[string]any {
	return map[string]any{
		"_id":     t.ID,
		"title":   t.Title,
		"done":    t.Done,
		"deleted": t.Deleted,
	}
}

// TaskFromMap converts a raw store document. Missing or mistyped fields
// become zero values.
func TaskFromMap(m map[string]any) Task {
	return Task{
		ID:      valueAs[string](m, "_id"),
		Title:   valueAs[string](m, "title"),
		Done:    valueAs[bool](m, "done"),
		Deleted: valueAs[bool](m, "deleted"),
	}
}

func valueAs[T any](m map[string]any, key string) T {
	if v, ok := m[key].(T); ok {
		return v
	}
	var zero T
	return zero
}

// Visible drops soft-deleted tasks, keeping order.
func Visible(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Deleted {
			out = append(out, t)
		}
	}
	return out
}

// SortByTitle orders tasks case-insensitively by title, then by ID.
func SortByTitle(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := strings.ToLower(tasks[i].Title), strings.ToLower(tasks[j].Title)
		if a != b {
			return a < b
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// Stats counts done and pending tasks.
func Stats(tasks []Task) (done, pending int) {
	for _, t := range tasks {
		if t.Done {
			done++
		} else {
			pending++
		}
	}
	return
}
