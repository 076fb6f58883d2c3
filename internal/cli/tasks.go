package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Makepad-fr/syncprobe/internal/model"
	"github.com/Makepad-fr/syncprobe/internal/store/cloud"
	"github.com/Makepad-fr/syncprobe/internal/tui"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

var errIndex = errors.New("index out of range")

func doList(ctx context.Context, opt Options, args []string) int {
	fs := newFlags("ls")
	all := fs.Bool("all", false, "include soft-deleted tasks")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	store, err := openStore(opt)
	if err != nil {
		ui.Fail("ls: " + err.Error())
		return exitFailure
	}
	tasks, err := store.List(ctx, *all)
	if err != nil {
		ui.Fail("ls: " + err.Error())
		return exitFailure
	}
	ui.Panel(listLines(tasks))
	return exitOK
}

func listLines(tasks []model.Task) []string {
	t := ui.Current()
	d, p := model.Stats(model.Visible(tasks))
	lines := []string{
		fmt.Sprintf("%s  %s %d  %s %d  %s %d",
			ui.C(t.Title, "Tasks"),
			ui.C(t.Success, t.SymDone), d,
			ui.C(t.Pending, t.SymPending), p,
			ui.C(t.Accent, "Total"), d+p,
		),
		ui.C(t.Muted, ui.ProgressBar(d, d+p, ui.BarWidth())),
		"",
	}
	n := 0
	for _, task := range tasks {
		box := ui.C(t.Muted, t.BoxUnchecked)
		title := task.Title
		if task.Done {
			box = ui.C(t.Success, t.BoxChecked)
			title = ui.C(t.Muted, title)
		}
		if task.Deleted {
			lines = append(lines, fmt.Sprintf("    %s %s %s", box, title, ui.C(t.Muted, "(deleted)")))
			continue
		}
		n++
		lines = append(lines, fmt.Sprintf("%2d. %s %s", n, box, title))
	}
	if len(tasks) == 0 {
		lines = append(lines, ui.C(t.Muted, "no tasks"))
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: add with `syncprobe add \"Buy milk\"`"))
	return lines
}

func doAdd(ctx context.Context, opt Options, args []string) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return usage("add <title...>")
	}
	store, err := openStore(opt)
	if err != nil {
		ui.Fail("add: " + err.Error())
		return exitFailure
	}
	task := model.NewTask(title)
	if err := store.Upsert(ctx, task); err != nil {
		ui.Fail("add: " + err.Error())
		return exitFailure
	}
	ui.OK("added " + task.ID)
	return exitOK
}

func doToggle(ctx context.Context, opt Options, args []string) int {
	if len(args) != 1 {
		return usage("done <index|id>")
	}
	store, task, code := resolve(ctx, opt, "done", args[0])
	if store == nil {
		return code
	}
	if err := store.SetDone(ctx, task.ID, !task.Done); err != nil {
		ui.Fail("done: " + err.Error())
		return exitFailure
	}
	ui.OK("toggled")
	return exitOK
}

func doEdit(ctx context.Context, opt Options, args []string) int {
	if len(args) < 2 {
		return usage("edit <index|id> <title...>")
	}
	title := strings.TrimSpace(strings.Join(args[1:], " "))
	if title == "" {
		ui.Fail("edit: empty title")
		return exitUsage
	}
	store, task, code := resolve(ctx, opt, "edit", args[0])
	if store == nil {
		return code
	}
	if err := store.SetTitle(ctx, task.ID, title); err != nil {
		ui.Fail("edit: " + err.Error())
		return exitFailure
	}
	ui.OK("renamed")
	return exitOK
}

func doRemove(ctx context.Context, opt Options, args []string) int {
	if len(args) != 1 {
		return usage("rm <index|id>")
	}
	store, task, code := resolve(ctx, opt, "rm", args[0])
	if store == nil {
		return code
	}
	if err := store.SoftDelete(ctx, task.ID); err != nil {
		ui.Fail("rm: " + err.Error())
		return exitFailure
	}
	ui.OK("removed")
	return exitOK
}

// resolve finds a task by its 1-based position in `ls` or by ID. A nil
// store means the command failed with the returned code.
func resolve(ctx context.Context, opt Options, cmd, ref string) (*cloud.Client, model.Task, int) {
	store, err := openStore(opt)
	if err != nil {
		ui.Fail(cmd + ": " + err.Error())
		return nil, model.Task{}, exitFailure
	}
	task, err := lookup(ctx, store, ref)
	switch {
	case errors.Is(err, errIndex):
		ui.Fail(cmd + ": " + err.Error())
		ui.Muted("Hint: run `syncprobe ls` to see valid indexes")
		return nil, model.Task{}, exitUsage
	case err != nil:
		ui.Fail(cmd + ": " + err.Error())
		return nil, model.Task{}, exitFailure
	}
	return store, task, exitOK
}

func lookup(ctx context.Context, store *cloud.Client, ref string) (model.Task, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		tasks, err := store.List(ctx, false)
		if err != nil {
			return model.Task{}, err
		}
		if n < 1 || n > len(tasks) {
			return model.Task{}, fmt.Errorf("%w: have %d, got %d", errIndex, len(tasks), n)
		}
		return tasks[n-1], nil
	}
	task, found, err := store.Get(ctx, ref)
	if err != nil {
		return model.Task{}, err
	}
	if !found || task.Deleted {
		return model.Task{}, fmt.Errorf("no task with id %q", ref)
	}
	return task, nil
}

func doBoard(ctx context.Context, opt Options, args []string) int {
	fs := newFlags("board")
	refresh := fs.Duration("refresh", tui.DefaultRefresh, "how often to re-read the collection")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	store, err := openStore(opt)
	if err != nil {
		ui.Fail("board: " + err.Error())
		return exitFailure
	}
	if err := tui.Run(ctx, store, *refresh); err != nil {
		ui.Fail("board: " + err.Error())
		return exitFailure
	}
	return exitOK
}
