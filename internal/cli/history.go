package cli

import (
	"fmt"

	"github.com/Makepad-fr/syncprobe/internal/store/jsonstore"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

func doHistory(opt Options, args []string) int {
	fs := newFlags("history")
	n := fs.Int("n", 10, "number of runs to show")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if opt.Config.HistoryFile == "" {
		ui.Fail("history: SYNCPROBE_HISTORY is not set")
		return exitFailure
	}
	runs, err := jsonstore.New(opt.Config.HistoryFile).Load()
	if err != nil {
		ui.Fail("history: " + err.Error())
		return exitFailure
	}
	if *n > 0 && len(runs) > *n {
		runs = runs[len(runs)-*n:]
	}

	t := ui.Current()
	passed := 0
	for _, r := range runs {
		if r.Passed() {
			passed++
		}
	}
	lines := []string{
		fmt.Sprintf("%s  %s %d  %s %d", ui.C(t.Title, "History"),
			ui.C(t.Success, t.SymDone), passed, ui.C(t.Error, t.SymFailed), len(runs)-passed),
		"",
	}
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		ok := 0
		for _, tg := range r.Targets {
			if tg.Passed {
				ok++
			}
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s  %s",
			ui.Mark(r.Passed()),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.DocID,
			ui.C(t.Muted, fmt.Sprintf("%d/%d targets", ok, len(r.Targets))),
		))
		for _, tg := range r.Targets {
			if !tg.Passed {
				lines = append(lines, "    "+ui.C(t.Error, tg.Name+": "+oneLine(tg.Error)))
			}
		}
	}
	if len(runs) == 0 {
		lines = append(lines, ui.C(t.Muted, "no runs recorded yet"))
	}
	ui.Panel(lines)
	return exitOK
}
