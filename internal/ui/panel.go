package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var ansiRegexp = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string { return ansiRegexp.ReplaceAllString(s, "") }

func visibleWidth(s string) int { return utf8.RuneCountInString(stripANSI(s)) }

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	if done < 0 {
		done = 0
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// BarWidth sizes a report progress bar to the terminal, leaving room for
// the panel frame and the counters around it.
func BarWidth() int { return barWidth(Width(80)) }

func barWidth(cols int) int {
	w := cols - 52
	if w < 10 {
		return 10
	}
	if w > 28 {
		return 28
	}
	return w
}

// PanelString frames lines in a box drawn with the current theme.
func PanelString(lines []string) string {
	t := Current()
	maxw := 0
	for _, ln := range lines {
		if w := visibleWidth(ln); w > maxw {
			maxw = w
		}
	}
	var b strings.Builder
	b.WriteString(t.CornerTL + strings.Repeat(t.H, maxw+2) + t.CornerTR + "\n")
	for _, ln := range lines {
		pad := strings.Repeat(" ", maxw-visibleWidth(ln))
		b.WriteString(t.V + " " + ln + pad + " " + t.V + "\n")
	}
	b.WriteString(t.CornerBL + strings.Repeat(t.H, maxw+2) + t.CornerBR + "\n")
	return b.String()
}

func Panel(lines []string) { fmt.Fprint(Stdout, PanelString(lines)) }

// Mark is the themed pass/fail symbol.
func Mark(passed bool) string {
	t := Current()
	if passed {
		return C(t.Success, t.SymDone)
	}
	return C(t.Error, t.SymFailed)
}

// Duration rounds d for display.
func Duration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Millisecond).String()
}
