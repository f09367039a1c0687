package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/modtest/pkg/modules"
	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
	"github.com/Sumatoshi-tech/modtest/pkg/session"
)

const (
	msgNothingToTest = "No module to test. Exiting..."

	sourceChanged = "changed"
	sourceInclude = "include"

	messageWidthMax = 120
	timeLayout      = "2006-01-02 15:04:05"
)

// reporter writes human-readable results to the command output.
type reporter struct {
	out    io.Writer
	pass   *color.Color
	fail   *color.Color
	notice *color.Color
	faint  *color.Color
}

func newReporter(out io.Writer, noColor bool) *reporter {
	rep := &reporter{
		out:    out,
		pass:   color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		notice: color.New(color.FgYellow),
		faint:  color.New(color.Faint),
	}

	if noColor {
		for _, c := range []*color.Color{rep.pass, rep.fail, rep.notice, rep.faint} {
			c.DisableColor()
		}
	}

	return rep
}

func (r *reporter) nothingToTest() {
	r.notice.Fprintln(r.out, msgNothingToTest)
}

// moduleTable lists the effective modules and why each one was selected.
func (r *reporter) moduleTable(baseRef string, changed, effective modules.Set) {
	if effective.Len() == 0 {
		r.nothingToTest()

		return
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "Module", "Source"})

	for i, name := range effective.Sorted() {
		source := sourceInclude
		if changed.Has(name) {
			source = sourceChanged
		}

		tbl.AppendRow(table.Row{i + 1, name, source})
	}

	tbl.AppendFooter(table.Row{"", english.Plural(effective.Len(), "module", ""), "base " + baseRef})

	fmt.Fprintln(r.out, tbl.Render())
}

// verdict prints the outcome line followed by the failing records, if any.
func (r *reporter) verdict(v outcome.Verdict) {
	if v.Passed {
		r.pass.Fprint(r.out, "PASSED")
		fmt.Fprintf(r.out, "  %s evaluated\n", english.Plural(v.Records, "record", ""))

		return
	}

	reason := v.Reason
	if reason == "" {
		reason = english.Plural(len(v.Failures), "failing record", "")
	}

	r.fail.Fprint(r.out, "FAILED")
	fmt.Fprintf(r.out, "  %s\n", reason)

	r.failures(v.Failures)
}

func (r *reporter) failures(records []outcome.Record) {
	if len(records) == 0 {
		return
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Time", "Level", "Logger", "Message"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: messageWidthMax},
	})

	for _, rec := range records {
		stamp := ""
		if !rec.Time.IsZero() {
			stamp = rec.Time.UTC().Format(timeLayout)
		}

		tbl.AppendRow(table.Row{stamp, rec.Level, rec.Name, firstLine(rec.Message)})
	}

	fmt.Fprintln(r.out, tbl.Render())
}

// sessionSummary prints per-phase timings of a finished session.
func (r *reporter) sessionSummary(result session.Result) {
	names := make([]string, 0, len(result.Phases))
	for name := range result.Phases {
		names = append(names, name)
	}

	slices.SortFunc(names, func(a, b string) int { return phaseRank(a) - phaseRank(b) })

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+formatDuration(result.Phases[name]))
	}

	r.faint.Fprintf(r.out, "%s tested in %s (%s)\n",
		english.Plural(len(result.Modules), "module", ""),
		formatDuration(result.Elapsed),
		strings.Join(parts, ", "))
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func phaseRank(name string) int {
	switch name {
	case session.PhaseResolve:
		return 0
	case session.PhaseExecute:
		return 1
	default:
		return 2
	}
}

// formatDuration renders short durations precisely and long ones in words.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Millisecond).String()
	}

	now := time.Now()

	return strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")

	return line
}
