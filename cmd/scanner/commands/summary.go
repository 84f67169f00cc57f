package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/scanner"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// renderSummary prints one row per provider outcome and a run footer.
func renderSummary(w io.Writer, res scanner.Result) {
	s := res.Summary
	t := newTable(w)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle("Run %s", s.RunID)
	t.AppendHeader(table.Row{"Category", "Provider", "Status", "Slots", "Reason"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Slots", Align: text.AlignRight},
	})
	for _, o := range s.Outcomes {
		reason := o.Reason
		if reason == "" && o.Err != nil {
			reason = o.Err.Error()
		}
		t.AppendRow(table.Row{o.Category, o.Provider, statusLabel(o.Status), o.Slots, reason})
	}
	elapsed := ""
	if !s.FinishedAt.IsZero() {
		elapsed = s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()
	}
	t.AppendFooter(table.Row{s.Status, fmt.Sprintf("%d ok / %d failed", s.Recorded(), s.Failed()), elapsed, s.SlotCount, changeLabel(res)})
	t.Render()
}

func statusLabel(s availability.Status) string {
	if s == availability.StatusFailed {
		return text.FgRed.Sprint(string(s))
	}
	return string(s)
}

func changeLabel(res scanner.Result) string {
	switch {
	case res.Artifact.MD5 == "":
		return "not published"
	case !res.Changed:
		return "unchanged"
	default:
		return fmt.Sprintf("%d new slots", len(res.NewSlots))
	}
}
