package summary

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lockwhz/secregress/models"
)

// Totals aggregates one repository's summary for the comparison view.
type Totals struct {
	Repository string
	Commits    int
	High       int
	Medium     int
	Low        int
}

func (t Totals) Total() int { return t.High + t.Medium + t.Low }

// ComputeTotals sums every repository in combined, in order of appearance.
func ComputeTotals(combined models.Combined) []Totals {
	var out []Totals
	for _, s := range combined.ByRepository() {
		t := Totals{Repository: s.Repository, Commits: len(s.Records)}
		for _, r := range s.Records {
			t.High += r.High
			t.Medium += r.Medium
			t.Low += r.Low
		}
		out = append(out, t)
	}
	return out
}

// RenderTable prints per-repository totals for the combined summary.
func RenderTable(w io.Writer, combined models.Combined) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Repository", "Commits", "High", "Medium", "Low", "Total"})

	var sum Totals
	for _, t := range ComputeTotals(combined) {
		tw.AppendRow(table.Row{t.Repository, t.Commits, t.High, t.Medium, t.Low, t.Total()})
		sum.Commits += t.Commits
		sum.High += t.High
		sum.Medium += t.Medium
		sum.Low += t.Low
	}
	tw.AppendFooter(table.Row{"Total", sum.Commits, sum.High, sum.Medium, sum.Low, sum.Total()})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "High", Colors: text.Colors{text.FgRed}},
		{Name: "Medium", Colors: text.Colors{text.FgYellow}},
	})
	tw.Render()
}
