// Package chart renders summary records as standalone HTML pages.
package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/lockwhz/secregress/internal/logger"
	"github.com/lockwhz/secregress/internal/report"
	"github.com/lockwhz/secregress/internal/summary"
	"github.com/lockwhz/secregress/models"
)

const (
	Dir            = "charts"
	ComparisonFile = "comparison.html"

	topCWEs     = 10
	chartHeight = "500px"
	shortCommit = 8

	colorHigh   = "#e63946"
	colorMedium = "#ffbe0b"
	colorLow    = "#457b9d"
	colorTotal  = "#6d597a"
)

// CWECount is one bar of the top-CWE chart.
type CWECount struct {
	ID    string
	Count int
}

// TopCWEs counts how many commits carry each CWE and returns the n most
// frequent, ties broken by id.
func TopCWEs(records []models.CommitRecord, n int) []CWECount {
	counts := make(map[string]int)
	for _, r := range records {
		for _, id := range r.CWEs {
			counts[id]++
		}
	}

	out := make([]CWECount, 0, len(counts))
	for id, c := range counts {
		out = append(out, CWECount{ID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RepositoryPage renders the trend, severity and CWE charts for one summary.
func RepositoryPage(w io.Writer, s models.Summary) error {
	page := components.NewPage()
	page.PageTitle = s.Repository + " - vulnerability history"
	page.AddCharts(
		highSeverityTrend(s),
		severityDistribution(s),
		topCWEChart(s),
	)
	return page.Render(w)
}

// ComparisonPage renders per-repository totals and severity breakdown.
func ComparisonPage(w io.Writer, combined models.Combined) error {
	totals := summary.ComputeTotals(combined)
	labels := make([]string, len(totals))
	for i, t := range totals {
		labels[i] = t.Repository
	}

	total := newBar("Total Vulnerabilities by Repository", "", labels, "Total Vulnerabilities")
	total.AddSeries("Total", barData(totals, func(t summary.Totals) int { return t.Total() }),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorTotal}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	breakdown := newBar("Vulnerability Severity Breakdown", "", labels, "Count")
	stacked := charts.WithBarChartOpts(opts.BarChart{Stack: "severity"})
	breakdown.
		AddSeries("High", barData(totals, func(t summary.Totals) int { return t.High }), stacked, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorHigh})).
		AddSeries("Medium", barData(totals, func(t summary.Totals) int { return t.Medium }), stacked, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorMedium})).
		AddSeries("Low", barData(totals, func(t summary.Totals) int { return t.Low }), stacked, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorLow}))

	page := components.NewPage()
	page.PageTitle = "Repository comparison"
	page.AddCharts(total, breakdown)
	return page.Render(w)
}

// WriteAll writes one page per repository plus the comparison page under
// <outputDir>/charts and returns the files written.
func WriteAll(outputDir string, combined models.Combined) ([]string, error) {
	start := time.Now()
	defer logger.Trace("chart.WriteAll", start)

	dir := filepath.Join(outputDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	var written []string
	for _, s := range combined.ByRepository() {
		path := filepath.Join(dir, s.Repository+".html")
		if err := writePage(path, func(w io.Writer) error { return RepositoryPage(w, s) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := filepath.Join(dir, ComparisonFile)
	if err := writePage(path, func(w io.Writer) error { return ComparisonPage(w, combined) }); err != nil {
		return written, err
	}
	return append(written, path), nil
}

func writePage(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

func highSeverityTrend(s models.Summary) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: s.Repository + " - High Severity Vulnerabilities Over Time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(dataZoom()...),
		charts.WithXAxisOpts(opts.XAxis{Name: "Commit Sequence"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Number of Vulnerabilities"}),
	)
	line.SetXAxis(commitLabels(s.Records))

	data := make([]opts.LineData, len(s.Records))
	for i, r := range s.Records {
		data[i] = opts.LineData{Value: r.High, Name: r.Commit}
	}
	line.AddSeries("High", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorHigh}),
	)
	return line
}

func severityDistribution(s models.Summary) *charts.Bar {
	bar := newBar(s.Repository+" - Vulnerability Severity Distribution", "", commitLabels(s.Records), "Number of Vulnerabilities")

	stacked := charts.WithBarChartOpts(opts.BarChart{Stack: "severity"})
	series := []struct {
		name  string
		color string
		value func(models.CommitRecord) int
	}{
		{"High", colorHigh, func(r models.CommitRecord) int { return r.High }},
		{"Medium", colorMedium, func(r models.CommitRecord) int { return r.Medium }},
		{"Low", colorLow, func(r models.CommitRecord) int { return r.Low }},
	}
	for _, sr := range series {
		data := make([]opts.BarData, len(s.Records))
		for i, r := range s.Records {
			data[i] = opts.BarData{Value: sr.value(r)}
		}
		bar.AddSeries(sr.name, data, stacked, charts.WithItemStyleOpts(opts.ItemStyle{Color: sr.color}))
	}
	return bar
}

func topCWEChart(s models.Summary) *charts.Bar {
	top := TopCWEs(s.Records, topCWEs)
	subtitle := ""
	if len(top) == 0 {
		subtitle = "No CWE data"
	}

	// Horizontal bars read best with the most frequent category on top.
	labels := make([]string, len(top))
	data := make([]opts.BarData, len(top))
	for i, c := range top {
		j := len(top) - 1 - i
		labels[j] = report.Label(c.ID)
		data[j] = opts.BarData{Value: c.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: s.Repository + " - Top 10 CWE Categories", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithGridOpts(opts.Grid{Left: "5%", Right: "5%", ContainLabel: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Occurrence Count"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "CWE Category"}),
	)
	bar.SetXAxis(labels).
		AddSeries("Commits", data, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right"}))
	bar.XYReversal()
	return bar
}

func newBar(title, subtitle string, labels []string, yAxis string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(dataZoom()...),
		charts.WithYAxisOpts(opts.YAxis{Name: yAxis}),
	)
	bar.SetXAxis(labels)
	return bar
}

func dataZoom() []opts.DataZoom {
	return []opts.DataZoom{
		{Type: "slider", Start: 0, End: 100},
		{Type: "inside"},
	}
}

func commitLabels(records []models.CommitRecord) []string {
	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.Commit
		if len(labels[i]) > shortCommit {
			labels[i] = labels[i][:shortCommit]
		}
	}
	return labels
}

func barData(totals []summary.Totals, value func(summary.Totals) int) []opts.BarData {
	data := make([]opts.BarData, len(totals))
	for i, t := range totals {
		data[i] = opts.BarData{Value: value(t)}
	}
	return data
}
