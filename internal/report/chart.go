// Package report renders stored session history as standalone HTML charts.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/drivesense/internal/db"
	"github.com/banshee-data/drivesense/internal/session"
)

// RenderScoreChart writes an HTML line chart of session scores over time.
// Sessions arrive most-recent-first from storage and are plotted oldest to
// newest.
func RenderScoreChart(w io.Writer, sessions []db.SessionRecord) error {
	labels := make([]string, 0, len(sessions))
	scores := make([]opts.LineData, 0, len(sessions))
	events := make([]opts.BarData, 0, len(sessions))

	for i := len(sessions) - 1; i >= 0; i-- {
		rec := sessions[i]
		start := time.UnixMilli(rec.StartTime)
		labels = append(labels, start.Format("Jan 2 15:04"))
		scores = append(scores, opts.LineData{Value: rec.Score})
		events = append(events, opts.BarData{Value: len(rec.Events)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Driving Scores",
			Width:     "1100px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Session scores",
			Subtitle: fmt.Sprintf("%d sessions", len(sessions)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{
			Min:  session.ScoreMin,
			Max:  session.ScoreMax,
			Name: "score",
		}),
	)
	line.SetXAxis(labels).
		AddSeries("score", scores,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	bar := charts.NewBar()
	bar.SetXAxis(labels).AddSeries("events", events)
	line.Overlap(bar)

	return line.Render(w)
}
