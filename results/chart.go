package results

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderChart writes an HTML line chart with the load and execution
// microseconds of every run per iteration.
func RenderChart(w io.Writer, title string, runs ...*Run) error {
	if len(runs) == 0 {
		return errors.New("no runs to chart")
	}
	longest := 0
	for _, run := range runs {
		if len(run.Rows) > longest {
			longest = len(run.Rows)
		}
	}
	x := make([]string, longest)
	for i := range x {
		x[i] = strconv.Itoa(i)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "per-iteration load and execution time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "µs"}),
	)
	line.SetXAxis(x)
	for _, run := range runs {
		label := run.Label
		if label == "" {
			label = fmt.Sprintf("run %d", run.ID)
		}
		load := make([]opts.LineData, len(run.Rows))
		exec := make([]opts.LineData, len(run.Rows))
		for i, row := range run.Rows {
			load[i] = opts.LineData{Value: row.LoadProgramUs}
			exec[i] = opts.LineData{Value: row.ExecutionUs}
		}
		line.AddSeries(label+" load", load).
			AddSeries(label+" exec", exec)
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	return line.Render(w)
}
