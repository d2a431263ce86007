// Package report renders training results: an HTML reward chart, colored
// terminal views of the grid and the greedy policy, and text summaries.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
)

// MaxPoints caps the x axis of a chart; longer series are bucket-averaged.
const MaxPoints = 1000

// Series is one named line on a chart.
type Series struct {
	Name   string
	Values []float64
}

// Downsample averages values into at most n equal buckets.
func Downsample(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return append([]float64(nil), values...)
	}
	out := make([]float64, n)
	for i := range out {
		lo := i * len(values) / n
		hi := (i + 1) * len(values) / n
		out[i] = stat.Mean(values[lo:hi], nil)
	}
	return out
}

// MovingAverage returns the trailing mean over window values at each index.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// WriteRewardChart renders a page with one line chart of all series.
func WriteRewardChart(w io.Writer, title string, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("reward chart: no series")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "reward"}),
	)

	longest := 0
	for _, s := range series {
		longest = max(longest, len(s.Values))
	}
	points := min(longest, MaxPoints)

	xs := make([]string, points)
	for i := range xs {
		xs[i] = fmt.Sprintf("%d", i*longest/max(points, 1))
	}
	line.SetXAxis(xs)

	for _, s := range series {
		ys := Downsample(s.Values, MaxPoints)
		items := make([]opts.LineData, 0, len(ys))
		for _, v := range ys {
			items = append(items, opts.LineData{Value: v})
		}
		line.AddSeries(s.Name, items)
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// WriteRewardChartFile writes the chart page to path, creating its directory.
func WriteRewardChartFile(path, title string, series ...Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := WriteRewardChart(f, title, series...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
