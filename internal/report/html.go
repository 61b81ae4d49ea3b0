package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an interactive residual chart.
func (a Alignment) RenderHTML(w io.Writer) error {
	x := make([]int, 0, len(a.Points))
	residuals := make([]opts.LineData, 0, len(a.Points))
	for _, pt := range a.Points {
		x = append(x, pt.Trial)
		residuals = append(residuals, opts.LineData{Value: pt.Residual})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: a.Session + " alignment", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Anchor residuals", Subtitle: fmt.Sprintf("session=%s trials=%d offset=%.6f", a.Session, len(a.Points), a.Offset)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Trial", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Residual", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).AddSeries("residual", residuals,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
	)
	return line.Render(w)
}
