package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WritePNG draws residual against trial number.
func (a Alignment) WritePNG(w io.Writer) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - anchor residuals (offset %.4f)", a.Session, a.Offset)
	p.X.Label.Text = "Trial"
	p.Y.Label.Text = "Corrected anchor - trial start"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(a.Points))
	for _, pt := range a.Points {
		pts = append(pts, plotter.XY{X: float64(pt.Trial), Y: pt.Residual})
	}

	if len(pts) > 0 {
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("residual scatter: %w", err)
		}
		scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
	}

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = color.Gray{Y: 128}
	zero.Width = vg.Points(1)
	p.Add(zero)

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
