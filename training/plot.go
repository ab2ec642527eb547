package training

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/houseprice/pkg/errors"
)

// FoldPlot builds a bar chart of the validation MSE per fold with a line at
// the cross-validation mean.
func FoldPlot(r *Report) (*plot.Plot, error) {
	if len(r.FoldMSE) == 0 {
		return nil, errors.NewValueError("FoldPlot", "report has no fold scores")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Validation MSE per fold (mean %.4f +- %.4f)", r.CVMeanMSE, r.CVStdMSE)
	p.X.Label.Text = "Fold"
	p.Y.Label.Text = "MSE (log1p price)"

	bars, err := plotter.NewBarChart(plotter.Values(r.FoldMSE), vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build bar chart")
	}
	bars.Color = color.RGBA{R: 50, G: 90, B: 200, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	last := float64(len(r.FoldMSE) - 1)
	mean, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: r.CVMeanMSE},
		{X: last + 0.5, Y: r.CVMeanMSE},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build mean line")
	}
	mean.Color = color.RGBA{R: 255, A: 255}
	mean.LineStyle.Width = vg.Points(2)
	mean.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(mean)
	p.Legend.Add("mean", mean)

	names := make([]string, len(r.FoldMSE))
	for i := range names {
		names[i] = fmt.Sprint(i)
	}
	p.NominalX(names...)
	p.Y.Min = 0
	return p, nil
}

// SaveFoldPlot renders FoldPlot to path. The image format follows the file
// extension (png, svg, pdf).
func SaveFoldPlot(path string, r *Report) error {
	p, err := FoldPlot(r)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save fold chart to %s", path)
	}
	return nil
}
