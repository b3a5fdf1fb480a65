// Package render samples aperture kernels on a regular grid of the aperture
// plane and draws them as heat maps.
package render

import (
	"context"
	"io"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rjboer/goaperture/internal/aperture"
)

// Quantity selects what a Grid reports for each complex kernel value.
type Quantity int

const (
	Amplitude Quantity = iota
	Phase
	RealPart
)

func (q Quantity) String() string {
	switch q {
	case Phase:
		return "phase"
	case RealPart:
		return "real"
	default:
		return "amplitude"
	}
}

// Grid is a kernel sampled on a regular mesh. It implements
// plotter.GridXYZ.
type Grid struct {
	Xs, Ys []float64
	// Values is row-major: Values[r*len(Xs)+c] lies at (Xs[c], Ys[r]).
	Values   []complex128
	Quantity Quantity
}

func (g *Grid) Dims() (c, r int) { return len(g.Xs), len(g.Ys) }
func (g *Grid) X(c int) float64   { return g.Xs[c] }
func (g *Grid) Y(r int) float64   { return g.Ys[r] }

func (g *Grid) Z(c, r int) float64 {
	v := g.Values[r*len(g.Xs)+c]
	switch g.Quantity {
	case Phase:
		return cmplx.Phase(v)
	case RealPart:
		return real(v)
	default:
		return cmplx.Abs(v)
	}
}

// Sample evaluates the kernel of pol on an n×n grid spanning
// [-extent, extent] on both axes. Locations, Polarizations and Reload in req
// are overridden; the remaining fields are passed through.
func Sample(ctx context.Context, a *aperture.Aperture, pol aperture.Polarization, extent float64, n int, req aperture.Request) (*Grid, error) {
	if n < 2 {
		return nil, errors.Wrapf(aperture.ErrValue, "grid needs at least 2 points per axis, got %d", n)
	}
	if !(extent > 0) {
		return nil, errors.Wrapf(aperture.ErrValue, "grid extent must be positive, got %g", extent)
	}
	axis := floats.Span(make([]float64, n), -extent, extent)

	locs := make([]r2.Vec, 0, n*n)
	for _, y := range axis {
		for _, x := range axis {
			locs = append(locs, r2.Vec{X: x, Y: y})
		}
	}
	req.Locations = locs
	req.Polarizations = []aperture.Polarization{pol}
	req.Reload = false

	res, err := a.Compute(ctx, req)
	if err != nil {
		return nil, err
	}
	k := res.Kernel(pol)
	if k == nil {
		return nil, errors.Wrapf(aperture.ErrValue, "%s produced no kernel", pol)
	}
	return &Grid{Xs: axis, Ys: axis, Values: k.Values}, nil
}

// HeatMap builds a plot of g.
func HeatMap(g *Grid, title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	h := plotter.NewHeatMap(g, palette.Heat(32, 1))
	p.Add(h)
	p.X.Min, p.X.Max = g.Xs[0], g.Xs[len(g.Xs)-1]
	p.Y.Min, p.Y.Max = g.Ys[0], g.Ys[len(g.Ys)-1]
	return p
}

// WritePNG renders g as a PNG of the given size to w.
func WritePNG(w io.Writer, g *Grid, title string, width, height vg.Length) error {
	wt, err := HeatMap(g, title).WriterTo(width, height, "png")
	if err != nil {
		return errors.Wrap(err, "render heat map")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write heat map")
	}
	return nil
}

// SavePNG renders g to the file at path.
func SavePNG(path string, g *Grid, title string, width, height vg.Length) error {
	if err := HeatMap(g, title).Save(width, height, path); err != nil {
		return errors.Wrap(err, "save heat map")
	}
	return nil
}
