package aperture

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r2"
)

const tol = 1e-12

func randomLocations(seed int64, n int, extent float64) []r2.Vec {
	rnd := rand.New(rand.NewSource(seed))
	locs := make([]r2.Vec, n)
	for i := range locs {
		locs[i] = r2.Vec{X: (rnd.Float64()*2 - 1) * extent, Y: (rnd.Float64()*2 - 1) * extent}
	}
	return locs
}

func TestCircularScenario(t *testing.T) {
	k, err := Circular([][]float64{{0, 0}, {2, 0}}, 1.0, 0, 1, []float64{0, 0})
	if err != nil {
		t.Fatalf("Circular: %v", err)
	}
	if !k.Real {
		t.Fatalf("zenith kernel should collapse to real")
	}
	if diff := cmp.Diff([]float64{1, 0}, k.RealValues()); diff != "" {
		t.Fatalf("kernel mismatch (-want +got):\n%s", diff)
	}
}

func TestRectScenario(t *testing.T) {
	k, err := Rect([][]float64{{0.5, 0.5}}, 1.0, 1, 1, 0, []float64{0, 0})
	if err != nil {
		t.Fatalf("Rect: %v", err)
	}
	if !k.Real || k.Len() != 1 || k.Values[0] != 1 {
		t.Fatalf("unexpected kernel %+v", k)
	}
}

func TestRectFootprintExactness(t *testing.T) {
	tests := []struct {
		xmax, ymax, rot float64
	}{
		{xmax: 1, ymax: 0.5, rot: 0},
		{xmax: 0.8, ymax: 0.3, rot: 0.7},
		{xmax: 0.4, ymax: 1.2, rot: -1.1},
		{xmax: 1, ymax: 1, rot: math.Pi / 6},
	}

	locs := randomLocations(1, 2000, 1.5)
	for _, tt := range tests {
		k, err := Rect(locs, 1.0, tt.xmax, tt.ymax, tt.rot, nil)
		if err != nil {
			t.Fatalf("Rect: %v", err)
		}
		rot := tt.rot
		if tt.ymax > tt.xmax {
			rot += math.Pi / 2
		}
		sin, cos := math.Sincos(rot)
		for i, p := range locs {
			qx := p.X*cos + p.Y*sin
			qy := -p.X*sin + p.Y*cos
			dx := math.Abs(qx) - tt.xmax
			dy := math.Abs(qy) - tt.ymax
			if math.Abs(dx) < 1e-9 || math.Abs(dy) < 1e-9 {
				continue
			}
			inside := dx < 0 && dy < 0
			if inside != (k.Values[i] != 0) {
				t.Fatalf("rect %+v: location %v inside=%v but value %v", tt, p, inside, k.Values[i])
			}
		}
	}
}

func TestCircularFootprintExactness(t *testing.T) {
	locs := randomLocations(2, 2000, 1.5)
	k, err := Circular(locs, 1.0, 0.3, 1.1, []float64{0.2, -0.1})
	if err != nil {
		t.Fatalf("Circular: %v", err)
	}
	for i, p := range locs {
		r := math.Hypot(p.X, p.Y)
		if math.Abs(r-0.3) < 1e-9 || math.Abs(r-1.1) < 1e-9 {
			continue
		}
		inside := r > 0.3 && r < 1.1
		if inside != (k.Values[i] != 0) {
			t.Fatalf("location %v (r=%g) inside=%v but value %v", p, r, inside, k.Values[i])
		}
	}
}

func TestFootprintBoundaryIncluded(t *testing.T) {
	rect, err := Rect([]r2.Vec{{X: 1, Y: 0.5}, {X: -1, Y: -0.5}, {X: 1 + 1e-9, Y: 0}}, nil, 1, 0.5, 0, nil)
	if err != nil {
		t.Fatalf("Rect: %v", err)
	}
	if rect.Values[0] != 1 || rect.Values[1] != 1 || rect.Values[2] != 0 {
		t.Fatalf("unexpected rect boundary values %v", rect.Values)
	}

	circ, err := Circular([]r2.Vec{{X: 1, Y: 0}, {X: 0, Y: -0.5}, {X: 0, Y: 0.49}}, nil, 0.5, 1, nil)
	if err != nil {
		t.Fatalf("Circular: %v", err)
	}
	if circ.Values[0] != 1 || circ.Values[1] != 1 || circ.Values[2] != 0 {
		t.Fatalf("unexpected annulus boundary values %v", circ.Values)
	}
}

func TestRectLongSideAlongApertureY(t *testing.T) {
	// ymax > xmax turns the footprint by a quarter so the long side runs
	// along the sky x axis when rotangle is zero.
	k, err := Rect([]r2.Vec{{X: 1.5, Y: 0}, {X: 0, Y: 1.5}}, nil, 1, 2, 0, nil)
	if err != nil {
		t.Fatalf("Rect: %v", err)
	}
	if k.Values[0] == 0 || k.Values[1] != 0 {
		t.Fatalf("unexpected orientation %v", k.Values)
	}
}

func TestPhaseUnitMagnitude(t *testing.T) {
	locs := randomLocations(3, 500, 1)
	pc := r2.Vec{X: 0.3, Y: -0.4}
	wl := make([]float64, len(locs))
	for i := range wl {
		wl[i] = 0.5 + float64(i%7)*0.25
	}

	for _, shape := range []string{"rect", "circular"} {
		var k *Kernel
		var err error
		if shape == "rect" {
			k, err = Rect(locs, wl, 0.9, 0.6, 0.2, pc)
		} else {
			k, err = Circular(locs, wl, 0, 0.9, pc)
		}
		if err != nil {
			t.Fatalf("%s: %v", shape, err)
		}
		if k.Real {
			t.Fatalf("%s: steered kernel should be complex", shape)
		}
		nonZero := 0
		for _, v := range k.Values {
			if v == 0 {
				continue
			}
			nonZero++
			if math.Abs(cmplx.Abs(v)-1) > tol {
				t.Fatalf("%s: |%v| != 1", shape, v)
			}
		}
		if nonZero == 0 {
			t.Fatalf("%s: no location inside the footprint", shape)
		}
	}
}

func TestPhaseValue(t *testing.T) {
	k, err := Circular([]float64{0.5, 0.5}, 2.0, 0, 1, []float64{0.1, 0.2})
	if err != nil {
		t.Fatalf("Circular: %v", err)
	}
	want := cmplx.Exp(complex(0, -math.Pi*0.15))
	if cmplx.Abs(k.Values[0]-want) > tol {
		t.Fatalf("phase %v, want %v", k.Values[0], want)
	}
}

func TestZenithCollapsesToReal(t *testing.T) {
	k, err := Square(randomLocations(4, 100, 1), 0.3, 0.7, 0.4, nil)
	if err != nil {
		t.Fatalf("Square: %v", err)
	}
	if !k.Real {
		t.Fatalf("zenith kernel should be real")
	}
	for _, v := range k.Values {
		if imag(v) != 0 || (real(v) != 0 && real(v) != 1) {
			t.Fatalf("unexpected zenith value %v", v)
		}
	}
}

func TestSquareEqualsDegenerateRect(t *testing.T) {
	locs := randomLocations(5, 500, 1.2)
	pcs := []any{nil, []float64{0.1, 0.1}, r2.Vec{X: -0.5, Y: 0.2}}
	for _, pc := range pcs {
		for _, rot := range []float64{0, 0.3, 2.5} {
			sq, err := Square(locs, 0.8, 0.75, rot, pc)
			if err != nil {
				t.Fatalf("Square: %v", err)
			}
			rect, err := Rect(locs, 0.8, 0.75, 0.75, rot, pc)
			if err != nil {
				t.Fatalf("Rect: %v", err)
			}
			if diff := cmp.Diff(rect, sq); diff != "" {
				t.Fatalf("square differs from rect (-rect +square):\n%s", diff)
			}
		}
	}
}

func TestWavelengthBroadcast(t *testing.T) {
	locs := randomLocations(6, 300, 1)
	wl := make([]float64, len(locs))
	for i := range wl {
		wl[i] = 0.7
	}
	pc := []float64{0.25, 0.5}

	scalar, err := Circular(locs, 0.7, 0.1, 0.95, pc)
	if err != nil {
		t.Fatalf("Circular: %v", err)
	}
	array, err := Circular(locs, wl, 0.1, 0.95, pc)
	if err != nil {
		t.Fatalf("Circular: %v", err)
	}
	if diff := cmp.Diff(scalar, array, cmpopts.EquateApprox(0, tol)); diff != "" {
		t.Fatalf("broadcast mismatch (-scalar +array):\n%s", diff)
	}
}

func TestKernelErrorsSurface(t *testing.T) {
	if _, err := Rect([]float64{0, 0}, 1.0, 0, 1, 0, nil); err == nil {
		t.Fatalf("zero xmax accepted")
	}
	if _, err := Circular([]float64{0, 0}, -1.0, 0, 1, nil); err == nil {
		t.Fatalf("negative wavelength accepted")
	}
	if _, err := Square([]float64{0, 0}, 1.0, 1, 0, []float64{0.9, 0.9}); err == nil {
		t.Fatalf("pointing center below the horizon accepted")
	}
}

func TestParseShape(t *testing.T) {
	for _, s := range []Shape{ShapeRect, ShapeSquare, ShapeCircular} {
		got, err := ParseShape(s.String())
		if err != nil || got != s {
			t.Fatalf("ParseShape(%q) = %v, %v", s.String(), got, err)
		}
	}
	if got, err := ParseShape(""); err != nil || got != ShapeUnset {
		t.Fatalf("empty shape: %v, %v", got, err)
	}
	if _, err := ParseShape("hexagon"); err == nil {
		t.Fatalf("unknown shape accepted")
	}
}
