package aperture

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestValidateShapeParametersRejects(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		pc   any
		want error
	}{
		{name: "rmin equals rmax", p: Params{XMax: 1, YMax: 1, RMin: 1, RMax: 1}, want: ErrValue},
		{name: "rmin above rmax", p: Params{XMax: 1, YMax: 1, RMin: 2, RMax: 1}, want: ErrValue},
		{name: "zero xmax", p: Params{XMax: 0, YMax: 1, RMax: 1}, want: ErrValue},
		{name: "negative ymax", p: Params{XMax: 1, YMax: -1, RMax: 1}, want: ErrValue},
		{name: "nan rotangle", p: Params{XMax: 1, YMax: 1, RMax: 1, RotAngle: math.NaN()}, want: ErrType},
		{name: "infinite rmax", p: Params{XMax: 1, YMax: 1, RMax: math.Inf(1)}, want: ErrType},
		{name: "pointing center outside unit circle", p: DefaultParams(), pc: []float64{0.8, 0.8}, want: ErrValue},
		{name: "pointing center with three elements", p: DefaultParams(), pc: []float64{0, 0, 1}, want: ErrValue},
		{name: "pointing center not numeric", p: DefaultParams(), pc: "zenith", want: ErrType},
		{name: "pointing center nan", p: DefaultParams(), pc: r2.Vec{X: math.NaN()}, want: ErrType},
	}
	for _, tt := range tests {
		_, err := ValidateShapeParameters(tt.p, tt.pc)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestValidateShapeParametersNormalizes(t *testing.T) {
	got, err := ValidateShapeParameters(Params{XMax: 2, YMax: 3, RMin: -1, RMax: 4, RotAngle: 0.5}, [][]int{{0, 1}})
	if err != nil {
		t.Fatalf("ValidateShapeParameters: %v", err)
	}
	want := ShapeParameters{
		Params:         Params{XMax: 2, YMax: 3, RMin: 0, RMax: 4, RotAngle: 0.5},
		PointingCenter: r2.Vec{X: 0, Y: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalized parameters mismatch (-want +got):\n%s", diff)
	}

	zenith, err := ValidateShapeParameters(DefaultParams(), nil)
	if err != nil || zenith.PointingCenter != (r2.Vec{}) {
		t.Fatalf("nil pointing center should be zenith, got %v, %v", zenith.PointingCenter, err)
	}
}

func TestNormalizeLocations(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []r2.Vec
	}{
		{name: "single pair", in: []float64{1, 2}, want: []r2.Vec{{X: 1, Y: 2}}},
		{name: "single triple truncated", in: []float64{1, 2, 3}, want: []r2.Vec{{X: 1, Y: 2}}},
		{name: "single row matrix", in: [][]float64{{1, 2}}, want: []r2.Vec{{X: 1, Y: 2}}},
		{name: "m by 2", in: [][]float64{{1, 2}, {3, 4}}, want: []r2.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{name: "m by 3 truncated", in: [][]float64{{1, 2, 9}, {3, 4, 9}}, want: []r2.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{name: "m by 2 by 1", in: [][][]float64{{{1}, {2}}, {{3}, {4}}}, want: []r2.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{name: "m by 2 by 2 keeps first", in: [][][]float64{{{1, 7}, {2, 7}}, {{3, 7}, {4, 7}}}, want: []r2.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{name: "fixed arrays", in: [][2]float32{{1, 2}, {3, 4}}, want: []r2.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{name: "integers", in: [][]int{{1, 2}, {3, 4}}, want: []r2.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		{name: "interface elements", in: []any{1.5, 2}, want: []r2.Vec{{X: 1.5, Y: 2}}},
		{name: "vectors", in: []r2.Vec{{X: 1, Y: 2}}, want: []r2.Vec{{X: 1, Y: 2}}},
		{name: "single vector", in: r2.Vec{X: 5, Y: 6}, want: []r2.Vec{{X: 5, Y: 6}}},
	}
	for _, tt := range tests {
		got, err := NormalizeLocations(tt.in)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("%s: mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestNormalizeLocationsRejects(t *testing.T) {
	fourD := [][][][]float64{
		{{{1, 2}, {3, 4}}, {{1, 2}, {3, 4}}},
		{{{1, 2}, {3, 4}}, {{1, 2}, {3, 4}}},
	}
	tests := []struct {
		name string
		in   any
		want error
	}{
		{name: "four dimensions", in: fourD, want: ErrValue},
		{name: "one element", in: []float64{1}, want: ErrValue},
		{name: "four elements", in: []float64{1, 2, 3, 4}, want: ErrValue},
		{name: "scalar", in: 3.0, want: ErrValue},
		{name: "empty", in: [][]float64{}, want: ErrValue},
		{name: "empty vectors", in: []r2.Vec{}, want: ErrValue},
		{name: "ragged", in: [][]float64{{1, 2}, {3}}, want: ErrValue},
		{name: "mixed depth", in: []any{1.0, []float64{2, 3}}, want: ErrValue},
		{name: "strings", in: [][]string{{"a", "b"}}, want: ErrType},
		{name: "nil", in: nil, want: ErrType},
	}
	for _, tt := range tests {
		_, err := NormalizeLocations(tt.in)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestNormalizeWavelength(t *testing.T) {
	got, err := NormalizeWavelength(nil, 3)
	if err != nil || !cmp.Equal(got, []float64{1}) {
		t.Fatalf("nil wavelength: %v, %v", got, err)
	}
	got, err = NormalizeWavelength([][]float64{{0.5}, {1}, {2}}, 3)
	if err != nil || !cmp.Equal(got, []float64{0.5, 1, 2}) {
		t.Fatalf("column wavelength: %v, %v", got, err)
	}

	tests := []struct {
		name string
		in   any
		want error
	}{
		{name: "wrong count", in: []float64{1, 2}, want: ErrValue},
		{name: "zero", in: 0.0, want: ErrValue},
		{name: "negative entry", in: []float64{1, -1, 1}, want: ErrValue},
		{name: "nan", in: math.NaN(), want: ErrValue},
		{name: "infinite", in: math.Inf(1), want: ErrValue},
		{name: "not numeric", in: "1m", want: ErrType},
	}
	for _, tt := range tests {
		_, err := NormalizeWavelength(tt.in, 3)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestValidateKernelInputs(t *testing.T) {
	in, err := ValidateKernelInputs([][]float64{{0, 0}, {1, 1}}, []float64{1, 2}, DefaultParams(), []float64{0.1, 0})
	if err != nil {
		t.Fatalf("ValidateKernelInputs: %v", err)
	}
	if len(in.Locations) != 2 || in.WavelengthAt(1) != 2 || in.PointingCenter.X != 0.1 {
		t.Fatalf("unexpected inputs %+v", in)
	}
	single, err := ValidateKernelInputs([][]float64{{0, 0}, {1, 1}}, 3.0, DefaultParams(), nil)
	if err != nil || single.WavelengthAt(1) != 3 {
		t.Fatalf("broadcast wavelength: %+v, %v", single, err)
	}
}
