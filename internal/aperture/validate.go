package aperture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Params holds the footprint parameters of one polarization channel.
// XMax and YMax are the rectangular half-extents, RMin and RMax bound the
// circular annulus and RotAngle is the counter-clockwise rotation (radians)
// of the rectangular principal axis relative to the sky frame.
type Params struct {
	XMax     float64 `json:"xmax"`
	YMax     float64 `json:"ymax"`
	RMin     float64 `json:"rmin"`
	RMax     float64 `json:"rmax"`
	RotAngle float64 `json:"rotangle"`
}

// DefaultParams returns the unit footprint: XMax = YMax = RMax = 1, RMin = 0
// and no rotation.
func DefaultParams() Params {
	return Params{XMax: 1, YMax: 1, RMin: 0, RMax: 1, RotAngle: 0}
}

// ShapeParameters is the normalized output of ValidateShapeParameters.
type ShapeParameters struct {
	Params
	// PointingCenter holds the direction cosines (l, m) the illumination is
	// phased to. The zero value is zenith.
	PointingCenter r2.Vec
}

// KernelInputs is the normalized output of ValidateKernelInputs. Every
// field satisfies the location, wavelength and footprint invariants, so the
// kernel functions use it without further checks.
type KernelInputs struct {
	ShapeParameters
	Locations []r2.Vec
	// Wavelength has either one entry shared by every location or one entry
	// per location.
	Wavelength []float64
}

// WavelengthAt returns the wavelength that applies to location i.
func (in KernelInputs) WavelengthAt(i int) float64 {
	if len(in.Wavelength) == 1 {
		return in.Wavelength[0]
	}
	return in.Wavelength[i]
}

// ValidateShapeParameters checks footprint parameters and the optional
// pointing center. A negative RMin is clamped to zero; every other violation
// is an error. pointingCenter may be nil (zenith) or any two-element numeric
// array-like value.
func ValidateShapeParameters(p Params, pointingCenter any) (ShapeParameters, error) {
	scalars := []struct {
		name  string
		value float64
	}{
		{"xmax", p.XMax},
		{"ymax", p.YMax},
		{"rmin", p.RMin},
		{"rmax", p.RMax},
		{"rotangle", p.RotAngle},
	}
	for _, s := range scalars {
		if math.IsNaN(s.value) || math.IsInf(s.value, 0) {
			return ShapeParameters{}, typeErrorf("%s must be a finite scalar, got %v", s.name, s.value)
		}
	}
	if p.XMax <= 0 {
		return ShapeParameters{}, valueErrorf("xmax must be positive, got %g", p.XMax)
	}
	if p.YMax <= 0 {
		return ShapeParameters{}, valueErrorf("ymax must be positive, got %g", p.YMax)
	}
	if p.RMin < 0 {
		p.RMin = 0
	}
	if p.RMin >= p.RMax {
		return ShapeParameters{}, valueErrorf("rmin (%g) must be less than rmax (%g)", p.RMin, p.RMax)
	}

	pc, err := normalizePointingCenter(pointingCenter)
	if err != nil {
		return ShapeParameters{}, err
	}
	return ShapeParameters{Params: p, PointingCenter: pc}, nil
}

func normalizePointingCenter(v any) (r2.Vec, error) {
	if v == nil {
		return r2.Vec{}, nil
	}
	if pc, ok := v.(r2.Vec); ok {
		return checkDirection(pc)
	}
	d, err := toDense(v)
	if err != nil {
		return r2.Vec{}, err
	}
	if len(d.data) != 2 {
		return r2.Vec{}, valueErrorf("pointing center must have 2 elements, got %d", len(d.data))
	}
	return checkDirection(r2.Vec{X: d.data[0], Y: d.data[1]})
}

func checkDirection(pc r2.Vec) (r2.Vec, error) {
	if math.IsNaN(pc.X) || math.IsNaN(pc.Y) || math.IsInf(pc.X, 0) || math.IsInf(pc.Y, 0) {
		return r2.Vec{}, typeErrorf("pointing center must be finite, got %v", pc)
	}
	if r2.Dot(pc, pc) > 1 {
		return r2.Vec{}, valueErrorf("pointing center %v violates direction cosine rules (l^2+m^2 > 1)", pc)
	}
	return pc, nil
}

// NormalizeLocations reshapes array-like locations into M two-dimensional
// points. Singleton axes are dropped first. A one-dimensional input must hold
// 2 or 3 elements and is a single location; a three-dimensional input keeps
// only the first entry of its last axis; any third coordinate column is
// truncated.
func NormalizeLocations(locs any) ([]r2.Vec, error) {
	if pts, ok := locs.([]r2.Vec); ok {
		if len(pts) == 0 {
			return nil, valueErrorf("locations must not be empty")
		}
		return append([]r2.Vec(nil), pts...), nil
	}
	d, err := toDense(locs)
	if err != nil {
		return nil, err
	}
	d = d.squeeze()
	if len(d.data) == 0 {
		return nil, valueErrorf("locations must not be empty")
	}

	switch d.ndim() {
	case 1:
		n := d.shape[0]
		if n < 2 || n > 3 {
			return nil, valueErrorf("one-dimensional locations must have 2 or 3 elements, got %d", n)
		}
		return []r2.Vec{{X: d.data[0], Y: d.data[1]}}, nil
	case 2:
		rows, cols := d.shape[0], d.shape[1]
		out := make([]r2.Vec, rows)
		for i := range out {
			out[i] = r2.Vec{X: d.data[i*cols], Y: d.data[i*cols+1]}
		}
		return out, nil
	case 3:
		rows, cols, depth := d.shape[0], d.shape[1], d.shape[2]
		out := make([]r2.Vec, rows)
		for i := range out {
			base := i * cols * depth
			out[i] = r2.Vec{X: d.data[base], Y: d.data[base+depth]}
		}
		return out, nil
	default:
		return nil, valueErrorf("locations must be a one-, two- or three-dimensional array, got %d dimensions", d.ndim())
	}
}

// NormalizeWavelength flattens wavelength into a slice of length 1 or m.
// A nil wavelength defaults to 1.
func NormalizeWavelength(wavelength any, m int) ([]float64, error) {
	if wavelength == nil {
		return []float64{1}, nil
	}
	var values []float64
	switch w := wavelength.(type) {
	case float64:
		values = []float64{w}
	case []float64:
		values = append([]float64(nil), w...)
	default:
		d, err := toDense(wavelength)
		if err != nil {
			return nil, err
		}
		values = d.data
	}
	if len(values) != 1 && len(values) != m {
		return nil, valueErrorf("wavelength must have 1 or %d elements, got %d", m, len(values))
	}
	for i, v := range values {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, valueErrorf("wavelength[%d] must be finite and positive, got %g", i, v)
		}
	}
	return values, nil
}

// ValidateKernelInputs normalizes locations and wavelength and validates the
// footprint parameters and pointing center in one step.
func ValidateKernelInputs(locs, wavelength any, p Params, pointingCenter any) (KernelInputs, error) {
	points, err := NormalizeLocations(locs)
	if err != nil {
		return KernelInputs{}, err
	}
	wl, err := NormalizeWavelength(wavelength, len(points))
	if err != nil {
		return KernelInputs{}, err
	}
	shape, err := ValidateShapeParameters(p, pointingCenter)
	if err != nil {
		return KernelInputs{}, err
	}
	return KernelInputs{ShapeParameters: shape, Locations: points, Wavelength: wl}, nil
}
