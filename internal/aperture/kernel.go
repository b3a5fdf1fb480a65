package aperture

import (
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// realTolerance is the largest imaginary magnitude treated as zero when
// deciding whether a kernel is purely real.
const realTolerance = 1e-10

// Shape is an analytic aperture footprint.
type Shape int

const (
	ShapeUnset Shape = iota
	ShapeRect
	ShapeSquare
	ShapeCircular
)

func (s Shape) String() string {
	switch s {
	case ShapeRect:
		return "rect"
	case ShapeSquare:
		return "square"
	case ShapeCircular:
		return "circular"
	default:
		return ""
	}
}

// ParseShape converts "rect", "square" or "circular" into a Shape. The empty
// string yields ShapeUnset.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ShapeUnset, nil
	case "rect":
		return ShapeRect, nil
	case "square":
		return ShapeSquare, nil
	case "circular":
		return ShapeCircular, nil
	default:
		return ShapeUnset, valueErrorf("unsupported aperture shape %q", s)
	}
}

// Kernel holds one aperture kernel value per requested location, in input
// order.
type Kernel struct {
	Values []complex128
	// Real is set when every imaginary part is negligible. Values then carry
	// exactly zero imaginary parts.
	Real bool
}

// Len returns the number of kernel values.
func (k *Kernel) Len() int { return len(k.Values) }

// RealValues returns the real parts of the kernel values.
func (k *Kernel) RealValues() []float64 {
	out := make([]float64, len(k.Values))
	for i, v := range k.Values {
		out[i] = real(v)
	}
	return out
}

// Rect evaluates a rectangular aperture with half-extents xmax and ymax whose
// principal axis is rotated by rotangle. Locations inside the footprint,
// boundary included, receive the phase factor towards pointingCenter; all
// others are zero.
func Rect(locs, wavelength any, xmax, ymax, rotangle float64, pointingCenter any) (*Kernel, error) {
	p := DefaultParams()
	p.XMax, p.YMax, p.RotAngle = xmax, ymax, rotangle
	in, err := ValidateKernelInputs(locs, wavelength, p, pointingCenter)
	if err != nil {
		return nil, err
	}
	return rectKernel(in), nil
}

// Square evaluates a square aperture of half-extent xmax. It is Rect with
// ymax equal to xmax.
func Square(locs, wavelength any, xmax, rotangle float64, pointingCenter any) (*Kernel, error) {
	return Rect(locs, wavelength, xmax, xmax, rotangle, pointingCenter)
}

// Circular evaluates a uniform annulus rmin <= |loc| <= rmax.
func Circular(locs, wavelength any, rmin, rmax float64, pointingCenter any) (*Kernel, error) {
	p := DefaultParams()
	p.RMin, p.RMax = rmin, rmax
	in, err := ValidateKernelInputs(locs, wavelength, p, pointingCenter)
	if err != nil {
		return nil, err
	}
	return circularKernel(in), nil
}

func rectKernel(in KernelInputs) *Kernel {
	xmax, ymax := in.XMax, in.YMax
	rot := in.RotAngle
	// The longer side is always measured along the aperture y axis.
	if ymax > xmax {
		rot += math.Pi / 2
	}
	toAperture := r2.NewRotation(-rot, r2.Vec{})

	values := make([]complex128, len(in.Locations))
	for i, loc := range in.Locations {
		q := toAperture.Rotate(loc)
		if q.X < -xmax || q.X > xmax || q.Y < -ymax || q.Y > ymax {
			continue
		}
		values[i] = phase(q, in.PointingCenter, in.WavelengthAt(i))
	}
	return collapse(values)
}

func circularKernel(in KernelInputs) *Kernel {
	values := make([]complex128, len(in.Locations))
	for i, loc := range in.Locations {
		r := r2.Norm(loc)
		if r < in.RMin || r > in.RMax {
			continue
		}
		values[i] = phase(loc, in.PointingCenter, in.WavelengthAt(i))
	}
	return collapse(values)
}

// phase is exp(-i 2π/λ (loc · pc)).
func phase(loc, pc r2.Vec, wavelength float64) complex128 {
	return cmplx.Exp(complex(0, -2*math.Pi/wavelength*r2.Dot(loc, pc)))
}

func collapse(values []complex128) *Kernel {
	for _, v := range values {
		if math.Abs(imag(v)) >= realTolerance {
			return &Kernel{Values: values}
		}
	}
	for i, v := range values {
		values[i] = complex(real(v), 0)
	}
	return &Kernel{Values: values, Real: true}
}
