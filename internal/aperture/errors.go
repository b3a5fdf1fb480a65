package aperture

import "github.com/pkg/errors"

// ErrType is returned when an input has the wrong category of value: not
// numeric, not array-like, or not a finite scalar.
var ErrType = errors.New("aperture: invalid input type")

// ErrValue is returned when an input is numerically invalid: non-positive
// extents, inverted radii, a pointing center outside the unit circle,
// mismatched array lengths or a conflicting channel configuration.
var ErrValue = errors.New("aperture: invalid input value")

func typeErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrType, format, args...)
}

func valueErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrValue, format, args...)
}
