package aperture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DirectionFromAltAz converts an altitude and azimuth in radians into the
// direction cosines (l, m) used as a pointing center. Azimuth is measured
// from north (m axis) towards east (l axis).
func DirectionFromAltAz(alt, az float64) (r2.Vec, error) {
	if math.IsNaN(alt) || math.IsNaN(az) || math.IsInf(alt, 0) || math.IsInf(az, 0) {
		return r2.Vec{}, typeErrorf("altitude and azimuth must be finite, got %v, %v", alt, az)
	}
	if alt < 0 || alt > math.Pi/2 {
		return r2.Vec{}, valueErrorf("altitude %g is outside [0, π/2]", alt)
	}
	c := math.Cos(alt)
	return r2.Vec{X: c * math.Sin(az), Y: c * math.Cos(az)}, nil
}

// AltAzFromDirection inverts DirectionFromAltAz. Zenith has azimuth zero.
func AltAzFromDirection(pc r2.Vec) (alt, az float64, err error) {
	n, err := DirectionN(pc)
	if err != nil {
		return 0, 0, err
	}
	alt = math.Asin(n)
	if pc.X == 0 && pc.Y == 0 {
		return alt, 0, nil
	}
	az = math.Atan2(pc.X, pc.Y)
	if az < 0 {
		az += 2 * math.Pi
	}
	return alt, az, nil
}

// DirectionN returns the third direction cosine n = sqrt(1 - l² - m²).
func DirectionN(pc r2.Vec) (float64, error) {
	pc, err := checkDirection(pc)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(math.Max(0, 1-r2.Dot(pc, pc))), nil
}
