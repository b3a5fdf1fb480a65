// Package aperture computes the illumination kernel of an antenna element:
// the complex weight a location in the aperture plane contributes to the
// element's response, per polarization channel.
//
// Each channel is configured independently either with an analytic
// footprint (rectangular, square or circular) or with a sampled pattern
// table matched by nearest neighbour.
package aperture

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/rjboer/goaperture/internal/logging"
	"github.com/rjboer/goaperture/internal/lookup"
)

// KernelType selects how a channel produces kernel values.
type KernelType int

const (
	// KernelLookup matches locations against a sampled pattern table.
	KernelLookup KernelType = iota
	// KernelFunc evaluates an analytic footprint.
	KernelFunc
)

func (k KernelType) String() string {
	if k == KernelFunc {
		return "func"
	}
	return "lookup"
}

// ParseKernelType converts "lookup" or "func" into a KernelType. The empty
// string selects KernelLookup.
func ParseKernelType(s string) (KernelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lookup":
		return KernelLookup, nil
	case "func":
		return KernelFunc, nil
	default:
		return KernelLookup, valueErrorf("unsupported kernel type %q", s)
	}
}

// Channel is the configuration of one polarization channel. It is either an
// Analytic or a Lookup value.
type Channel interface {
	KernelType() KernelType
	params() Params
}

// Analytic evaluates a closed-form footprint. A nil Params selects
// DefaultParams.
type Analytic struct {
	Shape  Shape
	Params *Params
}

func (Analytic) KernelType() KernelType { return KernelFunc }
func (a Analytic) params() Params        { return paramsOrDefault(a.Params) }

// Lookup matches locations against the table loaded from Source. Only
// Params.RMax is used, as the default search radius.
type Lookup struct {
	Source lookup.Source
	Params *Params
}

func (Lookup) KernelType() KernelType { return KernelLookup }
func (l Lookup) params() Params        { return paramsOrDefault(l.Params) }

func paramsOrDefault(p *Params) Params {
	if p == nil {
		return DefaultParams()
	}
	return *p
}

// NewChannel builds a channel configuration from its loosely typed parts.
// An empty kernel type selects lookup and an empty shape under func selects
// circular. A shape given for a lookup channel is a conflicting
// configuration.
func NewChannel(kernelType, shape string, params *Params, source lookup.Source) (Channel, error) {
	kt, err := ParseKernelType(kernelType)
	if err != nil {
		return nil, err
	}
	switch kt {
	case KernelFunc:
		s, err := ParseShape(shape)
		if err != nil {
			return nil, err
		}
		if s == ShapeUnset {
			s = ShapeCircular
		}
		return Analytic{Shape: s, Params: params}, nil
	default:
		if strings.TrimSpace(shape) != "" {
			return nil, valueErrorf("shape %q is only meaningful for func kernels", shape)
		}
		return Lookup{Source: source, Params: params}, nil
	}
}

// Options configures New. A nil channel is a lookup channel without a table.
type Options struct {
	Channels [NumPolarizations]Channel
	// LoadEagerly loads every lookup table during New instead of on the first
	// Compute call that requests a reload.
	LoadEagerly bool
	Mode        Mode
	// Logger defaults to logging.Default().
	Logger logging.Logger
}

// Aperture dispatches kernel requests to the configured channels and owns
// their loaded lookup tables. It is safe for concurrent use.
type Aperture struct {
	mode     Mode
	log      logging.Logger
	channels [NumPolarizations]*channel
}

type channel struct {
	pol Polarization
	cfg Channel

	mu     sync.RWMutex
	index  *lookup.Index
	loaded bool
}

// New validates opts and builds an Aperture. The footprint parameters of
// every channel are checked whatever its kernel type.
func New(ctx context.Context, opts Options) (*Aperture, error) {
	if opts.Mode != Lenient && opts.Mode != Strict {
		return nil, valueErrorf("unsupported mode %d", int(opts.Mode))
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	a := &Aperture{mode: opts.Mode, log: log}

	for _, p := range Polarizations {
		cfg := opts.Channels[p]
		switch c := cfg.(type) {
		case nil:
			cfg = Lookup{}
		case Analytic:
			if c.Shape < ShapeUnset || c.Shape > ShapeCircular {
				return nil, valueErrorf("%s: unsupported aperture shape %d", p, int(c.Shape))
			}
		case Lookup:
		default:
			return nil, valueErrorf("%s: unsupported channel configuration %T", p, cfg)
		}
		if _, err := ValidateShapeParameters(cfg.params(), nil); err != nil {
			return nil, errors.Wrap(err, p.String())
		}
		a.channels[p] = &channel{pol: p, cfg: cfg}
	}

	if opts.LoadEagerly {
		for _, ch := range a.channels {
			l, ok := ch.cfg.(Lookup)
			if !ok || l.Source == nil {
				continue
			}
			if err := a.load(ctx, ch, l.Source); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// Mode returns the configured leniency.
func (a *Aperture) Mode() Mode { return a.mode }

// Channel returns the configuration of p, or nil for an unknown channel.
func (a *Aperture) Channel(p Polarization) Channel {
	if !p.Valid() {
		return nil
	}
	return a.channels[p].cfg
}

// Loaded reports whether the lookup table of p is in memory.
func (a *Aperture) Loaded(p Polarization) bool {
	if !p.Valid() {
		return false
	}
	ch := a.channels[p]
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.loaded
}

// Reload refreshes the lookup tables of the selected channels; no selection
// means every channel. Analytic channels are skipped. A lookup channel
// without a source is skipped in Lenient mode and an error in Strict mode.
func (a *Aperture) Reload(ctx context.Context, pols ...Polarization) error {
	if len(pols) == 0 {
		pols = nil
	}
	selected, err := selectPolarizations(pols, a.mode)
	if err != nil {
		return err
	}
	for _, p := range selected {
		ch := a.channels[p]
		l, ok := ch.cfg.(Lookup)
		if !ok {
			continue
		}
		if l.Source == nil {
			if a.mode == Strict {
				return valueErrorf("%s: no lookup source configured", p)
			}
			continue
		}
		if err := a.load(ctx, ch, l.Source); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aperture) load(ctx context.Context, ch *channel, src lookup.Source) error {
	t, err := src.Load(ctx)
	if err != nil {
		return errors.Wrapf(err, "%s: load lookup table from %s", ch.pol, src)
	}
	ix, err := lookup.NewIndex(t)
	if err != nil {
		return errors.Wrapf(err, "%s: index lookup table from %s", ch.pol, src)
	}

	ch.mu.Lock()
	ch.index = ix
	ch.loaded = true
	ch.mu.Unlock()

	a.log.Info("lookup table loaded",
		logging.String("pol", ch.pol.String()),
		logging.String("source", src.String()),
		logging.Int("samples", t.Len()),
		logging.Bool("complex", t.Complex))
	return nil
}

// Request is one kernel evaluation.
type Request struct {
	// Locations accepts a single coordinate pair, an M×2 or M×2×1 numeric
	// array, or []r2.Vec.
	Locations any
	// Wavelength is nil (1), a scalar or one value per location. Lookup
	// channels ignore it.
	Wavelength any
	// PointingCenter is nil (zenith) or a two-element direction cosine.
	// Lookup channels ignore it.
	PointingCenter any
	// Polarizations selects channels; nil selects both. A non-nil empty
	// slice selects none and yields an empty Result, unlike Reload where
	// an empty selection means every channel.
	Polarizations []Polarization
	// SearchRadius bounds the lookup search. Zero selects the channel RMax.
	SearchRadius float64
	// Reload refreshes lookup tables before matching.
	Reload bool
}

// Result holds the kernels of one Compute call.
type Result struct {
	kernels   [NumPolarizations]*Kernel
	requested [NumPolarizations]bool
}

// Kernel returns the kernel computed for p. It is nil when p was not
// requested or, in Lenient mode, when the channel had nothing to compute
// from.
func (r Result) Kernel(p Polarization) *Kernel {
	if !p.Valid() {
		return nil
	}
	return r.kernels[p]
}

// Requested reports whether p took part in the call.
func (r Result) Requested(p Polarization) bool {
	return p.Valid() && r.requested[p]
}

// Polarizations lists the requested channels in canonical order.
func (r Result) Polarizations() []Polarization {
	var out []Polarization
	for _, p := range Polarizations {
		if r.requested[p] {
			out = append(out, p)
		}
	}
	return out
}

// Compute evaluates the kernel of every selected channel at req.Locations.
// Values are returned in input order.
func (a *Aperture) Compute(ctx context.Context, req Request) (Result, error) {
	var res Result
	selected, err := selectPolarizations(req.Polarizations, a.mode)
	if err != nil {
		return res, err
	}
	if len(selected) < len(req.Polarizations) {
		a.log.Debug("dropped polarizations from request",
			logging.Int("requested", len(req.Polarizations)),
			logging.Int("kept", len(selected)))
	}

	for _, p := range selected {
		ch := a.channels[p]
		var k *Kernel
		switch cfg := ch.cfg.(type) {
		case Analytic:
			k, err = a.computeAnalytic(p, cfg, req)
		case Lookup:
			k, err = a.computeLookup(ctx, ch, cfg, req)
		}
		if err != nil {
			return Result{}, errors.Wrap(err, p.String())
		}
		res.kernels[p] = k
		res.requested[p] = true
	}
	return res, nil
}

func (a *Aperture) computeAnalytic(p Polarization, cfg Analytic, req Request) (*Kernel, error) {
	prm := cfg.params()
	switch cfg.Shape {
	case ShapeRect:
		return Rect(req.Locations, req.Wavelength, prm.XMax, prm.YMax, prm.RotAngle, req.PointingCenter)
	case ShapeSquare:
		return Square(req.Locations, req.Wavelength, prm.XMax, prm.RotAngle, req.PointingCenter)
	case ShapeCircular:
		return Circular(req.Locations, req.Wavelength, prm.RMin, prm.RMax, req.PointingCenter)
	}
	if a.mode == Strict {
		return nil, valueErrorf("no aperture shape configured")
	}
	a.log.Debug("no aperture shape configured", logging.String("pol", p.String()))
	return nil, nil
}

func (a *Aperture) computeLookup(ctx context.Context, ch *channel, cfg Lookup, req Request) (*Kernel, error) {
	if cfg.Source == nil {
		if a.mode == Strict {
			return nil, valueErrorf("no lookup source configured")
		}
		a.log.Debug("no lookup source configured", logging.String("pol", ch.pol.String()))
		return nil, nil
	}
	radius, err := searchRadius(req.SearchRadius, cfg.params())
	if err != nil {
		return nil, err
	}
	locs, err := NormalizeLocations(req.Locations)
	if err != nil {
		return nil, err
	}

	if req.Reload {
		if err := a.load(ctx, ch, cfg.Source); err != nil {
			return nil, err
		}
	}
	ch.mu.RLock()
	ix := ch.index
	ch.mu.RUnlock()
	if ix == nil {
		return nil, valueErrorf("lookup table from %s is not loaded; request a reload", cfg.Source)
	}

	m, err := ix.Match(locs, radius, false)
	if err != nil {
		return nil, err
	}
	values := make([]complex128, len(locs))
	for i, qi := range m.QueryIndices {
		values[qi] = m.Values[i]
	}
	return &Kernel{Values: values, Real: !ix.Table().Complex}, nil
}

// searchRadius resolves the lookup search radius; zero falls back to rmax.
func searchRadius(r float64, p Params) (float64, error) {
	if r == 0 {
		r = p.RMax
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, typeErrorf("search radius must be a finite scalar, got %v", r)
	}
	if r <= 0 {
		return 0, valueErrorf("search radius must be positive, got %g", r)
	}
	return r, nil
}
