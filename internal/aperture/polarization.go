package aperture

import "strings"

// Polarization identifies one of the two independent signal paths of an
// antenna element.
type Polarization int

const (
	P1 Polarization = iota
	P2

	// NumPolarizations is the number of recognized channels.
	NumPolarizations = 2
)

// Polarizations lists every recognized channel in canonical order.
var Polarizations = [NumPolarizations]Polarization{P1, P2}

func (p Polarization) String() string {
	switch p {
	case P1:
		return "P1"
	case P2:
		return "P2"
	default:
		return "P?"
	}
}

// Valid reports whether p is a recognized channel.
func (p Polarization) Valid() bool { return p == P1 || p == P2 }

// ParsePolarization converts a channel label such as "P1" into a Polarization.
func ParsePolarization(label string) (Polarization, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "P1":
		return P1, nil
	case "P2":
		return P2, nil
	default:
		return 0, valueErrorf("unrecognized polarization %q", label)
	}
}

// Mode selects how permissive the Aperture is towards unknown polarizations
// and channels that have nothing to compute from.
type Mode int

const (
	// Lenient drops unrecognized polarizations from multi-channel selections
	// and yields a nil kernel for channels without a data source.
	Lenient Mode = iota
	// Strict rejects both cases with ErrValue.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// ParseMode converts "lenient" or "strict" into a Mode. The empty string
// selects Lenient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, valueErrorf("unsupported mode %q", s)
	}
}

// SelectLabels resolves channel labels into a de-duplicated selection in
// canonical order. An empty list selects every channel. A single label must
// be recognized in either mode; within a longer list unknown labels are
// dropped in Lenient mode and rejected in Strict mode.
func SelectLabels(labels []string, mode Mode) ([]Polarization, error) {
	if len(labels) == 0 {
		return append([]Polarization(nil), Polarizations[:]...), nil
	}
	if len(labels) == 1 {
		p, err := ParsePolarization(labels[0])
		if err != nil {
			return nil, err
		}
		return []Polarization{p}, nil
	}
	pols := make([]Polarization, 0, len(labels))
	for _, label := range labels {
		p, err := ParsePolarization(label)
		if err != nil {
			if mode == Strict {
				return nil, err
			}
			continue
		}
		pols = append(pols, p)
	}
	return selectPolarizations(pols, mode)
}

// selectPolarizations filters and de-duplicates pols. A nil selection means
// every channel. A lone unrecognized value is rejected in either mode.
func selectPolarizations(pols []Polarization, mode Mode) ([]Polarization, error) {
	if pols == nil {
		return append([]Polarization(nil), Polarizations[:]...), nil
	}
	if len(pols) == 1 && !pols[0].Valid() {
		return nil, valueErrorf("unrecognized polarization %d", int(pols[0]))
	}
	var seen [NumPolarizations]bool
	for _, p := range pols {
		if !p.Valid() {
			if mode == Strict {
				return nil, valueErrorf("unrecognized polarization %d", int(p))
			}
			continue
		}
		seen[p] = true
	}
	out := make([]Polarization, 0, NumPolarizations)
	for _, p := range Polarizations {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}
