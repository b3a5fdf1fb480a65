// Package config loads aperture configurations from JSON5 files with
// environment overrides.
//
// A configuration file looks like:
//
//	{
//	  mode: "lenient",          // or "strict"
//	  load_eagerly: true,
//	  log_level: "info",
//	  log_format: "text",
//	  polarizations: {
//	    P1: { kernel_type: "func", shape: "rect", parms: { xmax: 2, ymax: 1, rotangle: 0.3 } },
//	    P2: { kernel_type: "lookup", lookup: "sqlite:///data/patterns.db#feed-p2", parms: { rmax: 0.5 } },
//	  },
//	}
//
// The APERTURE_MODE, APERTURE_LOAD_EAGERLY, APERTURE_LOG_LEVEL,
// APERTURE_LOG_FORMAT, APERTURE_P1_LOOKUP and APERTURE_P2_LOOKUP environment
// variables override the matching file entries.
package config

import (
	"context"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	json "github.com/KevinWang15/go-json5"
	"github.com/pkg/errors"

	"github.com/rjboer/goaperture/internal/aperture"
	"github.com/rjboer/goaperture/internal/logging"
)

// Channel is the file form of one polarization channel.
type Channel struct {
	KernelType string
	Shape      string
	// Params is nil when the file gives no parms.
	Params *aperture.Params
	// Lookup is a table locator, see ParseLocator.
	Lookup string
}

// File is a parsed configuration.
type File struct {
	Mode        aperture.Mode
	LoadEagerly bool
	LogLevel    logging.Level
	LogFormat   logging.Format
	// Channels holds nil for polarizations the file does not mention.
	Channels [aperture.NumPolarizations]*Channel
}

// Load reads the configuration file at path and applies environment
// overrides. lookupEnv defaults to os.LookupEnv.
func Load(path string, lookupEnv func(string) (string, bool)) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, "read aperture config")
	}
	f, err := Parse(data, lookupEnv)
	if err != nil {
		return File{}, errors.Wrapf(err, "%s", path)
	}
	return f, nil
}

// Parse decodes a JSON5 configuration and applies environment overrides.
func Parse(data []byte, lookupEnv func(string) (string, bool)) (File, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return File{}, errors.Wrap(err, "decode aperture config")
	}

	f := File{LogLevel: logging.Info, LogFormat: logging.Text}

	mode, err := stringLeaf(doc, "mode")
	if err != nil {
		return File{}, err
	}
	if f.Mode, err = aperture.ParseMode(envString(lookupEnv, "APERTURE_MODE", mode)); err != nil {
		return File{}, err
	}

	if v, ok := doc["load_eagerly"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return File{}, errors.Wrapf(aperture.ErrType, "load_eagerly: is not a bool")
		}
		f.LoadEagerly = b
	}
	f.LoadEagerly = envBool(lookupEnv, "APERTURE_LOAD_EAGERLY", f.LoadEagerly)

	level, err := stringLeaf(doc, "log_level")
	if err != nil {
		return File{}, err
	}
	if f.LogLevel, err = logging.ParseLevel(envString(lookupEnv, "APERTURE_LOG_LEVEL", level)); err != nil {
		return File{}, errors.Wrap(aperture.ErrValue, err.Error())
	}
	format, err := stringLeaf(doc, "log_format")
	if err != nil {
		return File{}, err
	}
	if f.LogFormat, err = logging.ParseFormat(envString(lookupEnv, "APERTURE_LOG_FORMAT", format)); err != nil {
		return File{}, errors.Wrap(aperture.ErrValue, err.Error())
	}

	if err := parseChannels(doc, &f); err != nil {
		return File{}, err
	}

	for _, p := range aperture.Polarizations {
		key := "APERTURE_" + p.String() + "_LOOKUP"
		loc, ok := lookupEnv(key)
		if !ok {
			continue
		}
		if f.Channels[p] == nil {
			f.Channels[p] = &Channel{}
		}
		f.Channels[p].Lookup = loc
	}
	return f, nil
}

func parseChannels(doc map[string]interface{}, f *File) error {
	raw, ok := doc["polarizations"]
	if !ok || raw == nil {
		return nil
	}
	pols, ok := raw.(map[string]interface{})
	if !ok {
		return errors.Wrap(aperture.ErrType, "polarizations: is not an object")
	}

	labels := make([]string, 0, len(pols))
	for label := range pols {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		p, err := aperture.ParsePolarization(label)
		if err != nil {
			if f.Mode == aperture.Strict {
				return errors.Wrap(err, "polarizations")
			}
			continue
		}
		entry, ok := pols[label].(map[string]interface{})
		if !ok {
			return errors.Wrapf(aperture.ErrType, "polarizations.%s: is not an object", label)
		}
		ch, err := parseChannel(entry)
		if err != nil {
			return errors.Wrapf(err, "polarizations.%s", label)
		}
		f.Channels[p] = ch
	}
	return nil
}

func parseChannel(entry map[string]interface{}) (*Channel, error) {
	ch := &Channel{}
	var err error
	if ch.KernelType, err = stringLeaf(entry, "kernel_type"); err != nil {
		return nil, err
	}
	if ch.Shape, err = stringLeaf(entry, "shape"); err != nil {
		return nil, err
	}
	if ch.Lookup, err = stringLeaf(entry, "lookup"); err != nil {
		return nil, err
	}

	raw, ok := entry["parms"]
	if !ok || raw == nil {
		return ch, nil
	}
	parms, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.Wrap(aperture.ErrType, "parms: is not an object")
	}
	p := aperture.DefaultParams()
	fields := map[string]*float64{
		"xmax":     &p.XMax,
		"ymax":     &p.YMax,
		"rmin":     &p.RMin,
		"rmax":     &p.RMax,
		"rotangle": &p.RotAngle,
	}
	for key, v := range parms {
		dst, known := fields[key]
		if !known {
			return nil, errors.Wrapf(aperture.ErrValue, "parms.%s: unknown parameter", key)
		}
		num, isNum := v.(float64)
		if !isNum {
			return nil, errors.Wrapf(aperture.ErrType, "parms.%s: is not a number", key)
		}
		*dst = num
	}
	ch.Params = &p
	return ch, nil
}

// stringLeaf returns doc[key] as a string; a missing or null key is "".
func stringLeaf(doc map[string]interface{}, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(aperture.ErrType, "%s: is not a string", key)
	}
	return s, nil
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}

func envBool(lookup func(string) (string, bool), key string, def bool) bool {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return def
}

// Build turns f into aperture options. Log output goes to logOut, or to
// stderr when logOut is nil.
func Build(f File, logOut io.Writer) (aperture.Options, error) {
	if logOut == nil {
		logOut = os.Stderr
	}
	opts := aperture.Options{
		LoadEagerly: f.LoadEagerly,
		Mode:        f.Mode,
		Logger:      logging.New(f.LogLevel, f.LogFormat, logOut),
	}
	for _, p := range aperture.Polarizations {
		c := f.Channels[p]
		if c == nil {
			continue
		}
		src, err := ParseLocator(c.Lookup)
		if err != nil {
			return aperture.Options{}, errors.Wrapf(err, "%s", p)
		}
		ch, err := aperture.NewChannel(c.KernelType, c.Shape, c.Params, src)
		if err != nil {
			return aperture.Options{}, errors.Wrapf(err, "%s", p)
		}
		opts.Channels[p] = ch
	}
	return opts, nil
}

// Open loads the configuration at path and constructs the Aperture it
// describes, logging to stderr.
func Open(ctx context.Context, path string, lookupEnv func(string) (string, bool)) (*aperture.Aperture, error) {
	f, err := Load(path, lookupEnv)
	if err != nil {
		return nil, err
	}
	opts, err := Build(f, nil)
	if err != nil {
		return nil, err
	}
	return aperture.New(ctx, opts)
}
