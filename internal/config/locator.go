package config

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rjboer/goaperture/internal/aperture"
	"github.com/rjboer/goaperture/internal/lookup"
)

// ParseLocator resolves a lookup table locator into a source:
//
//	""                                     no source
//	/data/p1.txt, file:///data/p1.txt      text table on the local filesystem
//	sqlite:///data/patterns.db#feed-p1     named pattern in a SQLite store
//	ssh://user:pw@host:2222/data/p1.txt    text table on a remote host
//
// An ssh locator may carry ?key=/path/to/id_ed25519 instead of a password.
func ParseLocator(loc string) (lookup.Source, error) {
	loc = strings.TrimSpace(loc)
	switch {
	case loc == "":
		return nil, nil
	case strings.HasPrefix(loc, "sqlite://"):
		rest := strings.TrimPrefix(loc, "sqlite://")
		i := strings.LastIndex(rest, "#")
		if i <= 0 || i == len(rest)-1 {
			return nil, errors.Wrapf(aperture.ErrValue, "sqlite locator %q needs <path>#<pattern>", loc)
		}
		return lookup.SQLiteSource{Path: rest[:i], Name: rest[i+1:]}, nil
	case strings.HasPrefix(loc, "ssh://"):
		return parseSSHLocator(loc)
	case strings.HasPrefix(loc, "file://"):
		path := strings.TrimPrefix(loc, "file://")
		if path == "" {
			return nil, errors.Wrapf(aperture.ErrValue, "file locator %q has no path", loc)
		}
		return lookup.NewFileSource(path), nil
	case strings.Contains(loc, "://"):
		return nil, errors.Wrapf(aperture.ErrValue, "unsupported lookup locator %q", loc)
	default:
		return lookup.NewFileSource(loc), nil
	}
}

func parseSSHLocator(loc string) (lookup.Source, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return nil, errors.Wrapf(aperture.ErrValue, "ssh locator: %v", err)
	}
	cfg := lookup.SSHConfig{Host: u.Hostname(), KeyPath: u.Query().Get("key")}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	if port := u.Port(); port != "" {
		if cfg.Port, err = strconv.Atoi(port); err != nil {
			return nil, errors.Wrapf(aperture.ErrValue, "ssh locator port %q", port)
		}
	}
	src, err := lookup.NewSSHSource(cfg, u.Path)
	if err != nil {
		return nil, errors.Wrap(aperture.ErrValue, err.Error())
	}
	return src, nil
}
