package lookup

import (
	"context"
	"io/fs"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

// Source loads a pattern table from persisted storage.
type Source interface {
	Load(ctx context.Context) (*Table, error)
	// String identifies the source in logs.
	String() string
}

// FileSource reads a text table from the local filesystem. Transient read
// failures are retried with exponential backoff; a missing file or a
// malformed table fails immediately.
type FileSource struct {
	Path string
	// MaxRetries bounds the retries after the first attempt. Zero disables
	// retrying.
	MaxRetries uint64
	// InitialInterval is the first backoff delay. Zero selects 100ms.
	InitialInterval time.Duration

	read func(path string) (*Table, error)
}

// NewFileSource returns a FileSource for path that retries up to three times.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, MaxRetries: 3}
}

func (s *FileSource) String() string { return s.Path }

// Load reads and parses the table.
func (s *FileSource) Load(ctx context.Context) (*Table, error) {
	read := s.read
	if read == nil {
		read = ReadTableFile
	}

	var table *Table
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		t, err := read(s.Path)
		if err != nil {
			if permanentLoadError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		table = t
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 100 * time.Millisecond
	}
	b.MaxElapsedTime = 0
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if s.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(b, s.MaxRetries)
	}
	policy = backoff.WithContext(policy, ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return table, nil
}

func permanentLoadError(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, ErrMalformedTable) ||
		errors.Is(err, ErrEmptyTable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// StaticSource serves an in-memory table. It is useful for tables computed at
// runtime and in tests.
type StaticSource struct {
	Name  string
	Table *Table
}

func (s StaticSource) String() string {
	if s.Name == "" {
		return "static"
	}
	return s.Name
}

// Load returns the wrapped table after validating it.
func (s StaticSource) Load(context.Context) (*Table, error) {
	if err := s.Table.Validate(); err != nil {
		return nil, err
	}
	return s.Table, nil
}
