package lookup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	in := &Table{
		Positions: []r2.Vec{{X: 0, Y: 0}, {X: 0.5, Y: -0.5}, {X: 1, Y: 1}},
		Values:    []complex128{1, complex(0.25, -0.75), 0},
		Complex:   true,
	}
	id, err := s.SavePattern(ctx, "feed-a", in)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	out, err := s.LoadPattern(ctx, "feed-a")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStoreReplaceAndList(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	first, err := s.SavePattern(ctx, "feed", twoPointTable())
	require.NoError(t, err)
	second, err := s.SavePattern(ctx, "feed", &Table{Positions: []r2.Vec{{}}, Values: []complex128{2}})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = s.SavePattern(ctx, "another", twoPointTable())
	require.NoError(t, err)

	infos, err := s.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "another", infos[0].Name)
	assert.Equal(t, 2, infos[0].Samples)
	assert.Equal(t, "feed", infos[1].Name)
	assert.Equal(t, second, infos[1].ID)
	assert.Equal(t, 1, infos[1].Samples)
	assert.False(t, infos[1].Complex)
}

func TestStoreMissingPattern(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.LoadPattern(ctx, "nope")
	assert.ErrorIs(t, err, ErrPatternNotFound)
	assert.ErrorIs(t, s.DeletePattern(ctx, "nope"), ErrPatternNotFound)

	_, err = s.SavePattern(ctx, "", twoPointTable())
	assert.Error(t, err)
	_, err = s.SavePattern(ctx, "empty", &Table{})
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.SavePattern(ctx, "feed", twoPointTable())
	require.NoError(t, err)
	require.NoError(t, s.DeletePattern(ctx, "feed"))
	_, err = s.LoadPattern(ctx, "feed")
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func TestStoreSources(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	_, err := s.SavePattern(ctx, "feed", twoPointTable())
	require.NoError(t, err)

	tbl, err := s.Source("feed").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	// Reopening runs the migrations again, which must be a no-op.
	src := SQLiteSource{Path: path, Name: "feed"}
	assert.Equal(t, "sqlite://"+path+"#feed", src.String())
	tbl, err = src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, twoPointTable(), tbl)
}
