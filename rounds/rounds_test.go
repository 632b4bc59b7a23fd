package rounds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/merkle"
)

func TestDefaultTable(t *testing.T) {
	r := Default()
	require.Equal(t, 21, r.Len())

	first, err := r.RootFor(0)
	require.NoError(t, err)
	assert.Equal(t, "15b2605fe2558020e16de98d1dd44bcd0e09a2c4a0c5c3b43c7bc8826fe1de5c", first.String())

	last, err := r.RootFor(20)
	require.NoError(t, err)
	assert.Equal(t, "9060f8cbf8cea8a48cb4697c62e8aa4f104c9a2269b46fc69b4974923cff1b13", last.String())
}

func TestRootForBounds(t *testing.T) {
	r := Default()
	_, err := r.RootFor(uint(r.Len()))
	assert.ErrorIs(t, err, ErrInvalidRound)
	_, err = r.RootFor(255)
	assert.ErrorIs(t, err, ErrInvalidRound)

	var nilReg *Registry
	_, err = nilReg.RootFor(0)
	assert.ErrorIs(t, err, ErrInvalidRound)
}

func TestNewCopiesInput(t *testing.T) {
	roots := []merkle.Hash{merkle.Leaf([32]byte{1})}
	r, err := New(roots)
	require.NoError(t, err)
	roots[0] = merkle.Hash{}
	got, err := r.RootFor(0)
	require.NoError(t, err)
	assert.Equal(t, merkle.Leaf([32]byte{1}), got)

	out := r.Roots()
	out[0] = merkle.Hash{}
	got, _ = r.RootFor(0)
	assert.NotEqual(t, merkle.Hash{}, got)
}

func TestNewLimits(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoRounds)
	_, err = New(make([]merkle.Hash, MaxRounds+1))
	assert.ErrorIs(t, err, ErrTooManyRound)
	_, err = New(make([]merkle.Hash, MaxRounds))
	assert.NoError(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	b, err := Marshal(Default(), map[uint]string{0: "first drop"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rounds.yaml")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Roots(), r.Roots())

	a, err := Default().Fingerprint()
	require.NoError(t, err)
	c, err := r.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestParseRejectsGaps(t *testing.T) {
	_, err := Parse([]byte(`rounds:
  - id: 0
    root: 15b2605fe2558020e16de98d1dd44bcd0e09a2c4a0c5c3b43c7bc8826fe1de5c
  - id: 2
    root: 15b2605fe2558020e16de98d1dd44bcd0e09a2c4a0c5c3b43c7bc8826fe1de5c
`))
	assert.ErrorContains(t, err, "contiguous")

	_, err = Parse([]byte("rounds:\n  - id: 0\n    root: abcd\n"))
	assert.Error(t, err)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a, err := MustNew(merkle.Leaf([32]byte{1})).Fingerprint()
	require.NoError(t, err)
	b, err := MustNew(merkle.Leaf([32]byte{2})).Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
