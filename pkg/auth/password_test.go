package auth

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret", hash)

	assert.True(t, hasher.Compare(hash, "Sup3rSecret"))
	assert.False(t, hasher.Compare(hash, "Sup3rSecre"))
	assert.False(t, hasher.Compare(hash, ""))
}

func TestHasher_SamePasswordDifferentHashes(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	first, err := hasher.Hash("Sup3rSecret")
	require.NoError(t, err)
	second, err := hasher.Hash("Sup3rSecret")
	require.NoError(t, err)

	// Salted hashing never repeats output.
	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Compare(first, "Sup3rSecret"))
	assert.True(t, hasher.Compare(second, "Sup3rSecret"))
}

func TestHasher_UnicodeNormalization(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	// "é" composed (U+00E9) vs decomposed (e + U+0301). Both forms must
	// verify against the same stored hash.
	composed := "caféPass1"
	decomposed := "caféPass1"

	hash, err := hasher.Hash(composed)
	require.NoError(t, err)
	assert.True(t, hasher.Compare(hash, decomposed))
}

func TestHasher_EmptyPassword(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	_, err := hasher.Hash("")
	assert.Error(t, err)
}

func TestHasher_OverlongPassword(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	_, err := hasher.Hash(strings.Repeat("a", MaxPasswordLen+1))
	assert.Error(t, err)
}

func TestHasher_MalformedStoredHash(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	assert.False(t, hasher.Compare("not-a-bcrypt-hash", "Sup3rSecret"))
	assert.False(t, hasher.Compare("", "Sup3rSecret"))

	// A broken stored hash is a data problem worth surfacing, unlike a
	// plain mismatch.
	assert.Contains(t, buf.String(), "malformed")

	buf.Reset()
	hash, err := hasher.Hash("Sup3rSecret")
	require.NoError(t, err)
	assert.False(t, hasher.Compare(hash, "WrongPassword1"))
	assert.Empty(t, buf.String())
}

func TestNewHasher_OutOfRangeCostFallsBack(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewHasher(0).Cost)
	assert.Equal(t, DefaultBcryptCost, NewHasher(99).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).Cost)
}
