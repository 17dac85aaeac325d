package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	a, err := New([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	sealed, err := a.EncryptToString("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hunter2")

	pt, err := a.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pt)
}

func TestNonceVariesPerSeal(t *testing.T) {
	a, err := New([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	s1, err := a.EncryptToString("same input")
	require.NoError(t, err)
	s2, err := a.EncryptToString("same input")
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
}

func TestBadKeyLength(t *testing.T) {
	_, err := New([]byte("short"))
	require.Error(t, err)
}

func TestTamperedCiphertextRejected(t *testing.T) {
	a, err := New([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	sealed, err := a.EncryptToString("hunter2")
	require.NoError(t, err)

	_, err = a.DecryptString(sealed[:len(sealed)-2])
	require.Error(t, err)

	_, err = a.DecryptString("AAAA")
	require.Error(t, err)
}

func TestWrongKeyRejected(t *testing.T) {
	a1, err := New([]byte(strings.Repeat("a", 32)))
	require.NoError(t, err)
	a2, err := New([]byte(strings.Repeat("b", 32)))
	require.NoError(t, err)

	sealed, err := a1.EncryptToString("hunter2")
	require.NoError(t, err)

	_, err = a2.DecryptString(sealed)
	require.Error(t, err)
}
