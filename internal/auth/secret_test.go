package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRefreshSecret(t *testing.T) {
	raw, hash, err := NewRefreshSecret()
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 32)

	require.Equal(t, HashRefreshSecret(raw), hash)
	require.NotEqual(t, raw, hash)

	other, _, err := NewRefreshSecret()
	require.NoError(t, err)
	require.NotEqual(t, raw, other)
}

func TestHashRefreshSecretIsStable(t *testing.T) {
	require.Equal(t, HashRefreshSecret("abc"), HashRefreshSecret("abc"))
	require.NotEqual(t, HashRefreshSecret("abc"), HashRefreshSecret("abd"))
}
