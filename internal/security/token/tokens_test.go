package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	b, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a)
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		require.True(t, c >= '0' && c <= '9')
	}
}

func TestSHA256Base64URLIsStable(t *testing.T) {
	require.Equal(t, SHA256Base64URL("abc"), SHA256Base64URL("abc"))
	require.NotEqual(t, SHA256Base64URL("abc"), SHA256Base64URL("abd"))
}
