package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	phc, err := Hash(Default, "hunter2!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(phc, "$argon2id$"))

	require.True(t, Verify("hunter2!", phc))
	require.False(t, Verify("otra-password", phc))
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash(Default, "hunter2!")
	require.NoError(t, err)
	b, err := Hash(Default, "hunter2!")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyGarbage(t *testing.T) {
	require.False(t, Verify("hunter2!", ""))
	require.False(t, Verify("hunter2!", "no-es-un-hash"))
	require.False(t, Verify("hunter2!", "$argon2id$v=19$basura"))
}
