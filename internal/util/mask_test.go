package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "a…@e….com", MaskEmail("ana@example.com"))
	require.Equal(t, "a…@e….com", MaskEmail("  ANA@Example.COM "))
	require.Equal(t, "", MaskEmail(""))
	require.Equal(t, "***", MaskEmail("ab"))
	require.Equal(t, "n…l", MaskEmail("no-es-email"))
}

func TestMaskKey(t *testing.T) {
	require.Equal(t, "…wxyz", MaskKey("clave-secreta-wxyz"))
	require.Equal(t, "****", MaskKey("ab"))
	require.Equal(t, "****", MaskKey(""))
}
