package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// El cliente no conecta hasta el primer comando, así que la composición
// de claves se testea sin un server.
func TestKeyPrefix(t *testing.T) {
	c := New("localhost:6379", 0, "multipass")
	require.Equal(t, "multipass:fed:nonce:abc", c.key("fed:nonce:abc"))

	bare := New("localhost:6379", 0, "")
	require.Equal(t, "fed:nonce:abc", bare.key("fed:nonce:abc"))
}
