package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticKeyStore(t *testing.T) {
	s := NewStaticKeyStore(map[string]string{"Client": "client-secret"})

	secret, ok := s.Secret("Client")
	assert.True(t, ok)
	assert.Equal(t, []byte("client-secret"), secret)

	_, ok = s.Secret("unknown")
	assert.False(t, ok)

	s.Set("C2", "c2-secret")
	secret, ok = s.Secret("C2")
	assert.True(t, ok)
	assert.Equal(t, []byte("c2-secret"), secret)

	s.Delete("C2")
	_, ok = s.Secret("C2")
	assert.False(t, ok)
}

func TestDerivedKeyStoreIsDeterministicAndDistinctPerKey(t *testing.T) {
	store := NewDerivedKeyStore([]byte("c2-master-secret"), []byte("deployment-salt"))

	a1, ok := store.Secret("node-1")
	assert.True(t, ok)
	a2, ok := store.Secret("node-1")
	assert.True(t, ok)
	assert.Equal(t, a1, a2, "same keyId must derive the same secret")

	b, ok := store.Secret("node-2")
	assert.True(t, ok)
	assert.NotEqual(t, a1, b, "different keyId must derive a different secret")
	assert.Len(t, a1, 32)
}
