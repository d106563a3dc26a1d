package secret_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/secret"
)

func TestMemoryStore(t *testing.T) {
	m := secret.NewMemoryStore()

	v, err := m.Get(secret.TokenKey)
	require.NoError(t, err)
	assert.Empty(t, v)

	tok := []byte("eyJhbGciOi")
	require.NoError(t, m.Set(secret.TokenKey, tok))
	tok[0] = 'X'

	v, err = m.Get(secret.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi", string(v), "stored value is a copy")

	require.NoError(t, m.Delete(secret.TokenKey))
	v, err = m.Get(secret.TokenKey)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestTokenHelpers(t *testing.T) {
	m := secret.NewMemoryStore()

	tok, err := secret.LoadToken(m)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, secret.SaveToken(m, "eyJ.a.b"))
	tok, err = secret.LoadToken(m)
	require.NoError(t, err)
	assert.Equal(t, "eyJ.a.b", tok)

	require.NoError(t, secret.SaveToken(m, ""))
	tok, _ = secret.LoadToken(m)
	assert.Empty(t, tok)

	require.NoError(t, secret.SaveToken(m, "again"))
	require.NoError(t, secret.ClearToken(m))
	tok, _ = secret.LoadToken(m)
	assert.Empty(t, tok)
}
