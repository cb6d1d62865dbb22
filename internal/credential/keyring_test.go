package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVaultRoundTrip(t *testing.T) {
	v := NewMemoryVault()

	_, err := v.Get("todo_token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, v.Set("todo_token", "abc"))
	got, err := v.Get("todo_token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.NoError(t, v.Set("todo_token", "def"))
	got, err = v.Get("todo_token")
	require.NoError(t, err)
	assert.Equal(t, "def", got)
}

func TestMemoryVaultDeleteIsIdempotent(t *testing.T) {
	v := NewMemoryVault()
	require.NoError(t, v.Set("todo_token", "abc"))

	require.NoError(t, v.Delete("todo_token"))
	require.NoError(t, v.Delete("todo_token"))

	_, err := v.Get("todo_token")
	assert.ErrorIs(t, err, ErrNotFound)
}
