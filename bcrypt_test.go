package activation_test

import (
	"testing"

	activation "github.com/goliatone/go-activation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := activation.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret", hash)

	// same input hashes to a different value every time
	again, err := activation.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := activation.HashPassword("")
	assert.ErrorIs(t, err, activation.ErrNoEmptyString)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := activation.HashPassword("Sup3rSecret")
	require.NoError(t, err)

	assert.NoError(t, activation.ComparePasswordAndHash("Sup3rSecret", hash))
	assert.ErrorIs(t,
		activation.ComparePasswordAndHash("wrong-password", hash),
		activation.ErrMismatchedHashAndPassword,
	)
}

func TestComparePasswordAndHashMalformedHash(t *testing.T) {
	err := activation.ComparePasswordAndHash("Sup3rSecret", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, activation.ErrMismatchedHashAndPassword)
}

func TestBcryptHasherImplementsAuthenticator(t *testing.T) {
	var hasher activation.PasswordAuthenticator = activation.BcryptHasher{}

	hash, err := hasher.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NoError(t, hasher.ComparePasswordAndHash("Sup3rSecret", hash))
}
