package tokenizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/custodia/core"
)

const testAddress = "4Nd1mYvM6kBbzVjZknJrSJTVYkhMTsKqWnNsEYYqYrmJ"

func TestIssueAndResolve(t *testing.T) {
	tk, err := NewJWTTokenizer([]byte("test-secret"))
	require.NoError(t, err)

	credential, err := tk.Issue(testAddress)
	require.NoError(t, err)

	session, err := tk.Resolve(credential)
	require.NoError(t, err)
	assert.Equal(t, testAddress, session.Address)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, SessionTTL, session.ExpiresAt.Sub(session.IssuedAt))
}

func TestResolveExpiryBoundary(t *testing.T) {
	issued := time.Now()
	clock := issued
	tk, err := NewJWTTokenizerAt([]byte("test-secret"), func() time.Time { return clock })
	require.NoError(t, err)

	credential, err := tk.Issue(testAddress)
	require.NoError(t, err)

	clock = issued.Add(SessionTTL - time.Second)
	_, err = tk.Resolve(credential)
	assert.NoError(t, err)

	clock = issued.Add(SessionTTL + time.Second)
	_, err = tk.Resolve(credential)
	assert.ErrorIs(t, err, core.ErrCredentialExpired)
}

func TestResolveRejectsForeignSecret(t *testing.T) {
	issuer, err := NewJWTTokenizer([]byte("secret-a"))
	require.NoError(t, err)
	verifier, err := NewJWTTokenizer([]byte("secret-b"))
	require.NoError(t, err)

	credential, err := issuer.Issue(testAddress)
	require.NoError(t, err)

	_, err = verifier.Resolve(credential)
	assert.ErrorIs(t, err, core.ErrInvalidCredential)
}

func TestResolveRejectsGarbage(t *testing.T) {
	tk, err := NewJWTTokenizer(nil)
	require.NoError(t, err)

	for _, credential := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := tk.Resolve(credential)
		assert.ErrorIs(t, err, core.ErrInvalidCredential)
	}
}

func TestRandomSecretsDoNotCrossValidate(t *testing.T) {
	a, err := NewJWTTokenizer(nil)
	require.NoError(t, err)
	b, err := NewJWTTokenizer(nil)
	require.NoError(t, err)

	credential, err := a.Issue(testAddress)
	require.NoError(t, err)

	_, err = a.Resolve(credential)
	assert.NoError(t, err)
	_, err = b.Resolve(credential)
	assert.Error(t, err)
}
