package service

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/custodia/adapters/noncestore"
	"github.com/custodia-labs/custodia/adapters/store"
	"github.com/custodia-labs/custodia/adapters/tokenizer"
	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	tk, err := tokenizer.NewJWTTokenizer([]byte("test-secret"))
	require.NoError(t, err)
	users := store.NewUsers(newTestDB(t))
	return NewAuthService(noncestore.NewMemoryStore(), tk, users, testLogger())
}

func signChallenge(t *testing.T, kp sol.Keypair, nonce string) (message, signature string) {
	t.Helper()
	message = "Sign in to Custodia\n\n" + noncestore.MessagePrefix + nonce
	sig := ed25519.Sign(kp.Secret, []byte(message))
	return message, base58.Encode(sig)
}

func TestLoginFlow(t *testing.T) {
	auth := newAuthFixture(t)
	ctx := context.Background()

	kp, err := sol.GenerateKeypair()
	require.NoError(t, err)

	nonce, err := auth.Nonce(ctx, kp.Address)
	require.NoError(t, err)
	message, signature := signChallenge(t, kp, nonce)

	credential, err := auth.Login(ctx, kp.Address, message, signature)
	require.NoError(t, err)

	session, err := auth.Resolve(credential)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, session.Address)
}

func TestLoginWithoutNonce(t *testing.T) {
	auth := newAuthFixture(t)

	kp, err := sol.GenerateKeypair()
	require.NoError(t, err)
	message, signature := signChallenge(t, kp, "deadbeefdeadbeef")

	_, err = auth.Login(context.Background(), kp.Address, message, signature)
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestLoginBadSignatureLeavesNonceUsable(t *testing.T) {
	auth := newAuthFixture(t)
	ctx := context.Background()

	kp, err := sol.GenerateKeypair()
	require.NoError(t, err)
	other, err := sol.GenerateKeypair()
	require.NoError(t, err)

	nonce, err := auth.Nonce(ctx, kp.Address)
	require.NoError(t, err)

	// Signed with the wrong key: rejected, and the challenge survives.
	message, wrongSig := signChallenge(t, other, nonce)
	_, err = auth.Login(ctx, kp.Address, message, wrongSig)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	message, signature := signChallenge(t, kp, nonce)
	_, err = auth.Login(ctx, kp.Address, message, signature)
	assert.NoError(t, err)
}

func TestLoginConsumesNonce(t *testing.T) {
	auth := newAuthFixture(t)
	ctx := context.Background()

	kp, err := sol.GenerateKeypair()
	require.NoError(t, err)

	nonce, err := auth.Nonce(ctx, kp.Address)
	require.NoError(t, err)
	message, signature := signChallenge(t, kp, nonce)

	_, err = auth.Login(ctx, kp.Address, message, signature)
	require.NoError(t, err)

	// Replaying the exact same triple must fail: the nonce is single-use.
	_, err = auth.Login(ctx, kp.Address, message, signature)
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}
