package noncestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(token string) string {
	return "Sign in to Custodia\n\nNonce: " + token
}

func TestIssueLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.Issue(ctx, "addr")
	require.NoError(t, err)
	second, err := s.Issue(ctx, "addr")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.True(t, s.Check(ctx, "addr", message(second)))
	assert.False(t, s.Check(ctx, "addr", message(first)))
}

func TestCheckRequiresCanonicalForm(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	token, err := s.Issue(ctx, "addr")
	require.NoError(t, err)

	assert.True(t, s.Check(ctx, "addr", "prefix Nonce: "+token+" suffix"))
	assert.False(t, s.Check(ctx, "addr", token), "bare token without prefix must not pass")
	assert.False(t, s.Check(ctx, "addr", "Nonce: "+token[:len(token)-1]))
	assert.False(t, s.Check(ctx, "other", message(token)))
}

func TestCheckExpiryBoundary(t *testing.T) {
	now := time.Now()
	clock := now
	s := NewMemoryStoreAt(func() time.Time { return clock })
	ctx := context.Background()

	token, err := s.Issue(ctx, "addr")
	require.NoError(t, err)

	clock = now.Add(NonceTTL - time.Second)
	assert.True(t, s.Check(ctx, "addr", message(token)))

	// Exactly at expiry the challenge is already dead.
	clock = now.Add(NonceTTL)
	assert.False(t, s.Check(ctx, "addr", message(token)))

	// And it stays dead: the expired entry was dropped.
	clock = now
	assert.False(t, s.Check(ctx, "addr", message(token)))
}

func TestFailedAttemptLeavesChallengeUsable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	token, err := s.Issue(ctx, "addr")
	require.NoError(t, err)

	// A failed signature check never reaches Consume, so a later correct
	// attempt with the same challenge still passes.
	assert.False(t, s.Check(ctx, "addr", "wrong message"))
	assert.True(t, s.Check(ctx, "addr", message(token)))

	require.NoError(t, s.Consume(ctx, "addr"))
	assert.False(t, s.Check(ctx, "addr", message(token)))
}

func TestConsumeUnknownAddress(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Consume(context.Background(), "never-issued"))
}
