// Package noncestore provides the challenge-nonce adapters: an in-memory
// store for single-instance deployments and tests, and a Redis store for
// multi-instance deployments.
package noncestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/ports"
)

// NonceTTL is how long an issued challenge stays acceptable.
const NonceTTL = 5 * time.Minute

// tokenBytes is the entropy of a challenge token; encoded as 16 hex chars.
const tokenBytes = 8

// MessagePrefix is the text the client must include verbatim, followed by the
// token, in the message it signs.
const MessagePrefix = "Nonce: "

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// containsToken reports whether message carries the canonical textual form of
// the token.
func containsToken(message, token string) bool {
	return strings.Contains(message, MessagePrefix+token)
}

// MemoryStore is an in-memory NonceStore. Issue overwrites any existing
// challenge for the address, so the most recent challenge is the only one
// that can pass Check.
type MemoryStore struct {
	mu     sync.Mutex
	nonces map[string]core.Nonce
	now    func() time.Time
}

// NewMemoryStore creates an in-memory nonce store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nonces: make(map[string]core.Nonce),
		now:    time.Now,
	}
}

// NewMemoryStoreAt creates an in-memory nonce store with an injected clock.
func NewMemoryStoreAt(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

var _ ports.NonceStore = (*MemoryStore)(nil)

// Issue stores a fresh challenge for the address, replacing any prior one.
func (s *MemoryStore) Issue(ctx context.Context, address string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.nonces[address] = core.Nonce{
		Address:   address,
		Token:     token,
		ExpiresAt: s.now().Add(NonceTTL),
	}
	s.mu.Unlock()

	return token, nil
}

// Check reports whether the address has a live challenge embedded in message.
// Expired entries are dropped on sight; a passing check leaves the entry in
// place for the explicit Consume step.
func (s *MemoryStore) Check(ctx context.Context, address, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[address]
	if !ok {
		return false
	}
	if nonce.Expired(s.now()) {
		delete(s.nonces, address)
		return false
	}
	return containsToken(message, nonce.Token)
}

// Consume removes the stored challenge, whatever its state.
func (s *MemoryStore) Consume(ctx context.Context, address string) error {
	s.mu.Lock()
	delete(s.nonces, address)
	s.mu.Unlock()
	return nil
}
