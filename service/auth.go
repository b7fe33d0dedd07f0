package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/ports"
)

// AuthService runs the challenge-response login protocol: issue a nonce,
// verify the signed message, consume the nonce, hand out a bearer credential.
type AuthService struct {
	nonces    ports.NonceStore
	tokenizer ports.Tokenizer
	users     ports.UserStore
	log       zerolog.Logger
}

// NewAuthService creates the authentication service.
func NewAuthService(nonces ports.NonceStore, tokenizer ports.Tokenizer, users ports.UserStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		nonces:    nonces,
		tokenizer: tokenizer,
		users:     users,
		log:       log,
	}
}

// Nonce issues a fresh challenge for the address, replacing any prior one.
func (s *AuthService) Nonce(ctx context.Context, address string) (string, error) {
	token, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}
	return token, nil
}

// Login verifies the signed challenge and returns a session credential.
//
// The nonce is consumed only after both the challenge check and the
// cryptographic verification pass. A failed signature therefore leaves the
// challenge alive, so the legitimate holder can retry within the TTL, while
// the two observable failures stay deliberately coarse: challenge problems
// all surface as ErrNonceInvalid, signature problems all as
// ErrInvalidSignature.
func (s *AuthService) Login(ctx context.Context, address, message, signature string) (string, error) {
	if !s.nonces.Check(ctx, address, message) {
		return "", core.ErrNonceInvalid
	}

	if !sol.VerifySignature(address, message, signature) {
		return "", core.ErrInvalidSignature
	}

	if err := s.nonces.Consume(ctx, address); err != nil {
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}

	if err := s.users.Upsert(ctx, address); err != nil {
		return "", fmt.Errorf("failed to upsert user: %w", err)
	}

	credential, err := s.tokenizer.Issue(address)
	if err != nil {
		return "", fmt.Errorf("failed to issue credential: %w", err)
	}

	s.log.Info().Str("address", address).Msg("login succeeded")
	return credential, nil
}

// Resolve verifies a bearer credential and returns the session it encodes.
func (s *AuthService) Resolve(credential string) (*core.Session, error) {
	return s.tokenizer.Resolve(credential)
}
