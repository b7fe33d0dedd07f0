// Package tokenizer implements the session credential as an HMAC-signed JWT.
package tokenizer

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/ports"
)

// SessionTTL is the credential lifetime. There is no revocation list; expiry
// is the only termination mechanism, and rotating the signing secret
// invalidates every outstanding credential at once.
const SessionTTL = 24 * time.Hour

// AudienceSession tags credentials issued by this service.
const AudienceSession = "custodia:session"

// SessionClaims are the claims carried by a session credential.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// JWTTokenizer signs and verifies session credentials with a process-wide
// HMAC secret.
type JWTTokenizer struct {
	secret []byte
	now    func() time.Time
}

// NewJWTTokenizer creates a tokenizer around the given secret. When secret is
// empty a random one is generated, which is the intended lifecycle for
// single-instance deployments: credentials then live at most as long as the
// process.
func NewJWTTokenizer(secret []byte) (*JWTTokenizer, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
	}
	return &JWTTokenizer{secret: secret, now: time.Now}, nil
}

// NewJWTTokenizerAt creates a tokenizer with an injected clock.
func NewJWTTokenizerAt(secret []byte, now func() time.Time) (*JWTTokenizer, error) {
	t, err := NewJWTTokenizer(secret)
	if err != nil {
		return nil, err
	}
	t.now = now
	return t, nil
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// Issue creates a credential binding the address as subject with a fixed TTL.
func (t *JWTTokenizer) Issue(address string) (string, error) {
	now := t.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Resolve verifies integrity and expiry and returns the encoded session.
// Every failure is classified as unauthenticated: expired credentials map to
// core.ErrCredentialExpired, everything else to core.ErrInvalidCredential.
func (t *JWTTokenizer) Resolve(credential string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(credential, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithAudience(AudienceSession), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrCredentialExpired
		}
		return nil, core.ErrInvalidCredential
	}
	if !token.Valid {
		return nil, core.ErrInvalidCredential
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, core.ErrInvalidCredential
	}

	return &core.Session{
		ID:        claims.ID,
		Address:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
