package core

import "time"

// Nonce is a single-use authentication challenge bound to a wallet address.
// At most one nonce is active per address; issuing a new one overwrites the
// previous challenge.
type Nonce struct {
	Address   string    // base58 wallet address the challenge was issued for
	Token     string    // random token the client must embed in the signed message
	ExpiresAt time.Time // when the challenge stops being acceptable
}

// Expired reports whether the nonce is no longer acceptable. The boundary is
// exclusive: a nonce checked at exactly ExpiresAt is already expired.
func (n Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Session represents an authenticated caller. It is reconstructed from the
// bearer credential on every request; there is no server-side session state
// and expiry is the only termination mechanism.
type Session struct {
	ID        string    // credential identifier
	Address   string    // authenticated wallet address (the subject)
	IssuedAt  time.Time // when the credential was issued
	ExpiresAt time.Time // when the credential stops being accepted
}

// User is the row created for an address on its first successful login.
type User struct {
	Address   string `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}
