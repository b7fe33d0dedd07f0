package ports

import "github.com/custodia-labs/custodia/core"

// Tokenizer converts between verified addresses and bearer credentials.
type Tokenizer interface {
	// Issue creates a self-contained credential for the address.
	Issue(address string) (string, error)

	// Resolve verifies a credential's integrity and expiry and returns the
	// session it encodes. Failures come back as core.ErrInvalidCredential or
	// core.ErrCredentialExpired, never as a panic or opaque fault.
	Resolve(credential string) (*core.Session, error)
}
