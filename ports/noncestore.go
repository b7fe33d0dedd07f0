package ports

import "context"

// NonceStore issues and consumes one-time login challenges. Only the most
// recently issued nonce for an address is ever valid: Issue overwrites any
// prior unconsumed challenge, so two concurrent issues race and the last
// write wins. This is at-most-one-active-challenge-per-address, not a queue.
type NonceStore interface {
	// Issue stores a fresh challenge token for the address and returns it.
	Issue(ctx context.Context, address string) (string, error)

	// Check reports whether the address has a live challenge whose token text
	// appears in message. It has no side effects; in particular it does not
	// consume the challenge on success.
	Check(ctx context.Context, address, message string) bool

	// Consume unconditionally removes the stored challenge. Callers invoke it
	// only after both Check and the signature verification have passed, so a
	// forged login attempt cannot burn the legitimate challenge.
	Consume(ctx context.Context, address string) error
}
