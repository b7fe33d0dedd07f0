// Package sol holds the chain-specific primitives: address and signature
// encoding, keypair handling, amount conversion, and the unsigned transfer
// instruction handed back to clients for off-system signing.
package sol

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/custodia-labs/custodia/core"
)

// AddressLength is the byte length an address must decode to.
const AddressLength = ed25519.PublicKeySize

// ValidAddress reports whether s is structurally a valid address: base58 text
// decoding to exactly 32 bytes. It says nothing about the address being
// funded or ever used on chain.
func ValidAddress(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == AddressLength
}

// DecodePublicKey decodes a base58 address into its ed25519 public key.
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != AddressLength {
		return nil, core.ErrInvalidAddress
	}
	return ed25519.PublicKey(raw), nil
}
