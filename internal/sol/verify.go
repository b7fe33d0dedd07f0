package sol

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// SignatureLength is the byte length a signature must decode to.
const SignatureLength = ed25519.SignatureSize

// VerifySignature checks that the holder of address signed message. It fails
// closed: any decode error, length mismatch, or cryptographic mismatch
// returns false, without distinguishing which check failed.
func VerifySignature(address, message, signatureB58 string) bool {
	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != SignatureLength {
		return false
	}
	pub, err := DecodePublicKey(address)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, []byte(message), sig)
}
