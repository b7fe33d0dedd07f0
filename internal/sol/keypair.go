package sol

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/mr-tron/base58"
)

// SecretKeyLength is the byte length of a full ed25519 private key
// (seed followed by public key), the format solana-keygen emits.
const SecretKeyLength = ed25519.PrivateKeySize

var errBadSecret = errors.New("secret key must be 64 bytes with a matching public key")

// Keypair is a custodial ed25519 keypair. The address is the base58 encoding
// of the public key.
type Keypair struct {
	Address string
	Secret  ed25519.PrivateKey
}

// GenerateKeypair creates a fresh random keypair.
func GenerateKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Address: base58.Encode(pub), Secret: priv}, nil
}

// KeypairFromSecret rebuilds a keypair from a raw 64-byte secret key,
// verifying that the embedded public key matches the seed.
func KeypairFromSecret(secret []byte) (Keypair, error) {
	if len(secret) != SecretKeyLength {
		return Keypair{}, errBadSecret
	}
	priv := ed25519.PrivateKey(secret)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return Keypair{}, errBadSecret
	}
	derived := ed25519.NewKeyFromSeed(priv.Seed())
	if !derived.Equal(priv) {
		return Keypair{}, errBadSecret
	}
	return Keypair{Address: base58.Encode(pub), Secret: priv}, nil
}

// KeypairFromSecretBase58 rebuilds a keypair from a base58-encoded secret key.
func KeypairFromSecretBase58(s string) (Keypair, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Keypair{}, errBadSecret
	}
	return KeypairFromSecret(raw)
}

// SecretBase58 returns the base58 encoding of the full 64-byte secret key.
func (k Keypair) SecretBase58() string {
	return base58.Encode(k.Secret)
}

// SecretBytes returns the secret key as a plain byte slice, the array form
// used by keygen tooling export files.
func (k Keypair) SecretBytes() []byte {
	out := make([]byte, len(k.Secret))
	copy(out, k.Secret)
	return out
}
