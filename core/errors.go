package core

import "errors"

var (
	// ErrNonceInvalid covers every challenge failure: missing, expired, or the
	// token text not appearing in the signed message. Callers must not be able
	// to tell which case applied.
	ErrNonceInvalid = errors.New("nonce expired or not requested")

	// ErrInvalidSignature covers every signature failure: malformed encoding,
	// wrong length, or a cryptographic mismatch.
	ErrInvalidSignature = errors.New("signature invalid")

	ErrCredentialExpired = errors.New("credential has expired")
	ErrInvalidCredential = errors.New("invalid credential")

	ErrInvalidAddress = errors.New("invalid address")

	ErrWalletNotFound = errors.New("wallet not found")
	ErrRecordNotFound = errors.New("transfer record not found")
	ErrBatchNotFound  = errors.New("batch task not found")
	ErrJobNotFound    = errors.New("job not found")
)
