package token

import "errors"

var (
	// ErrKeysNotInitialized is the panic value of signing before KeyManager.Init succeeded.
	ErrKeysNotInitialized = errors.New("signing keys not initialized")

	// ErrKeyMaterial indicates PEM material that could not be used as an RSA signing key
	ErrKeyMaterial = errors.New("invalid key material")

	// ErrKeyPairMismatch indicates public.pem does not belong to private.pem
	ErrKeyPairMismatch = errors.New("public key does not match private key")

	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("failed to generate token")
)
