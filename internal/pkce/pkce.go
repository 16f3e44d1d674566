// Package pkce implements the S256 method of Proof Key for Code Exchange (RFC 7636).
package pkce

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// MethodS256 is the only supported code_challenge_method.
const MethodS256 = "S256"

const (
	minChallengeLen = 43
	maxChallengeLen = 128
)

// GenerateChallenge returns base64url(SHA-256(verifier)) without padding.
func GenerateChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// VerifyChallenge reports whether verifier hashes to challenge. Empty
// inputs never verify.
func VerifyChallenge(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	computed := GenerateChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// ValidChallengeFormat reports whether challenge is 43 to 128 characters
// of the base64url alphabet.
func ValidChallengeFormat(challenge string) bool {
	if len(challenge) < minChallengeLen || len(challenge) > maxChallengeLen {
		return false
	}
	for i := 0; i < len(challenge); i++ {
		c := challenge[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
