package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

const CodeChallengeMethodS256 = "S256"

// S256 derives the PKCE code challenge of verifier.
func S256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func verifyCodeChallenge(challenge, verifier string) bool {
	return subtle.ConstantTimeCompare([]byte(S256(verifier)), []byte(challenge)) == 1
}
