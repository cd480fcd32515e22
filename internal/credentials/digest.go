// Package credentials converts raw login and registration credentials into a
// stable one-way representation before they reach the authentication
// comparator, so the comparator never sees or stores plaintext.
package credentials

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltPrefix = "nimbusdrive:"
	iterations = 4096
	keyLength  = 32
)

// Digest computes the one-way representation of a credential. The salt is
// derived from the lowercased identifier, so the same (identifier, plaintext)
// pair always yields the same digest.
func Digest(identifier, plaintext string) string {
	normalized := strings.ToLower(strings.TrimSpace(identifier))
	salt := sha256.Sum256([]byte(saltPrefix + normalized))
	key := pbkdf2.Key([]byte(plaintext), salt[:], iterations, keyLength, sha256.New)
	return hex.EncodeToString(key)
}

// Verify compares a stored digest against the digest of the presented
// credential in constant time.
func Verify(identifier, plaintext, storedDigest string) bool {
	computed := Digest(identifier, plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) == 1
}

// VerifyDigest compares two digests in constant time, for callers that
// already hold a normalized credential.
func VerifyDigest(presented, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
