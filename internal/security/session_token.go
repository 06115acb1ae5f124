package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionToken returns a fresh opaque session id (random UUIDv4). The raw
// value is handed to the client and never persisted.
func NewSessionToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// HashSessionToken returns the hex SHA-256 of a session token. Stores key
// sessions by this digest.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionTokenMatches reports in constant time whether token hashes to storedHash.
func SessionTokenMatches(token, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSessionToken(token)), []byte(storedHash)) == 1
}
