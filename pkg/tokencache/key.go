package tokencache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix namespaces token entries in Redis.
const KeyPrefix = "ago:token:"

// Key identifies the token issued to one account for one referer.
type Key struct {
	TokenURL string
	Username string
	Referer  string

	// Secret is the account password. Only its digest is part of the Redis
	// key, so a token is returned only to a caller presenting the same
	// password that obtained it.
	Secret string
}

// String generates a deterministic Redis key.
//
// Example:
//
//	ago:token:3f1a...e9 (64 hex characters)
func (k Key) String() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimRight(k.TokenURL, "/"),
		strings.ToLower(k.Username),
		strings.TrimRight(k.Referer, "/"),
		k.Secret,
	}, "\x00")))
	return KeyPrefix + hex.EncodeToString(sum[:])
}
