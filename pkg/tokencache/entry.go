package tokencache

import (
	"time"
)

// Entry represents a cached access token.
type Entry struct {
	// Token is the opaque bearer string.
	Token string `json:"token"`

	// Expires is when AGO stops accepting the token.
	Expires time.Time `json:"expires"`

	// SSL reports whether the token must only be sent over https.
	SSL bool `json:"ssl"`

	// CachedAt is when we cached this token.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired reports whether the token is unusable margin from now.
func (e *Entry) IsExpired(margin time.Duration) bool {
	return !time.Now().Add(margin).Before(e.Expires)
}

// TTL returns how long the entry may stay cached, ending margin before
// expiry. Returns 0 if that point has passed.
func (e *Entry) TTL(margin time.Duration) time.Duration {
	ttl := time.Until(e.Expires) - margin
	if ttl < 0 {
		return 0
	}
	return ttl
}
