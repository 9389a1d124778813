package auth

import "time"

// Credential is an opaque bearer token plus its expiry instant. It lives
// only in process memory and is owned by the Provider that minted it.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// ExpiresWithin reports whether the credential is empty, already expired,
// or will expire inside the given safety margin.
func (c Credential) ExpiresWithin(margin time.Duration) bool {
	if c.Value == "" {
		return true
	}
	return !time.Now().Add(margin).Before(c.ExpiresAt)
}
