package model

import "time"

// Kind discriminates the two token types the service issues.
type Kind string

const (
	KindMagicLink Kind = "magic_link"
	KindSession   Kind = "session"

	// KindAny disables kind filtering on lookups. Legacy callers only;
	// the auth flows always qualify by kind.
	KindAny Kind = ""
)

// Token is the sole persisted entity. Records are replaced or deleted
// whole, never updated field by field.
type Token struct {
	ID        string
	Email     string
	Value     string
	Kind      Kind
	SubjectID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
// Callers read the clock once per request and pass the same instant to every
// check within that request.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
