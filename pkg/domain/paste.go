package domain

import (
	"time"
)

// Paste is the sole persisted entity. TokenHash is the BLAKE2b digest of the
// deletion capability token; the token itself is returned to the creator once
// and is never stored or logged.
type Paste struct {
	ID        string     `json:"id"`
	TokenHash []byte     `json:"-"`
	Owner     string     `json:"owner,omitempty"`
	Title     string     `json:"title,omitempty"`
	Content   string     `json:"content"`
	Language  string     `json:"language"`
	Keeping   string     `json:"keeping"`
	Burn      bool       `json:"burnAfterReading"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"` // nil iff Burn
}

// Expired reports whether time-based retention has lapsed. Burn pastes never
// time-expire; their lifetime ends at first read.
func (p *Paste) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

type CreateParams struct {
	Owner    string
	Title    string
	Content  string
	Language string
	Keeping  string
}
