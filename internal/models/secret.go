package models

import "time"

// Password is the access-control variant attached to a secret: either no
// password at all, or a bcrypt verifier resolved once at creation time.
// The zero value means no password is required.
type Password struct {
	Verifier []byte `json:"-"`
}

// Protected reports whether a password must be supplied to retrieve the
// secret.
func (p Password) Protected() bool {
	return len(p.Verifier) > 0
}

type Secret struct {
	ID         string    `json:"id"`
	Ciphertext []byte    `json:"-"` // AEAD output, tag included
	Nonce      []byte    `json:"-"`
	Password   Password  `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Viewed     bool      `json:"viewed"`
}

// Info is the read-only projection returned by the info endpoint. It never
// carries ciphertext or the password verifier.
type Info struct {
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	PasswordProtected bool      `json:"password_protected"`
	Viewed            bool      `json:"viewed"`
}
