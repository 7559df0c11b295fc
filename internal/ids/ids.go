// Package ids produces the short, unpredictable identifiers that secrets are
// addressed by.
package ids

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// Length is the number of characters in a generated identifier. Eight
	// characters over a 62-symbol alphabet give ~47 bits of entropy, enough
	// that guessing a live id is infeasible.
	Length = 8

	alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxAttempts = 5
)

// ErrExhausted is returned when every generation attempt collided with an
// existing id. With 62^8 possible ids this should never happen in practice,
// but the condition is handled rather than ignored.
var ErrExhausted = errors.New("id generation attempts exhausted")

// Checker reports whether an id is already taken.
type Checker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Generator struct {
	checker Checker
}

func NewGenerator(c Checker) *Generator {
	return &Generator{checker: c}
}

// Generate returns a fresh identifier that did not exist in the store at the
// time of the check. The store still enforces uniqueness on insert.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		id, err := random(Length)
		if err != nil {
			return "", err
		}
		taken, err := g.checker.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("checking id collision: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrExhausted
}

// random draws n characters from the alphabet using rejection sampling so
// every character is uniformly likely.
func random(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		for _, b := range buf {
			// 248 is the largest multiple of 62 below 256; anything above
			// would bias the low characters.
			if b >= 248 {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
