// Package tokengen produces opaque, URL-safe random tokens.
package tokengen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultBytes is the entropy of a generated token.
const DefaultBytes = 32

type Generator interface {
	Generate() (string, error)
}

// Func adapts a function to Generator.
type Func func() (string, error)

func (f Func) Generate() (string, error) { return f() }

// Random reads n bytes from crypto/rand and encodes them as unpadded base64url.
type Random struct {
	n int
}

func New(n int) Random {
	if n <= 0 {
		n = DefaultBytes
	}
	return Random{n: n}
}

func (r Random) Generate() (string, error) {
	b := make([]byte, r.n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
