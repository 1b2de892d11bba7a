package token_gen

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
)

// Fixed policy, not configuration.
const (
	magicLinkExp = 15 * time.Minute
	sessionExp   = 30 * 24 * time.Hour

	tokenLength = 64
	alphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// maxByte is the largest multiple of len(alphabet) that fits in a byte;
// bytes at or above it are rejected to keep the draw uniform.
const maxByte = 256 - 256%len(alphabet)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// Token produces a 64-character lowercase-alphanumeric secret from the
// system CSPRNG.
func (g *Generator) Token() (string, error) {
	const op = "service.token-gen.Token"

	out := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength)

	for len(out) < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}

			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == tokenLength {
				break
			}
		}
	}

	return string(out), nil
}

// Expiry returns the absolute expiry for a token of the given kind,
// relative to the caller's clock read.
func (g *Generator) Expiry(kind model.Kind, now time.Time) time.Time {
	if kind == model.KindSession {
		return now.Add(sessionExp)
	}

	return now.Add(magicLinkExp)
}
