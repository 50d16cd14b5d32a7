// Package publicid issues the external identifiers exposed for every entity.
// Identifiers look like RTE_7KQ2M9XA: a three letter prefix, an underscore
// and eight characters from a base32 alphabet without 0/1/I/O.
package publicid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"regexp"
)

const (
	alphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffixLength = 8
	maxAttempts  = 5
)

// Prefix names the entity kind an identifier belongs to.
type Prefix string

const (
	Route   Prefix = "RTE"
	Booking Prefix = "BKG"
	Payment Prefix = "PAY"
	Payout  Prefix = "PYO"
)

var ErrExhausted = errors.New("public id: collision retries exhausted")

var pattern = regexp.MustCompile(`^[A-Z]{3}_[A-HJ-NP-Z2-9]{8}$`)

// ExistsFunc reports whether id is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

type Allocator interface {
	Allocate(ctx context.Context, prefix Prefix, exists ExistsFunc) (string, error)
}

type allocator struct {
	rand io.Reader
}

func NewAllocator() Allocator {
	return &allocator{rand: rand.Reader}
}

// NewAllocatorWithSource is used by tests to get deterministic identifiers.
func NewAllocatorWithSource(r io.Reader) Allocator {
	return &allocator{rand: r}
}

func (a *allocator) Allocate(ctx context.Context, prefix Prefix, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := a.generate(prefix)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return id, nil
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("public id: check %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrExhausted
}

func (a *allocator) generate(prefix Prefix) (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := io.ReadFull(a.rand, buf); err != nil {
		return "", fmt.Errorf("public id: read random: %w", err)
	}
	out := make([]byte, 0, len(prefix)+1+suffixLength)
	out = append(out, prefix...)
	out = append(out, '_')
	for _, b := range buf {
		out = append(out, alphabet[int(b)%len(alphabet)])
	}
	return string(out), nil
}

// Valid reports whether s has the public identifier shape.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
