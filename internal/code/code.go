// Package code generates record identifiers and the fixed-width numeric
// secure codes stamped onto serialized product units.
package code

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// SecureCodeLength is the fixed width of a unit's secure code.
const SecureCodeLength = 9

// maxAttempts bounds the retry-until-unique loop. With a 9-digit space the
// bound is only ever hit when the space is effectively full, which is a
// deployment problem, not a transient one.
const maxAttempts = 25

var ErrSpaceExhausted = errors.New("secure code space exhausted")

var secureCodeMax = big.NewInt(1_000_000_000)

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// SecureCode returns a random 9-digit numeric string, zero-padded.
func SecureCode() (string, error) {
	n, err := rand.Int(rand.Reader, secureCodeMax)
	if err != nil {
		return "", fmt.Errorf("secure code: %w", err)
	}
	return fmt.Sprintf("%0*d", SecureCodeLength, n), nil
}

// UniqueSecureCode generates candidate codes until exists reports a miss,
// up to the attempt bound. Collisions are expected at scale given the fixed
// width, so the retry is required, not defensive.
func UniqueSecureCode(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := SecureCode()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrSpaceExhausted
}
