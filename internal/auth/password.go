package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the bcrypt input limit. Longer passwords are truncated.
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is outside bcrypt's accepted range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted digest of plaintext. Each call yields a different digest.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	const op = "auth.PasswordHasher.Hash"

	input := truncate(plaintext)
	if len(input) == 0 {
		return "", ErrInvalidInput
	}
	digest, err := bcrypt.GenerateFromPassword(input, h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. Malformed digests are a mismatch.
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	input := truncate(plaintext)
	if len(input) == 0 || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), input) == nil
}

// burn runs a comparison against a fixed digest so that a login for an
// unknown user costs about as much as one for a known user.
func (h *PasswordHasher) burn(plaintext string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("aquanet-timing-equalizer"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, truncate(plaintext))
}

func truncate(plaintext string) []byte {
	b := []byte(plaintext)
	if len(b) > MaxPasswordBytes {
		b = b[:MaxPasswordBytes]
	}
	return b
}
