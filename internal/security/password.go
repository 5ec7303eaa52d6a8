package security

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher wraps bcrypt with a fixed work factor. The cost is chosen
// once at startup; verification latency in the tens of milliseconds is the
// point, not an accident.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher builds a hasher with the given bcrypt cost, clamped to
// the algorithm's supported range. A dummy hash is precomputed at the same
// cost so verification against a missing user burns the same work as a real
// comparison.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equalization-filler"), cost)
	if err != nil {
		// GenerateFromPassword only fails on an out-of-range cost, which the
		// clamp above rules out.
		panic(err)
	}
	return &PasswordHasher{cost: cost, dummy: dummy}
}

// Hash returns the bcrypt hash of the plaintext. Two hashes of the same
// password differ in representation but both verify.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares a plaintext against a stored hash.
func (h *PasswordHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// DummyVerify performs a comparison against the fixed dummy hash and always
// fails. Called on the unknown-email login path so "user not found" and
// "wrong password" are indistinguishable in timing.
func (h *PasswordHasher) DummyVerify(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
