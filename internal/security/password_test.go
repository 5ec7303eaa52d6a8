package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, h.Verify("hunter22", hash))
	assert.False(t, h.Verify("hunter23", hash))
}

func TestHashesAreSalted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	a, err := h.Hash("same password")
	require.NoError(t, err)
	b, err := h.Hash("same password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDummyVerifyDoesNotPanic(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	// Burns comparable work to a real comparison but never authenticates.
	h.DummyVerify("anything")
	h.DummyVerify("")
}

func TestCostClampedToValidRange(t *testing.T) {
	h := NewPasswordHasher(99)

	hash, err := h.Hash("hunter22")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
