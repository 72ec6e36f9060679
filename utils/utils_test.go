package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code1, err := GenerateCode(4)
	require.NoError(t, err)
	code2, err := GenerateCode(4)
	require.NoError(t, err)

	assert.Len(t, code1, 8) // 4 bytes become 8 hex chars
	assert.NotEqual(t, code1, code2)
	assert.Regexp(t, "^[0-9A-F]+$", code1)
}

func TestCircuitBreaker_StaysClosedUnderFailuresBelowWindow(t *testing.T) {
	cb := NewCircuitBreaker("test")

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Allow())
		cb.Failure()
	}

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_TripsOpenOnFailureRatio(t *testing.T) {
	cb := NewCircuitBreaker("test")

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Allow())
		cb.Failure()
	}

	assert.Equal(t, BreakerOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.cooldown = 0

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Allow())
		cb.Failure()
	}
	require.Equal(t, BreakerOpen, cb.State())

	// cooldown elapsed, the next call probes half-open
	require.NoError(t, cb.Allow())
	assert.Equal(t, BreakerHalfOpen, cb.State())

	cb.Success()
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.cooldown = 0

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Allow())
		cb.Failure()
	}

	require.NoError(t, cb.Allow())
	cb.Failure()

	assert.Equal(t, BreakerOpen, cb.State())
}
