package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffGrowth(t *testing.T) {
	b := NewExponentialBackoff(100*time.Millisecond, 10*time.Second, 5).WithJitter(0)

	assert.Equal(t, 100*time.Millisecond, b.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.NextDelay(2))
	assert.Equal(t, 400*time.Millisecond, b.NextDelay(3))
	assert.Equal(t, 5, b.MaxAttempts())
}

func TestExponentialBackoffCapsAtMaxDelay(t *testing.T) {
	b := NewExponentialBackoff(1*time.Second, 3*time.Second, 0).WithJitter(0)
	assert.Equal(t, 3*time.Second, b.NextDelay(10))
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	b := NewExponentialBackoff(1*time.Second, time.Minute, 0).WithJitter(0.2)
	for i := 0; i < 50; i++ {
		d := b.NextDelay(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestExponentialBackoffCustomFactor(t *testing.T) {
	b := NewExponentialBackoff(100*time.Millisecond, time.Minute, 0).WithFactor(3.0).WithJitter(0)
	assert.Equal(t, 300*time.Millisecond, b.NextDelay(2))
	assert.Equal(t, 900*time.Millisecond, b.NextDelay(3))
}

func TestExponentialBackoffInvalidAttempt(t *testing.T) {
	b := NewExponentialBackoff(100*time.Millisecond, time.Minute, 0)
	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, time.Duration(0), b.NextDelay(-1))
}

func TestConstantBackoff(t *testing.T) {
	b := NewConstantBackoff(50*time.Millisecond, 3)
	assert.Equal(t, 50*time.Millisecond, b.NextDelay(1))
	assert.Equal(t, 50*time.Millisecond, b.NextDelay(7))
	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, 3, b.MaxAttempts())
}
