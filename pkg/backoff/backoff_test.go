package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestFixed_ConstantDelay tests that the delay never varies with the
// attempt number.
func TestFixed_ConstantDelay(t *testing.T) {
	p := NewFixed(2 * time.Second)

	assert.Equal(t, 2*time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(100))
}

// TestExponential_DoublesAndCaps tests doubling per attempt up to the
// maximum.
func TestExponential_DoublesAndCaps(t *testing.T) {
	p := NewExponential(time.Second, 10*time.Second, false)

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 10*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(50))
}

// TestExponential_NegativeAttempt tests that nonsense attempts behave like
// the first.
func TestExponential_NegativeAttempt(t *testing.T) {
	p := NewExponential(time.Second, 10*time.Second, false)
	assert.Equal(t, time.Second, p.Delay(-3))
}

// TestExponential_JitterStaysInBounds tests the jitter spread around the
// undithered delay.
func TestExponential_JitterStaysInBounds(t *testing.T) {
	p := NewExponential(time.Second, time.Minute, true)

	for i := 0; i < 100; i++ {
		d := p.Delay(2) // undithered value is 4s
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}
