package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func TestRealClock(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(now.Add(-time.Second)), time.Second)

	tk := c.NewTicker(5 * time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClockAdvanceAndSet(t *testing.T) {
	c := NewMockClock(epoch)
	require.True(t, c.Now().Equal(epoch))

	c.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Since(epoch))

	c.Set(epoch.Add(time.Hour))
	assert.Equal(t, time.Hour, c.Since(epoch))
}

func fired(tk Ticker) bool {
	select {
	case <-tk.C():
		return true
	default:
		return false
	}
}

func TestMockTicker(t *testing.T) {
	c := NewMockClock(epoch)
	tk := c.NewTicker(time.Minute)

	c.Advance(30 * time.Second)
	assert.False(t, fired(tk), "fired early")

	c.Advance(30 * time.Second)
	assert.True(t, fired(tk), "did not fire at interval")

	// A jump of several intervals delivers a single tick.
	c.Advance(5 * time.Minute)
	assert.True(t, fired(tk))
	assert.False(t, fired(tk))

	c.Set(epoch)
	assert.False(t, fired(tk), "moving backwards fired")

	tk.Stop()
	c.Set(epoch.Add(time.Hour))
	assert.False(t, fired(tk), "stopped ticker fired")
}

func TestMockTickerRejectsZeroInterval(t *testing.T) {
	assert.Panics(t, func() { NewMockClock(epoch).NewTicker(0) })
}
