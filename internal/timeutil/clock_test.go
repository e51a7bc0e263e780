package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClockAfterFunc(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewMockClock(start)
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4999 * time.Millisecond)
	assert.Equal(t, 0, fired)
	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)
	c.Advance(time.Minute)
	assert.Equal(t, 1, fired, "timer must fire once")
	assert.Equal(t, 5*time.Second+time.Minute, c.Since(start))
}

func TestMockClockStop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	tm := c.AfterFunc(time.Second, func() { t.Fatal("stopped timer fired") })
	require.True(t, tm.Stop())
	require.False(t, tm.Stop())
	c.Advance(2 * time.Second)
}

func TestMockClockAfterAndTicker(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ch := c.After(time.Second)
	tk := c.NewTicker(100 * time.Millisecond)
	defer tk.Stop()

	c.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After channel not delivered")
	}
	select {
	case <-tk.C():
	default:
		t.Fatal("ticker not delivered")
	}
	c.Sleep(3 * time.Millisecond)
	assert.Equal(t, []time.Duration{3 * time.Millisecond}, c.Sleeps())
}
