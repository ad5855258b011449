package hostio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAdaptivePollAppliesDefaults(t *testing.T) {
	r := require.New(t)
	p := NewAdaptivePoll(0, 0)
	r.Equal(DefaultFastPoll, p.Fast)
	r.Equal(DefaultFastPoll, p.Cur)
	r.Equal(DefaultFastPoll, p.Steady)

	p = NewAdaptivePoll(5*time.Millisecond, 2*time.Millisecond)
	r.Equal(5*time.Millisecond, p.Steady)
}

func TestAdaptivePollBacksOffThenCapsAtSteady(t *testing.T) {
	r := require.New(t)
	p := NewAdaptivePoll(1*time.Millisecond, 4*time.Millisecond)

	r.Equal(1*time.Millisecond, p.Cur)
	p.Sleep()
	r.Equal(2*time.Millisecond, p.Cur)
	p.Sleep()
	r.Equal(4*time.Millisecond, p.Cur)
	p.Sleep()
	r.Equal(4*time.Millisecond, p.Cur) // capped at Steady
}

func TestAdaptivePollResetSkipsNextSleep(t *testing.T) {
	r := require.New(t)
	p := NewAdaptivePoll(1*time.Millisecond, 8*time.Millisecond)
	p.Sleep()
	p.Sleep()
	r.Equal(4*time.Millisecond, p.Cur)

	p.Reset()
	r.Equal(1*time.Millisecond, p.Cur)

	start := time.Now()
	p.Sleep() // skipped: Reset set the skip flag
	r.Less(time.Since(start), 1*time.Millisecond)
	r.Equal(1*time.Millisecond, p.Cur)

	// The following Sleep is a real one again.
	p.Sleep()
	r.Equal(2*time.Millisecond, p.Cur)
}
