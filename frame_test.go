package zenoh

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	r := require.New(t)
	rng := rand.New(rand.NewPCG(300, 1))
	buf := make([]byte, 64)
	for i := 0; i < roundTripIterations; i++ {
		res := randResolution(rng)
		want := FrameHeader{
			Reliability: Reliability(rng.IntN(2)),
			QoS: QoS{
				Priority:   Priority(rng.IntN(8)),
				Congestion: CongestionControl(rng.IntN(2)),
				Express:    rng.IntN(2) == 0,
			},
			SN: rng.Uint64() & fieldMask(res.Get(FieldFrameSN)),
		}
		n, err := encodeFrameHeader(buf, want, res)
		r.NoError(err)
		got, consumed, err := decodeFrameHeader(buf[:n], res)
		r.NoError(err)
		r.Equal(n, consumed)
		r.Equal(want, got)
	}
}

func TestFrameHeaderDefaultQoSOmitsExtension(t *testing.T) {
	r := require.New(t)
	buf := make([]byte, 32)
	fh := FrameHeader{Reliability: ReliabilityReliable, QoS: DefaultQoS(), SN: 5}
	n, err := encodeFrameHeader(buf, fh, DefaultResolution())
	r.NoError(err)
	r.Equal(buf[0]&flagExtensions, byte(0))

	got, _, err := decodeFrameHeader(buf[:n], DefaultResolution())
	r.NoError(err)
	r.Equal(fh, got)
}

func TestSequenceAcceptable(t *testing.T) {
	require.True(t, sequenceAcceptable(5, 0))
	require.True(t, sequenceAcceptable(5, 6))
	require.False(t, sequenceAcceptable(5, 5))
	require.False(t, sequenceAcceptable(5, 4))
}
