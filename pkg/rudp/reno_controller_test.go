package rudp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenoControllerSlowStartGrowsWindowEachAck(t *testing.T) {
	c := newRenoController()
	require.Equal(t, 1.0, c.cwnd)

	c.onAck(1)
	require.Equal(t, 2.0, c.cwnd)
	c.onAck(2)
	require.Equal(t, 3.0, c.cwnd)
}

func TestRenoControllerFastRetransmitOnThirdDuplicateAck(t *testing.T) {
	c := newRenoController()
	c.cwnd = 8
	c.threshold = 16
	// Pre-seed prevAck directly rather than via a leading onAck(4): that
	// first call would be a new cumulative ack, not a duplicate, and would
	// take the slow-start branch instead of starting the dup count at one.
	c.prevAck = 4
	c.havePrev = true

	_, fired := c.onAck(4) // dup 1
	require.False(t, fired)
	_, fired = c.onAck(4) // dup 2
	require.False(t, fired)
	seq, fired := c.onAck(4) // dup 3: fast retransmit
	require.True(t, fired)
	require.EqualValues(t, 4, seq)
	require.Equal(t, 4.0, c.threshold) // cwnd/2 at time of third dup == 8/2
	require.Equal(t, 7.0, c.cwnd)      // threshold + 3
}

func TestRenoControllerInflatesWindowPerAdditionalDuplicate(t *testing.T) {
	c := newRenoController()
	c.cwnd = 8
	c.threshold = 16
	c.prevAck = 4
	c.havePrev = true

	c.onAck(4) // dup 1
	c.onAck(4) // dup 2
	c.onAck(4) // dup 3: fast retransmit, cwnd -> 7

	_, fired := c.onAck(4) // dup 4: fast recovery inflation
	require.False(t, fired)
	require.Equal(t, 8.0, c.cwnd)
}

func TestRenoControllerTimeoutHalvesThresholdAndResetsWindow(t *testing.T) {
	c := newRenoController()
	c.cwnd = 20
	c.onTimeout()
	require.Equal(t, 10.0, c.threshold)
	require.Equal(t, 1.0, c.cwnd)
	require.False(t, c.havePrev)
}

func TestRenoControllerAllowsNeverDeadlocksBelowOne(t *testing.T) {
	c := newRenoController()
	c.cwnd = 0.5
	require.True(t, c.allows(0))
	require.False(t, c.allows(1))
}
