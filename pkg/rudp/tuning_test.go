package rudp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaynet/rudp/pkg/rudpconfig"
)

func TestConfigureOverridesDefaults(t *testing.T) {
	defer Configure(rudpconfig.Default())

	cfg := rudpconfig.Default()
	cfg.GBNWindowSize = 7
	cfg.SRWindowSize = 5
	cfg.RenoInitialThreshold = 4
	cfg.RetransmitInterval = "10ms"
	cfg.AckEmitInterval = "5ms"

	require.NoError(t, Configure(cfg))
	require.Equal(t, 7, gbnWindowSize)
	require.Equal(t, 5, srWindowSize)
	require.Equal(t, float64(4), renoInitialThreshold)
}

func TestConfigureRejectsBadDuration(t *testing.T) {
	defer Configure(rudpconfig.Default())

	cfg := rudpconfig.Default()
	cfg.RetransmitInterval = "not-a-duration"
	require.Error(t, Configure(cfg))
}
