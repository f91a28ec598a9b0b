package rudp

import (
	"time"

	"github.com/pkg/errors"

	"github.com/relaynet/rudp/pkg/rudpconfig"
)

// Configure applies a loaded rudpconfig.Config over the package's built-in
// timing and window-size defaults. It is meant to be called once, before
// any Listen/Connect, typically right after rudpconfig.Load in main. An
// unconfigured process keeps running with the defaults declared alongside
// each variant's implementation.
func Configure(cfg rudpconfig.Config) error {
	retransmit, err := time.ParseDuration(cfg.RetransmitInterval)
	if err != nil {
		return errors.Wrapf(err, "retransmitInterval %q", cfg.RetransmitInterval)
	}
	ackEmit, err := time.ParseDuration(cfg.AckEmitInterval)
	if err != nil {
		return errors.Wrapf(err, "ackEmitInterval %q", cfg.AckEmitInterval)
	}

	stopWaitRetransmitInterval = retransmit
	gbnRetransmitInterval = retransmit
	srRetransmitInterval = retransmit
	gbnAckEmitInterval = ackEmit

	gbnWindowSize = cfg.GBNWindowSize
	srWindowSize = cfg.SRWindowSize
	renoInitialThreshold = cfg.RenoInitialThreshold
	return nil
}
