// Package rudpconfig loads the tunable knobs of the reliability core from
// an optional YAML file, with CLI flags taking precedence — the same
// layering the teacher applies to its own runtime configuration.
package rudpconfig

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config holds every value a deployment might reasonably want to retune
// without a rebuild. The zero value is not valid; use Default().
type Config struct {
	// RetransmitInterval is how long stop-and-wait, GBN, and RENO wait
	// for an ack before resending the outstanding window, and how often
	// selective repeat resends each unacked slice.
	RetransmitInterval string `yaml:"retransmitInterval"`
	// GBNWindowSize is the fixed number of slices GBN keeps in flight.
	GBNWindowSize int `yaml:"gbnWindowSize"`
	// SRWindowSize is the fixed number of slices selective repeat keeps
	// in flight.
	SRWindowSize int `yaml:"srWindowSize"`
	// RenoInitialThreshold is the slow-start threshold a new RENO
	// transfer begins with.
	RenoInitialThreshold float64 `yaml:"renoInitialThreshold"`
	// AckEmitInterval is how often GBN's receiver announces its
	// cumulative ack, for the whole transfer, busy or idle.
	AckEmitInterval string `yaml:"ackEmitInterval"`
	// MetricsAddr, if non-empty, is the address the CLI serves
	// Prometheus metrics on.
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns the built-in configuration, matching the constants
// fixed by the protocol's own design (pkg/rudp's gbnWindowSize,
// srWindowSize, renoInitialThreshold, and retransmit/ack intervals).
func Default() Config {
	return Config{
		RetransmitInterval:   "50ms",
		GBNWindowSize:        3,
		SRWindowSize:         3,
		RenoInitialThreshold: 16,
		AckEmitInterval:      "10ms",
	}
}

// Load reads a YAML config file via fs, merging it over Default(). A
// missing file is not an error — the defaults stand on their own.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}
