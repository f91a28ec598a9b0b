// Command rudp sends or receives a single file over one of the reliable
// UDP transfer variants implemented in pkg/rudp.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dcontext"
	"github.com/datawire/dlib/dlog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/relaynet/rudp/pkg/rudp"
	"github.com/relaynet/rudp/pkg/rudpconfig"
)

func main() {
	ctx := dcontext.WithSoftness(dcontext.HardContext(context.Background()))
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		dlog.Errorf(ctx, "%v", err)
		os.Exit(1)
	}
}

// loadAndConfigure reads the --config file, if any, and applies it to
// pkg/rudp's tunables before the command's transfer begins.
func loadAndConfigure(cmd *cobra.Command) (rudpconfig.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := rudpconfig.Load(afero.NewOsFs(), path)
	if err != nil {
		return cfg, err
	}
	if err := rudp.Configure(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rudp",
		Short:         "Send or receive a file reliably over UDP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("variant", "gbn", "transfer algorithm: stopwait, gbn, sr, or reno")
	root.PersistentFlags().String("config", "", "optional YAML config file")
	root.PersistentFlags().String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")

	root.AddCommand(newListenCmd())
	root.AddCommand(newConnectCmd())
	return root
}

func variantFlag(cmd *cobra.Command) (string, error) {
	return cmd.Flags().GetString("variant")
}

var errBadVariant = fmt.Errorf("variant must be one of: stopwait, gbn, sr, reno")
