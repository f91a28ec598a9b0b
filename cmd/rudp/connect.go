package main

import (
	"context"
	"time"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/relaynet/rudp/internal/payloadio"
	"github.com/relaynet/rudp/pkg/rudp"
)

func newConnectCmd() *cobra.Command {
	var host string
	var port int
	var in string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Send a file to a listening peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			variantName, err := variantFlag(cmd)
			if err != nil {
				return err
			}
			variant, err := parseVariant(variantName)
			if err != nil {
				return err
			}
			cfg, err := loadAndConfigure(cmd)
			if err != nil {
				return err
			}
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}

			ctx := cmd.Context()
			g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
				EnableSignalHandling: true,
				ShutdownOnNonError:   true,
				SoftShutdownTimeout:  5 * time.Second,
			})
			if err := serveMetrics(ctx, g, metricsAddr); err != nil {
				return err
			}

			g.Go("connect", func(ctx context.Context) error {
				fs := afero.NewOsFs()
				buf, err := payloadio.ReadPayload(fs, in)
				if err != nil {
					return err
				}

				ch, err := rudp.Connect(ctx, host, port, variant)
				if err != nil {
					return errors.Wrap(err, "connect")
				}
				defer ch.Close()

				if !ch.SendAll(ctx, buf) {
					return errors.New("transfer failed")
				}
				dlog.Infof(ctx, "sent %d bytes", len(buf))
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "remote host to send to")
	cmd.Flags().IntVar(&port, "port", 9000, "remote UDP port to send to")
	cmd.Flags().StringVar(&in, "in", "", "file to send")
	cmd.MarkFlagRequired("in")
	return cmd
}
