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

func newListenCmd() *cobra.Command {
	var port int
	var out string
	var maxSize int

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait for a transfer and write it to a file",
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

			g.Go("listen", func(ctx context.Context) error {
				ch, err := rudp.Listen(ctx, port, variant)
				if err != nil {
					return errors.Wrap(err, "listen")
				}
				defer ch.Close()

				buf := payloadio.AllocateRecvBuffer(maxSize)
				n, err := ch.RecvAll(ctx, buf)
				if err != nil {
					return errors.Wrap(err, "recv")
				}
				dlog.Infof(ctx, "received %d bytes", n)

				fs := afero.NewOsFs()
				return payloadio.WritePayload(fs, out, buf[:n])
			})

			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 9000, "UDP port to listen on")
	cmd.Flags().StringVar(&out, "out", "", "file to write the received transfer to")
	cmd.Flags().IntVar(&maxSize, "max-size", 64<<20, "upper bound, in bytes, on the transfer size")
	cmd.MarkFlagRequired("out")
	return cmd
}
