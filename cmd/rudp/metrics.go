package main

import (
	"context"
	"net/http"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaynet/rudp/internal/metrics"
)

// serveMetrics registers the rudp collectors and starts an HTTP
// exposition server under g, if addr is non-empty. A no-op otherwise, so
// --metrics-addr stays entirely optional.
func serveMetrics(ctx context.Context, g *dgroup.Group, addr string) error {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	g.Go("metrics", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		dlog.Infof(ctx, "serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return nil
}
