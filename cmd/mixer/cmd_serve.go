package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"mixing-extruder/pkg/console"
	"mixing-extruder/pkg/log"
	"mixing-extruder/pkg/metrics"
	"mixing-extruder/pkg/motion"
)

type serveOptions struct {
	addr        string
	metricsAddr string
	feed        float64
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket console and the metrics endpoint",
		Long: `Serve the JSON-RPC console on --addr (websocket at /websocket, plain
HTTP at /jsonrpc) and Prometheus metrics on --metrics until interrupted.

--feed extrudes continuously at the given rate in mm/s so mixes changed
from the console can be watched in mixer_stepper_steps.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(opts)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), h, so)
		},
	}
	cmd.Flags().StringVar(&so.addr, "addr", ":7125", "console listen address")
	cmd.Flags().StringVar(&so.metricsAddr, "metrics", ":9100", "metrics listen address, empty to disable")
	cmd.Flags().Float64Var(&so.feed, "feed", 0, "simulated extrusion rate in mm/s (0 disables)")
	return cmd
}

func runServe(ctx context.Context, h *host, so *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.GetLogger("serve")

	srv := console.New(console.Config{
		Addr:       so.addr,
		Mixer:      h.mixer,
		Dispatcher: h.dispatcher,
	})
	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	var ms *metrics.Server
	if so.metricsAddr != "" {
		mm := metrics.NewMixingMetrics(h.mixer)
		h.dispatcher.SetObserver(mm.ObserveGCode)
		ms = metrics.NewServer(mm, so.metricsAddr)
		go func() {
			if err := <-ms.StartAsync(); err != nil {
				errCh <- err
			}
		}()
	}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	if so.feed > 0 {
		go feed(feedCtx, h, so.feed)
	}

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed")
	}
	stopFeed()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("console shutdown")
	}
	if ms != nil {
		if err := ms.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("metrics shutdown")
		}
	}
	if err := h.savePresets(); err != nil {
		return fmt.Errorf("save presets: %w", err)
	}
	return runErr
}

// feed extrudes at rate mm/s in 10ms slices until ctx is done. It is the
// only caller of the step path while serving.
func feed(ctx context.Context, h *host, rate float64) {
	const tick = 10 * time.Millisecond
	ext := &motion.Extruder{Mixer: h.mixer, Sink: &motion.CountingSink{}, StepsPerMM: h.stepsPerMM}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ext.Move(rate * tick.Seconds())
		}
	}
}
