package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lurimax-north/freeswitch-esl/esl"
	"github.com/lurimax-north/freeswitch-esl/internal/relay"
)

func relayCmd(opts *globalOptions) *cobra.Command {
	var listen, path string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay events to websocket clients",
		Long: `Subscribe and forward every event to websocket clients connected to
the events path. /healthz reports the session state and /metrics exposes
Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cmd.Flags().Changed("listen") {
				cfg.Relay.Listen = listen
			}
			if cmd.Flags().Changed("path") {
				cfg.Relay.Path = path
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := esl.NewMetrics(esl.WithRegistry(reg), esl.WithNamespace(cfg.Metrics.Namespace))

			sess := newSession(cfg, logger, esl.WithMetrics(metrics))
			defer sess.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			defer setupSignalHandler(cancel)()

			if err := sess.Initialize(ctx); err != nil {
				return err
			}
			st, err := sess.Stream(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			broadcaster := relay.NewBroadcaster(logger)
			defer broadcaster.Close()
			srv := &http.Server{
				Addr: cfg.Relay.Listen,
				Handler: relay.NewServer(sess, broadcaster,
					relay.WithGatherer(reg),
					relay.WithEventsPath(cfg.Relay.Path),
					relay.WithServerLogger(logger),
				).Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			return serveRelay(ctx, srv, broadcaster, st, logger)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", ":8089", "HTTP listen address")
	cmd.Flags().StringVar(&path, "path", "/events", "websocket endpoint path")
	return cmd
}

// serveRelay runs srv until the stream ends or ctx is cancelled.
func serveRelay(ctx context.Context, srv *http.Server, b *relay.Broadcaster, st *esl.Stream, logger *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("relay listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	forwardErr := make(chan error, 1)
	go func() {
		forwardErr <- b.Forward(st)
	}()

	var err error
	select {
	case err = <-serveErr:
	case err = <-forwardErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("relay shutdown", zap.Error(serr))
	}

	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
