package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/lurimax-north/freeswitch-esl/internal/relay"
)

func eventsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print events as JSON lines",
		Long: `Subscribe and write every event to stdout as one JSON document per
line with the fields id, event, headers and received_at.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			sess := newSession(cfg, logger)
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

			enc := json.NewEncoder(cmd.OutOrStdout())
			for ev := range st.Events() {
				if err := enc.Encode(relay.NewMessage(ev, time.Now())); err != nil {
					return err
				}
			}
			if err := st.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
