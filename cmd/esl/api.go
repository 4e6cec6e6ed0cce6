package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lurimax-north/freeswitch-esl/esl"
)

func apiCmd(opts *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "api <command...>",
		Short: "Run one api command and print the response",
		Example: `  esl api status
  esl api show channels`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			replies := make(chan esl.Reply, 1)
			sess := newSession(cfg, logger, esl.WithReplyHandler(func(r esl.Reply) {
				if r.ContentType() != esl.ContentTypeAPIResponse {
					return
				}
				select {
				case replies <- r:
				default:
				}
			}))
			defer sess.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			defer setupSignalHandler(cancel)()

			body, err := runAPI(ctx, sess, cfg.Password, strings.Join(args, " "), replies)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(body, "\n"))
			if strings.HasPrefix(body, esl.ErrMarker) {
				return errors.New("command failed")
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "time to wait for the response")
	return cmd
}

// runAPI connects without subscribing, sends command and returns the body of
// the next api/response delivered on replies.
func runAPI(ctx context.Context, sess *esl.Session, password, command string, replies <-chan esl.Reply) (string, error) {
	if err := sess.Connect(ctx); err != nil {
		return "", err
	}
	if password != "" {
		if err := sess.Authenticate(ctx, password); err != nil {
			return "", err
		}
	}

	st, err := sess.Stream(ctx)
	if err != nil {
		return "", err
	}
	defer st.Close()

	// The loop only reaches the reply once pending events are taken.
	go func() {
		for range st.Events() {
		}
	}()

	if err := sess.API(command); err != nil {
		return "", err
	}

	select {
	case r := <-replies:
		return r.Body, nil
	case <-st.Done():
		if err := st.Err(); err != nil {
			return "", err
		}
		return "", errors.New("connection closed before the response")
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for response: %w", ctx.Err())
	}
}
