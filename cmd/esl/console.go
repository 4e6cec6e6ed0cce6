package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/lurimax-north/freeswitch-esl/esl"
	"github.com/lurimax-north/freeswitch-esl/internal/console"
)

func consoleCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive event socket shell",
		Long: `Start an interactive shell. Lines are sent as api commands; slash
commands such as /event, /filter and /bgapi control the socket. Events are
printed as they arrive. Type /help for the full list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts)
		},
	}
}

func runConsole(cmd *cobra.Command, opts *globalOptions) error {
	cfg, logger, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	editor := console.NewLineEditor()
	defer editor.Close()

	con := console.New(editor, os.Stdout, logger)
	sess := newSession(cfg, logger, esl.WithReplyHandler(con.HandleReply))
	defer sess.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stop := setupSignalHandler(func() {
		cancel()
		sess.Close()
		editor.Close()
		os.Exit(0)
	})
	defer stop()

	if err := sess.Initialize(ctx); err != nil {
		return err
	}
	return con.Run(ctx, sess)
}
