// Command esl is a FreeSWITCH event socket client: an interactive console,
// an event printer, a one-shot api runner and a websocket relay.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lurimax-north/freeswitch-esl/esl"
	"github.com/lurimax-north/freeswitch-esl/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalOptions holds the root persistent flags.
type globalOptions struct {
	configPath string
	host       string
	port       int
	password   string
	events     []string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "esl",
		Short: "FreeSWITCH event socket client",
		Long: `esl connects to a FreeSWITCH event socket (mod_event_socket),
authenticates, subscribes to JSON events and dispatches them.

Without a subcommand it starts the interactive console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts)
		},
	}

	opts.addFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(
		consoleCmd(opts),
		eventsCmd(opts),
		apiCmd(opts),
		relayCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func (o *globalOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&o.host, "host", "", "event socket host (default 127.0.0.1)")
	flags.IntVarP(&o.port, "port", "p", 0, "event socket port (default 8021)")
	flags.StringVar(&o.password, "password", "", "event socket password (or $"+config.PasswordEnv+")")
	flags.StringSliceVarP(&o.events, "events", "e", nil, "event names to subscribe to (default all)")
	flags.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// load reads the configuration file and applies the flags that were set.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("password") {
		cfg.Password = o.password
	}
	if flags.Changed("events") {
		cfg.Events = o.events
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds a stderr logger. Debug level switches to the development
// encoder.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// newSession creates a session from cfg. extra options are applied last.
func newSession(cfg *config.Config, logger *zap.Logger, extra ...esl.Option) *esl.Session {
	opts := []esl.Option{
		esl.WithPassword(cfg.Password),
		esl.WithEvents(cfg.Events...),
		esl.WithRefreshInterval(cfg.RefreshInterval),
		esl.WithLogger(logger),
	}
	return esl.New(cfg.Host, cfg.Port, append(opts, extra...)...)
}

// setup loads the configuration and builds the logger.
func (o *globalOptions) setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	return cfg, logger, nil
}

// setupSignalHandler runs cleanup on SIGINT or SIGTERM. The returned stop
// function removes the handler.
func setupSignalHandler(cleanup func()) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			cleanup()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
