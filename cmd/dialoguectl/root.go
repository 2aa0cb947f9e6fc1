package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/internal/config"
	"github.com/creastat/dialogue/internal/logging"
	"github.com/creastat/dialogue/metrics"
	"github.com/creastat/dialogue/session"
	"github.com/creastat/dialogue/trace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	cfgFile string
	v       *viper.Viper

	cfg    *config.Config
	logger *slog.Logger
	store  dialogue.Storage[session.State]
}

// execute runs one dialoguectl invocation. The store opened for it is closed
// on every path, including failing commands.
func execute(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) (err error) {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	defer func() {
		err = errors.Join(err, a.close())
	}()
	return root.ExecuteContext(ctx)
}

func newApp() *app {
	return &app{v: viper.New()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "dialoguectl",
		Short:         "Inspect and edit stored chat dialogues",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./dialogue.yaml)")
	flags.String("backend", "", "storage backend: memory, redis, sqlite, file, supabase, qdrant, minio")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	_ = a.v.BindPFlag("backend", flags.Lookup("backend"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newRemoveCmd(a),
		newSayCmd(a),
	)
	return root
}

// open loads the config and builds trace ∘ metrics ∘ backend.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	backend, err := config.Open[session.State](cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	measure, err := metrics.Decorator[session.State](otel.GetMeterProvider())
	if err != nil {
		_ = backend.Close()
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.store = dialogue.Wrap(backend, trace.Decorator[session.State](logger), measure)

	logger.Debug("dialogue store ready", "backend", cfg.Backend, "serializer", cfg.Serializer)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func parseChatID(arg string) (dialogue.ChatID, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", arg, err)
	}
	return dialogue.ChatID(id), nil
}
