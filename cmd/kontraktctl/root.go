package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rhuss/kontrakt/pkg/app"
	"github.com/rhuss/kontrakt/pkg/config"
	"github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/engine"
	"github.com/rhuss/kontrakt/pkg/model/openaicompat"
)

var version = "dev" // set via ldflags at build time

// cli carries the state shared by all subcommands.
type cli struct {
	configPath string
	user       string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "kontraktctl",
		Short: "Inspect and drive contract assistant sessions",
		Long: `kontraktctl works directly on the session store and model backend
configured for the kontrakt server. It reads the same config file and
KONTRAKT_* environment variables.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the config file")
	root.PersistentFlags().StringVarP(&c.user, "user", "u", "", "session key of the user (tenant/subject or subject)")

	root.AddCommand(newHistoryCmd(c))
	root.AddCommand(newTurnCmd(c))
	return root
}

// historyEngine builds an engine over the configured store. The model is
// never called by history commands, so no tools are registered.
func (c *cli) historyEngine(ctx context.Context) (*engine.Engine, func() error, error) {
	store, err := app.OpenStore(ctx, c.cfg.Session, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	m := openaicompat.New(openaicompat.Config{BaseURL: c.cfg.Engine.BackendURL, Model: c.cfg.Engine.Model}, nil, slog.Default())
	eng, err := engine.New(store, m, engine.Config{
		SystemPrompt:   c.cfg.Engine.SystemPrompt,
		PromptTemplate: c.cfg.Engine.PromptTemplate,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return eng, store.Close, nil
}

var errMissingUser = errors.New("--user is required")

func (c *cli) requireUser() error {
	if c.user == "" {
		return errMissingUser
	}
	return nil
}
