package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/paddock/internal/config"
	"github.com/okian/paddock/pkg/logger"
)

// cli carries state shared by the subcommands.
type cli struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "paddock",
		Short: "F1 prediction-game scoring engine",
		Long: `paddock scores user picks against official session results.

Configuration is read from defaults, then the YAML file named by PADDOCK_CONFIG,
then PADDOCK_* environment variables (PADDOCK_BATCH__WORKERS=8).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newRunCmd(c),
		newScoreCmd(c),
		newRulesCmd(c),
		newMigrateCmd(c),
		newDemoCmd(c),
	)
	return root
}

// setup loads configuration and initializes logging. Logs go to stderr so
// command output on stdout stays machine readable.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	c.log = logger.Get().Named("cli")

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		c.log.Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return nil
}
