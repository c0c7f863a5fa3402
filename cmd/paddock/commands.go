package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/paddock/internal/app"
	"github.com/okian/paddock/internal/demo"
	"github.com/okian/paddock/internal/domain/audit"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/domain/scoring"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second
	cliActor        = "cli"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the scheduled batch",
		Long: `Serve the scoring API on the configured address. When schedule.enabled is
set, ScorePendingResults also runs on schedule.spec (e.g. "@every 5m").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc := service.New(c.cfg, service.WithLogger(logger.Get().Named("service")))
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}

			// Wait for shutdown signal
			<-ctx.Done()
			c.log.Info(ctx, "shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return svc.Stop(shutdownCtx)
		},
	}
}

func newRunCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score every pending (event, prop type) pair once",
		Long: `Discover pairs whose result changed, whose picks are unscored or whose rule
changed since the last pass, score them and print the run summary as JSON.

Examples:
  paddock run
  paddock run --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *service.Service) error {
				var opts []engine.RunOption
				if force {
					opts = append(opts, engine.WithForce())
				}
				summary, err := svc.Engine().ScorePendingResults(audit.WithActor(ctx, cliActor), opts...)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rescore every pair with a result, not only pending ones")
	return cmd
}

func newScoreCmd(c *cli) *cobra.Command {
	var (
		eventID  string
		propType string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one (event, prop type) pair",
		Long: `Score every pick of one pair against its result and print the pair report.

Example:
  paddock score --event monza-2025 --prop race_winner`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *service.Service) error {
				report, err := svc.Engine().ScoreResult(audit.WithActor(ctx, cliActor), strings.TrimSpace(eventID), model.PropType(strings.TrimSpace(propType)))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "Event id")
	cmd.Flags().StringVar(&propType, "prop", "", "Prop type, e.g. race_winner")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("prop")
	return cmd
}

func newRulesCmd(c *cli) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the active scoring rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := c.cfg.Rules.Registry()
			if err != nil {
				return err
			}
			switch format {
			case "table":
				return writeRulesTable(cmd.OutOrStdout(), reg)
			case "json":
				return writeJSON(cmd.OutOrStdout(), rulesView(reg))
			default:
				return fmt.Errorf("unknown format %q: use table or json", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := service.New(c.cfg)
			defer func() { _ = svc.Stop(context.WithoutCancel(cmd.Context())) }()
			return svc.Migrate(cmd.Context())
		},
	}
}

func newDemoCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Score a seeded race weekend in memory and verify the points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := c.cfg.Rules.Registry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				out = io.Discard
			}
			report, err := demo.Run(cmd.Context(), reg, out)
			if asJSON {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
					return errors.Join(err, werr)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the demo report as JSON")
	return cmd
}

// withService opens the configured service, runs fn and closes it again.
func (c *cli) withService(ctx context.Context, fn func(context.Context, *service.Service) error) error {
	svc := service.New(c.cfg, service.WithLogger(logger.Get().Named("service")))
	if err := svc.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := svc.Stop(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn(ctx, "service stop failed", logger.Error(err))
		}
	}()
	return fn(ctx, svc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type ruleEntry struct {
	scoring.Rule
	Version string `json:"version"`
}

func rulesView(reg *scoring.Registry) []ruleEntry {
	rules := reg.Rules()
	out := make([]ruleEntry, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleEntry{Rule: r, Version: r.Version})
	}
	return out
}

func writeRulesTable(w io.Writer, reg *scoring.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROP TYPE\tSTRATEGY\tEXACT\tMARGIN PTS\tDECAY\tCUTOFF\tVERSION")
	for _, r := range reg.Rules() {
		decay, cutoff := "-", "-"
		if r.Strategy == scoring.Numeric {
			decay = string(r.Decay.Kind)
			cutoff = r.Decay.Cutoff.String() + " " + r.MarginUnit
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.PropType, r.Strategy, r.ExactPoints, r.MaxMarginPoints, decay, strings.TrimSpace(cutoff), r.Version)
	}
	return tw.Flush()
}
