package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/loanscore/pkg/data"
	"github.com/urfave/cli/v3"
)

const (
	historyLimitDefault = 100

	historyLimitFlag = "limit"
	whereFlag        = "where"
	yesFlag          = "yes"
)

func whereFlagDef() cli.Flag {
	return &cli.StringFlag{
		Name:  whereFlag,
		Usage: `CEL filter over probability, decision, model_version, source, created_at (e.g. 'decision == "approved"')`,
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded assessments",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List assessments, newest first",
				UsageText: `loanscore history list --limit 20
   loanscore history list --where 'probability >= 0.4 && source == "api"'`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  historyLimitFlag,
						Usage: "Limits number of results returned (0 for all)",
						Value: historyLimitDefault,
					},
					whereFlagDef(),
				},
				Action: cmdHistoryList,
			},
			{
				Name:      "get",
				Usage:     "Show a single assessment",
				ArgsUsage: "ID",
				Action:    cmdHistoryGet,
			},
			{
				Name:   "stats",
				Usage:  "Count assessments per decision",
				Flags:  []cli.Flag{whereFlagDef()},
				Action: cmdHistoryStats,
			},
			{
				Name:  "reset",
				Usage: "Delete all recorded assessments",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    yesFlag,
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: cmdHistoryReset,
			},
		},
	}
}

func parseWhere(cmd *cli.Command) (*data.Filter, error) {
	expr := strings.TrimSpace(cmd.String(whereFlag))
	if expr == "" {
		return nil, nil
	}
	f, err := data.NewFilter(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid --where: %w", err)
	}
	return f, nil
}

func cmdHistoryList(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	store, err := cfg.store()
	if err != nil {
		return err
	}
	f, err := parseWhere(cmd)
	if err != nil {
		return err
	}

	list, err := store.List(ctx, data.Query{Limit: int(cmd.Int(historyLimitFlag)), Filter: f})
	if err != nil {
		return fmt.Errorf("listing assessments: %w", err)
	}
	return cfg.encode(assessmentList(list))
}

func cmdHistoryGet(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return errors.New("assessment ID required")
	}

	cfg := getConfig(cmd)
	store, err := cfg.store()
	if err != nil {
		return err
	}

	a, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	return cfg.encode(a)
}

func cmdHistoryStats(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	store, err := cfg.store()
	if err != nil {
		return err
	}
	f, err := parseWhere(cmd)
	if err != nil {
		return err
	}

	list, err := store.List(ctx, data.Query{Filter: f})
	if err != nil {
		return fmt.Errorf("listing assessments: %w", err)
	}
	return cfg.encode(decisionCounts(data.Summarize(list)))
}

func cmdHistoryReset(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	store, err := cfg.store()
	if err != nil {
		return err
	}

	if !cmd.Bool(yesFlag) {
		fmt.Fprintf(cfg.Out, "This will permanently delete all assessments in %s\n", cfg.Config.History.Driver)
		fmt.Fprint(cfg.Out, "Are you sure? [y/N]: ")

		answer, err := bufio.NewReader(cfg.In).ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(cfg.Out, "Aborted.")
			return nil
		}
	}

	n, err := store.Purge(ctx)
	if err != nil {
		return err
	}
	slog.Info("history reset", "driver", cfg.Config.History.Driver, "deleted", n)
	return nil
}
