package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/config"
	"github.com/kent-id/athenaq/format"
	"github.com/kent-id/athenaq/logging"
	"github.com/spf13/cobra"
)

// Runner executes one query request; *athenaq.Engine implements it.
type Runner interface {
	Run(ctx context.Context, req athenaq.Request) (*athenaq.Outcome, error)
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run [config]",
		Short: "Execute every configured query and write its results",
		Example: `  # Print results as tables
  athenaq run queries.yaml

  # Use the configuration from --config and show debug logs
  athenaq run --config queries.yaml --debug`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, firstArg(args))
			if err != nil {
				return err
			}
			engine, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runQueries(cmd.Context(), cfg, engine, cmd.OutOrStdout())
		},
	}
}

// runQueries executes the configured queries in order, stopping at the first failure.
func runQueries(ctx context.Context, cfg *config.Config, runner Runner, out io.Writer) error {
	total := len(cfg.Queries)
	multiple := total > 1

	for i, q := range cfg.Queries {
		if q.Skip {
			logging.Infof("skipping query %d/%d: %s", i+1, total, q.Name)
			continue
		}
		logging.Infof("executing query %d/%d: %s", i+1, total, q.Name)
		logging.Debugf("SQL: %s", q.SQL)

		outcome, err := runner.Run(ctx, athenaq.Request{
			SQL:       q.SQL,
			QueryName: q.Name,
			Caching:   cfg.Cache.Enabled,
		})
		if err != nil {
			return fmt.Errorf("query %q failed: %w", q.Name, err)
		}
		logging.Logger().Info().
			Str("query", q.Name).
			Str("execution_id", outcome.ExecutionID).
			Bool("from_cache", outcome.FromCache).
			Int("rows", outcome.Result.RowCount).
			Msg("query completed")

		if err := writeResult(cfg.Output, q.Name, multiple, outcome.Result, out); err != nil {
			return err
		}
	}

	logging.Infof("all queries executed successfully")
	return nil
}

func writeResult(output config.OutputConfig, name string, multiple bool, result *athenaq.QueryResult, out io.Writer) error {
	switch output.Format {
	case config.FormatCSV, config.FormatJSON:
		writeFn := format.WriteCSV
		if output.Format == config.FormatJSON {
			writeFn = format.WriteJSON
		}
		path := format.OutputPath(output.File, name, multiple)
		if err := format.WriteFile(path, result, writeFn); err != nil {
			return err
		}
		logging.Infof("results written to %s file: %s", output.Format, path)
		fmt.Fprintf(out, "Query '%s': Results written to %s\n", name, path)
	default:
		fmt.Fprintf(out, "\n=== Query: %s ===\n%s\n\n", name, format.Table(result))
	}
	return nil
}
