// Package cli implements the athenaq command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kent-id/athenaq/config"
	"github.com/kent-id/athenaq/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type rootOptions struct {
	configPath string
	envFile    string
	debug      bool
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return executeArgs(os.Args[1:], os.Stdout, os.Stderr)
}

func executeArgs(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "\n%s: %v\n", errorTitle(err), err)
	}
	return ExitCode(err)
}

// NewRootCmd creates the root command with the run, serve and validate subcommands.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "athenaq",
		Short:         "Run SQL queries against AWS Athena",
		Long:          "athenaq runs the queries of a YAML configuration against AWS Athena, reusing cached executions where possible.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminal(os.Stderr) {
				logging.SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: true})
			}
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logging.Warnf("could not load %s: %v", opts.envFile, err)
			}
			if opts.debug {
				logging.SetLevel(logging.LevelDebug)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to configuration file (YAML format)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(opts), newServeCmd(opts), newValidateCmd(opts))
	return cmd
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// loadConfig reads the configuration and applies its log level unless --debug is set.
func loadConfig(opts *rootOptions, path string) (*config.Config, error) {
	if path == "" {
		path = opts.configPath
	}
	logging.Debugf("loading configuration from %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if !opts.debug {
		logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	}
	logging.Infof("configuration loaded successfully: %d queries found", len(cfg.Queries))
	return cfg, nil
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config]",
		Short: "Check a configuration file without running anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, firstArg(args))
			if err != nil {
				return err
			}
			cmd.Printf("configuration OK: %d queries (%d active)\n", len(cfg.Queries), len(cfg.ActiveQueries()))
			return nil
		},
	}
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
