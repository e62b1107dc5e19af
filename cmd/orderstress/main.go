package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/studiowebux/orderstress/internal/cli"
	"github.com/studiowebux/orderstress/internal/config"
)

var (
	version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orderstress",
	Short: "orderstress - concurrent order API stress tester",
	Long: `orderstress fires a scenario of orders at an e-commerce order API,
one concurrent request per order, launched with a fixed stagger.

Each response is printed as soon as it arrives. Runs are recorded in
~/.orderstress/orderstress.db unless --no-save is given.

Examples:
  orderstress run                                # Built-in scenario against localhost:3000
  orderstress run --base-url http://shop:8080    # Another server
  orderstress run -s orders.yaml --stagger 50ms  # Custom scenario
  orderstress run -o json -q orderId             # JSON report, project the order id
  orderstress session                            # Throwaway account, deleted afterwards
  orderstress session --login --email a@b.c --password secret
  orderstress runs list
  orderstress runs show 3`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch the scenario without a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}
		return cli.Run(cmd.Context(), opts)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Dispatch the scenario inside an authenticated session",
	Long: `Signs up a throwaway account (or logs into an existing one with --login),
dispatches the scenario with the session cookie, reports how many orders the
server stored for the account and then deletes the throwaway account.

The account is cleaned up even when the run is interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}
		sopts := cli.SessionOptions{
			RunOptions:     opts,
			Login:          flagLogin,
			KeepAccount:    flagKeepAccount,
			CleanupTimeout: flagCleanupTimeout,
		}
		sopts.Credentials.Email = flagEmail
		sopts.Credentials.Password = flagPassword
		return cli.RunSession(cmd.Context(), sopts)
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the product catalogue served by the API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings(cmd)
		if err != nil {
			return err
		}
		return cli.ListProducts(cmd.Context(), cli.ProductsOptions{
			BaseURL:        s.BaseURL,
			RequestTimeout: s.RequestTimeout,
			OutputFormat:   s.Output,
		})
	},
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect scenarios",
}

var scenarioPrintCmd = &cobra.Command{
	Use:   "print [file]",
	Short: "Print a scenario (the built-in one when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return cli.PrintScenario(cli.ScenarioOptions{Path: path, Format: flagScenarioFormat})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse recorded runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListRuns(historyOptions(cmd))
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a recorded run and its results",
	Long:  "Show a recorded run. Without an id, pick one interactively.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := runID(args)
		if err != nil {
			return err
		}
		return cli.ShowRun(historyOptions(cmd), id)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a recorded run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := runID(args)
		if err != nil {
			return err
		}
		return cli.DeleteRun(historyOptions(cmd), id)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings(cmd)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n", config.GetSettingsFilePath())
		data, err := s.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings to the global settings file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.SettingsFile
		if _, err := os.Stat(path); err == nil && !flagForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.DefaultSettings().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

// Global flags
var (
	flagBaseURL  string
	flagStagger  time.Duration
	flagTimeout  time.Duration
	flagScenario string
	flagOutput   string
	flagQuery    string
	flagNoSave   bool
	flagVerbose  bool
)

// Flags for session
var (
	flagLogin          bool
	flagEmail          string
	flagPassword       string
	flagKeepAccount    bool
	flagCleanupTimeout time.Duration
)

// Flags for scenario, runs and config
var (
	flagScenarioFormat string
	flagLimit          int
	flagYes            bool
	flagForce          bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagBaseURL, "base-url", "u", config.DefaultBaseURL, "Order API base URL")
	pf.DurationVar(&flagStagger, "stagger", config.DefaultStagger, "Delay between two request launches")
	pf.DurationVarP(&flagTimeout, "timeout", "t", config.DefaultRequestTimeout, "Per-request timeout")
	pf.StringVarP(&flagScenario, "scenario", "s", "", "Scenario file (yaml/json/jsonc); built-in scenario when empty")
	pf.StringVarP(&flagOutput, "output", "o", "text", "Output format (text/json/yaml)")
	pf.StringVarP(&flagQuery, "query", "q", "", "JMESPath expression applied to each response body")
	pf.BoolVar(&flagNoSave, "no-save", false, "Do not record the run")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	sessionCmd.Flags().BoolVar(&flagLogin, "login", false, "Log into an existing account instead of signing up")
	sessionCmd.Flags().StringVar(&flagEmail, "email", "", "Account email (with --login)")
	sessionCmd.Flags().StringVar(&flagPassword, "password", "", "Account password (with --login)")
	sessionCmd.Flags().BoolVar(&flagKeepAccount, "keep-account", false, "Do not delete the throwaway account")
	sessionCmd.Flags().DurationVar(&flagCleanupTimeout, "cleanup-timeout", cli.DefaultCleanupTimeout, "Time allowed for account cleanup")
	sessionCmd.MarkFlagsRequiredTogether("email", "password")

	scenarioPrintCmd.Flags().StringVarP(&flagScenarioFormat, "format", "f", "yaml", "Output format (yaml/json)")
	runsListCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "Maximum number of runs (0 for all)")
	runsDeleteCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Skip confirmation")
	configInitCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing settings file")

	scenarioCmd.AddCommand(scenarioPrintCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogger sends structured logs to stderr so stdout only carries results
func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
		NoColor:    os.Getenv("NO_COLOR") != "",
	}).Level(level).With().Timestamp().Logger()
}

// settings loads the settings file, then applies the flags the user set explicitly
func settings(cmd *cobra.Command) (*config.Settings, error) {
	s, err := config.LoadSettings(config.GetSettingsFilePath())
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		s.BaseURL = flagBaseURL
	}
	if flags.Changed("stagger") {
		s.Stagger = flagStagger
	}
	if flags.Changed("timeout") {
		s.RequestTimeout = flagTimeout
	}
	if flags.Changed("scenario") {
		s.Scenario = flagScenario
	}
	if flags.Changed("output") {
		s.Output = flagOutput
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func runOptions(cmd *cobra.Command) (cli.RunOptions, error) {
	s, err := settings(cmd)
	if err != nil {
		return cli.RunOptions{}, err
	}
	return cli.RunOptions{
		BaseURL:        s.BaseURL,
		Stagger:        s.Stagger,
		RequestTimeout: s.RequestTimeout,
		ScenarioPath:   s.Scenario,
		OutputFormat:   s.Output,
		Query:          flagQuery,
		NoSave:         flagNoSave || !s.IsHistoryEnabled(),
		DBPath:         config.DatabasePath,
	}, nil
}

func historyOptions(cmd *cobra.Command) cli.HistoryOptions {
	output := "text"
	if cmd.Flags().Changed("output") {
		output = flagOutput
	} else if s, err := config.LoadSettings(config.GetSettingsFilePath()); err == nil && s.Output != "" {
		output = s.Output
	}
	return cli.HistoryOptions{
		DBPath:       config.DatabasePath,
		OutputFormat: output,
		Limit:        flagLimit,
		Yes:          flagYes,
	}
}

func runID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", args[0])
	}
	return id, nil
}
