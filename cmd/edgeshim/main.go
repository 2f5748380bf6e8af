package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holon-run/edgeshim/pkg/config"
	edgelog "github.com/holon-run/edgeshim/pkg/log"
	"github.com/spf13/cobra"
)

var (
	configPath      string
	flagSocketDir   string
	flagBinaryTypes []string
	flagTimeout     string
	flagLogLevel    string
	flagLogFormat   string
	skipPreflight   bool

	// cfg is resolved in PersistentPreRunE for every subcommand.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "edgeshim",
	Short: "Run edge request events against a local HTTP handler",
	Long: `edgeshim replays CloudFront / Lambda@Edge request events against an HTTP
handler listening on a local unix socket and prints the edge response the
platform would receive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, loaded); err != nil {
			return err
		}
		if err := edgelog.Init(loaded.LogConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = edgelog.Sync()
	},
}

// applyFlags overrides configuration with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("socket-dir") {
		c.SocketDir = flagSocketDir
	}
	if flags.Changed("binary-types") {
		c.BinaryTypes = flagBinaryTypes
	}
	if flags.Changed("timeout") {
		d, err := parseDuration(flagTimeout)
		if err != nil {
			return err
		}
		c.RequestTimeout = d
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		c.LogFormat = flagLogFormat
	}
	return config.Validate(c)
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --timeout %q: %w", s, err)
	}
	return d, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&flagSocketDir, "socket-dir", "", "Directory for the local server socket (default /tmp)")
	pf.StringSliceVar(&flagBinaryTypes, "binary-types", nil, "Content types returned to the edge as base64")
	pf.StringVar(&flagTimeout, "timeout", "", "Per-event request timeout, e.g. 30s")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: console, json")
	pf.BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before binding the socket")
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
