package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/telnetnode/config"
	"github.com/cyberinferno/telnetnode/logger"
	"github.com/cyberinferno/telnetnode/telnetnode"
)

const serviceName = "telnetnode"

var (
	configFile string
	logLevel   string
	logDir     string
	port       int
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "telnetnode",
	Short: "Exchange newline-terminated text over raw TCP",
	Long: `telnetnode runs a line-oriented TCP node.

  telnetnode server   accepts any number of peers and routes text to them
  telnetnode client   connects to a server and exchanges text with it

Lines typed on stdin are sent; received lines are printed. Either side stops
when it receives "bye".`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (.toml, .yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Also write daily log files into this directory")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", telnetnode.DefaultPort, "TCP port")
}

// loadConfig reads --config, if any, and applies the flags the user set.
func loadConfig(cmd *cobra.Command, mode string) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	cfg.Mode = mode
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = logDir
	}
	if flags.Changed("port") {
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setup builds the logger and the node environment. The returned cleanup
// must be called once the node has been released.
func setup(cfg config.Config) (logger.Logger, func(), error) {
	log, err := logger.New(cfg.LoggerOptions(serviceName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := telnetnode.Initialize(telnetnode.WithLogger(log), telnetnode.WithConfig(cfg)); err != nil {
		_ = log.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := telnetnode.Finalize(); err != nil {
			log.Warn("finalize failed", logger.Field{Key: "error", Value: err})
		}
		_ = log.Close()
	}

	return log, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
