// Command toolbridge serves a tool-augmented chat bridge over HTTP and MCP stdio.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coopco/toolbridge/internal/config"
)

var version = "0.1.0"

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "toolbridge",
		Short: "Tool-augmented chat bridge",
		Long: `toolbridge answers chat turns, calling at most one registered tool per turn.

Usage modes:
  toolbridge serve           HTTP gateway (OpenAI-compatible chat + tool endpoints)
  toolbridge stdio           MCP server on stdin/stdout
  toolbridge tools list      Show registered tools
  toolbridge chat <message>  Send one chat turn to a gateway`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(os.Stderr)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (json, yaml or toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	root.AddCommand(serveCmd(a), stdioCmd(a), toolsCmd(a), chatCmd(a))
	return root
}

// init loads config and installs the process logger on w. Logs never go to
// stdout, which carries MCP frames and command output.
func (a *app) init(w io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := newLogger(cfg.Log, w)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

func newLogger(lc config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(lc.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
