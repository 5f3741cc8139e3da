// Package main provides the LiebExplorer server and its companion commands.
// The server manages a fleet of isolated browser instances, each with its own
// synthesized identity and screen placement, behind an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/LagoAI/LiebExplorer/pkg/logging"
)

const version = "0.1.0" // Version of LiebExplorer

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run dispatches to a subcommand. serve is the default.
func run(ctx context.Context, args []string, out io.Writer) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}

	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		cfg, err := parseServeFlags(args, env)
		if err != nil {
			return err
		}
		if cfg.ShowVersion {
			fmt.Fprintf(out, "LiebExplorer v%s\n", version)
			return nil
		}
		logger, err := newLogger(cfg.EnvConfig)
		if err != nil {
			return err
		}
		defer logger.Close()
		return runServe(ctx, cfg, logger)
	case "status":
		return runStatus(ctx, args, env, out)
	case "prune":
		return runPrune(ctx, args, env, out)
	case "version":
		fmt.Fprintf(out, "LiebExplorer v%s\n", version)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newLogger opens the process log. A file logging failure falls back to
// stderr and is not fatal.
func newLogger(env EnvConfig) (*logging.Logger, error) {
	if env.LogDir != "" {
		logging.SetDirectory(env.LogDir)
	}
	level, err := logging.ParseLevel(env.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, logErr := logging.NewLogger("liebexplorer")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", logErr)
	}
	logger.SetLevel(level)
	return logger, nil
}

func usage(out io.Writer) {
	fmt.Fprintf(out, "LiebExplorer - a multi-instance browser orchestrator\n\n")
	fmt.Fprintf(out, "Usage: liebexplorer [command] [options]\n\n")
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  serve     Run the HTTP API (default)\n")
	fmt.Fprintf(out, "  status    Show the instances of a running server\n")
	fmt.Fprintf(out, "  prune     Delete saved profiles older than a number of days\n")
	fmt.Fprintf(out, "  version   Show version\n")
	fmt.Fprintf(out, "\nEnvironment Variables:\n")
	fmt.Fprintf(out, "  LIEB_ADDR              HTTP listen address\n")
	fmt.Fprintf(out, "  LIEB_CONFIG            Configuration file\n")
	fmt.Fprintf(out, "  LIEB_LOG_LEVEL         Log level\n")
	fmt.Fprintf(out, "  LIEB_LOG_DIR           Log directory\n")
	fmt.Fprintf(out, "  LIEB_HEADLESS          Run browsers without windows\n")
	fmt.Fprintf(out, "  LIEB_ALLOWED_ORIGINS   Websocket origins\n")
}
