package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/mcp"
	"github.com/hpungsan/grove/internal/metrics"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"relationship": true, "interaction": true, "quest": true,
	"tree": true, "insights": true, "categories": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return cliCommands[arg] || isHelpOrVersion()
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a short banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __ _ _ __ _____   _____
  / _' | '__/ _ \ \ / / _ \
 | (_| | | | (_) \ V /  __/
  \__, |_|  \___/ \_/ \___|
   __/ |
  |___/

  Relationship progression tracker

  Usage: grove <command> [options]
         grove --help

  MCP server mode requires piped input.`)
}

// baseDir is $GROVE_HOME, or ~/.grove.
func baseDir() (string, error) {
	if dir := os.Getenv("GROVE_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".grove"), nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need no store.
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'grove --help' for usage.\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := baseDir()
	if err != nil {
		fatal("%v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		fatal("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	app, err := newApp(ctx, cfg, dir, logger)
	if err != nil {
		fatal("%v", err)
	}
	defer app.Close()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	if isCLIMode() {
		if err := newCLIApp(app.svc).RunContext(ctx, os.Args); err != nil {
			app.Close()
			fatal("%v", err)
		}
		return
	}

	if err := mcp.Run(app.svc, cfg, logger, Version); err != nil {
		app.Close()
		fatal("%v", err)
	}
}
