// Package main is the entry point for the yarals language server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ch0mler/yara-language-server/internal/config"
	"github.com/ch0mler/yara-language-server/internal/lsp"
	"github.com/ch0mler/yara-language-server/internal/yara"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("yarals %s\n", lsp.Version)
		return 0
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log file: %v\n", err)
		return 1
	}
	defer closeLog()

	schema, err := yara.LoadSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load module schema: %v\n", err)
		return 1
	}

	var opts []lsp.ServerOption
	opts = append(opts, lsp.WithServerSchema(schema))
	opts = append(opts, lsp.WithServerFormatter(yara.NewFormatter()))

	compiler, err := yara.FindCompiler()
	if err != nil {
		log.Warn("no yara compiler found, diagnostics disabled", "error", err)
	} else {
		log.Info("using yara compiler", "version", compiler.Version())
		opts = append(opts, lsp.WithServerCompiler(compiler))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := lsp.NewServer(cfg, log, opts...)
	if err := server.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() (config.Config, bool) {
	var configPath string
	var addr string
	var logLevel string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&addr, "addr", "", "Listen address (host:port)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ignoring config file: %v\n", err)
		} else {
			cfg = loaded
		}
	}

	// flags win over the config file
	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, showVersion
}

func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closeLog = func() { f.Close() }
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeLog, nil
}
