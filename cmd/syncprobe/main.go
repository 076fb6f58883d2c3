package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Makepad-fr/syncprobe/internal/auth"
	"github.com/Makepad-fr/syncprobe/internal/cli"
	"github.com/Makepad-fr/syncprobe/internal/config"
	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	envFile := flag.String("env-file", "", "load this .env instead of searching parent directories")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (default LOG_LEVEL)")
	theme := flag.String("theme", "classic", "output theme: classic, neon or mono")
	noColor := flag.Bool("no-color", false, "disable colored output")
	forceColor := flag.Bool("color", false, "color output even when stdout is not a terminal")
	matrixFile := flag.String("matrix", "", "default target matrix for `run`")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	ui.SetTheme(*theme)
	if *noColor || *forceColor {
		ui.SetColorForcing(*forceColor, *noColor)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		ui.Fail("config: " + err.Error())
		os.Exit(1)
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log := logger.New(cfg.Env, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, args, cli.Options{
		Config: cfg,
		Log:    log,
		Auth:   auth.Store{},
		Stdin:  os.Stdin,
		Matrix: *matrixFile,
	})
	stop()
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
