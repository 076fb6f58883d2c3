// Package cli routes syncprobe subcommands. Every command returns a process
// exit code: 0 ok, 1 failure, 2 usage.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/exp/slog"

	"github.com/Makepad-fr/syncprobe/internal/artifact"
	"github.com/Makepad-fr/syncprobe/internal/auth"
	"github.com/Makepad-fr/syncprobe/internal/config"
	"github.com/Makepad-fr/syncprobe/internal/logger"
	"github.com/Makepad-fr/syncprobe/internal/metrics"
	"github.com/Makepad-fr/syncprobe/internal/store/cloud"
	"github.com/Makepad-fr/syncprobe/internal/ui"
)

// Options carry what the root command resolved before dispatch.
type Options struct {
	Config *config.Config
	Log    *slog.Logger
	Auth   auth.Store
	Stdin  io.Reader // auth login reads the key from here
	Matrix string    // default matrix file for `run`
}

func (o *Options) defaults() {
	if o.Config == nil {
		o.Config = &config.Config{}
	}
	if o.Log == nil {
		o.Log = logger.Discard()
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
}

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// Run dispatches a subcommand.
func Run(ctx context.Context, args []string, opt Options) int {
	opt.defaults()
	if len(args) == 0 {
		PrintHelp()
		return exitUsage
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return exitOK
	case "seed":
		return doSeed(ctx, opt, a)
	case "verify":
		return doVerify(ctx, opt, a)
	case "run":
		return doRun(ctx, opt, a)
	case "smoke":
		return doSmoke(ctx, opt, a)
	case "ls":
		return doList(ctx, opt, a)
	case "add":
		return doAdd(ctx, opt, a)
	case "done":
		return doToggle(ctx, opt, a)
	case "edit":
		return doEdit(ctx, opt, a)
	case "rm":
		return doRemove(ctx, opt, a)
	case "board":
		return doBoard(ctx, opt, a)
	case "history":
		return doHistory(opt, a)
	case "upload":
		return doUpload(ctx, opt, a)
	case "auth":
		return doAuth(opt, a)
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(ui.Stderr)
	PrintHelp()
	return exitUsage
}

func PrintHelp() {
	fmt.Fprint(ui.Stdout, `syncprobe - seed a document, then prove it synced

Usage:
  syncprobe [flags] <subcommand> [args]

Verification:
  seed [-label L] [-id ID] [-title T] [-verify]
                     Insert the test document through the HTTP API
  verify [-label L] [-id ID] [-title T]
                     Wait until the document is readable from the cloud store
  run [-matrix FILE] [-label L] [-id ID] [-seed]
                     Check every target of a matrix file in turn
  smoke [-ref BRANCH] [-workflows a.yml,b.yml] <ws-url>
                     Dispatch CI workflows against a sync endpoint and wait
  history [-n N]     Show recent verification runs
  upload [-prefix P] <file...>
                     Store files in the artifact sink

Tasks:
  ls [-all]          List tasks
  add <title...>     Add a task
  done <index|id>    Toggle done
  edit <index|id> <title...>
                     Rename a task
  rm <index|id>      Soft-delete a task
  board              Interactive task board

Auth:
  auth <login|logout|status|whoami>   API key for the HTTP API

Examples:
  syncprobe seed -label "KMP Android" -verify
  syncprobe run -matrix targets.yaml
  syncprobe smoke wss://cloud.example.com/ws
`)
}

// newFlags builds a subcommand flag set that reports errors instead of
// exiting.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(ui.Stderr)
	return fs
}

// parse returns ok=false with the exit code to use when parsing stopped.
func parse(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}

func usage(msg string) int {
	ui.Fail("usage: syncprobe " + msg)
	return exitUsage
}

// openStore builds the HTTP API client. The key comes from the
// configuration first, then from the saved credentials.
func openStore(opt Options) (*cloud.Client, error) {
	resolved := *opt.Config
	cfg := &resolved.Ditto
	cfg.APIKey = auth.StripBearer(strings.TrimSpace(cfg.APIKey))
	if cfg.APIKey == "" {
		ki, err := opt.Auth.Require()
		if err != nil && cfg.APIURL != "" {
			return nil, err
		}
		if err == nil {
			cfg.APIKey = ki.Key
		}
	}
	if err := resolved.RequireAPI(); err != nil {
		return nil, err
	}
	return cloud.New(cloud.Options{
		BaseURL:    cfg.APIURL,
		APIKey:     cfg.APIKey,
		Collection: cfg.Collection,
		RateLimit:  cfg.RateLimit,
	})
}

// openSink writes artifacts to the local directory and, when configured,
// to the MinIO bucket as well.
func openSink(ctx context.Context, opt Options, prefix string) artifact.Sink {
	cfg := opt.Config.Artifact
	dir := cfg.Dir
	if dir == "" {
		dir = "artifacts"
	}
	sinks := artifact.Multi{artifact.DirSink{Dir: dir}}
	if cfg.MinIO.Endpoint == "" {
		return sinks
	}
	mc := cfg.MinIO
	ms, err := artifact.NewMinIOSink(ctx, artifact.MinIOConfig{
		Endpoint:  mc.Endpoint,
		AccessKey: mc.AccessKey,
		SecretKey: mc.SecretKey,
		UseSSL:    mc.UseSSL,
		Bucket:    mc.Bucket,
		Prefix:    prefix,
	})
	if err != nil {
		opt.Log.Warn("artifact bucket unavailable, keeping local copies only", logger.Err(err))
		return sinks
	}
	return append(sinks, ms)
}

func writeMetrics(opt Options, m *metrics.Metrics) {
	if opt.Config.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(opt.Config.MetricsFile); err != nil {
		opt.Log.Warn("writing metrics textfile", logger.Err(err))
	}
}
