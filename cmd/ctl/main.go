package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cmd "github.com/jpfielding/jxlmeta.go/cmd/ctl/cmd"
	"github.com/jpfielding/jxlmeta.go/pkg/logging"
)

var (
	GitSHA string = "NA"
)

// exit code of a run cut short by SIGINT or SIGTERM
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	slog.SetDefault(logging.Logger(os.Stderr, false, slog.LevelInfo))
	ctx = logging.AppendCtx(ctx,
		slog.Group("jxlmetactl",
			slog.String("git", GitSHA),
			slog.String("go", runtime.Version()),
			slog.Int("pid", os.Getpid()),
		))

	root := cmd.NewRoot(ctx, GitSHA)
	root.SilenceUsage = true
	err := root.ExecuteContext(ctx)
	interrupted := errors.Is(ctx.Err(), context.Canceled)
	stop()
	switch {
	case interrupted:
		slog.WarnContext(ctx, "interrupted", slog.Any("error", err))
		os.Exit(exitInterrupted)
	case err != nil:
		slog.ErrorContext(ctx, "command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
