package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var loggerDeferFunc func() error

func newApp() *cli.Command {
	return &cli.Command{
		Name:                   "lzfse-cli",
		Usage:                  "Compress files and archive directories into block compressed streams",
		UseShortOptionHandling: true,
		Flags:                  newRootFlags(),
		MutuallyExclusiveFlags: []cli.MutuallyExclusiveFlags{newOperationFlags()},
		Commands: []*cli.Command{
			newVersionCommand(),
			newValidateCommand(),
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			if _, err := zapcore.ParseLevel(command.String("log-level")); err != nil {
				return nil, fmt.Errorf("invalid log level %s: %w", command.String("log-level"), err)
			}
			logger, err := createLogger(command.Bool("debug"), command.String("log-level"))
			if err != nil {
				return nil, err
			}

			logger.Debug("logger created", zap.String("log_level", command.String("log-level")))

			loggerDeferFunc = func() error {
				return logger.Sync()
			}

			return withLogger(ctx, logger), nil
		},
		Action: runAction,
		ExitErrHandler: func(ctx context.Context, command *cli.Command, err error) {
			if err == nil {
				return
			}

			if logger := tryLogger(ctx); logger != nil {
				logger.Fatal("failed to run application", zap.Error(err))
			} else {
				log.Fatal(fmt.Errorf("failed to run application: %w", err))
			}
		},
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	defer func() {
		if loggerDeferFunc != nil {
			_ = loggerDeferFunc()
		}
	}()

	_ = newApp().Run(ctx, os.Args)
}
