package main

import (
	"context"
	"fmt"
	"os"
	"time"

	v1 "github.com/lzfse-cli/lzfse-cli/apis/v1"
	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/report"
	"github.com/lzfse-cli/lzfse-cli/internal/runner"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func runAction(ctx context.Context, command *cli.Command) error {
	logger := getLogger(ctx)

	op, err := operationFromFlags(command)
	if err != nil {
		return err
	}
	input := command.String("input")
	if input == "" {
		return fmt.Errorf("--input is required")
	}

	cfg, publish, err := loadSettings(command)
	if err != nil {
		return err
	}

	fsys := afero.NewOsFs()
	injector := runner.BuildContainer(logger, fsys, cfg)
	defer func() {
		if shutdown := injector.ShutdownWithContext(context.WithoutCancel(ctx)); shutdown != nil && !shutdown.Succeed {
			logger.Warn("failed to shut down", zap.Error(shutdown))
		}
	}()

	if op == engine.OperationEncode && hasDestination(publish) {
		variables, err := runner.BuildVariables(time.Now(), command.StringSlice("allowed-env"))
		if err != nil {
			return fmt.Errorf("failed to build variables: %w", err)
		}
		do.Provide(injector, func(i do.Injector) (engine.Sink, error) {
			return runner.BuildSink(ctx, fsys, publish, variables)
		})
	}

	r, err := do.Invoke[*runner.Runner](injector)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	target, req, err := r.Plan(op, input, command.String("output"), command.Bool("force"))
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := r.Run(ctx, op, target, req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", op, req.InputPath, err)
	}

	summary := report.NewSummary(op, target, req.InputPath, req.OutputPath, result, time.Since(start))
	return report.Write(command.Root().Writer, summaryFormat(command), summary)
}

func operationFromFlags(command *cli.Command) (engine.Operation, error) {
	switch {
	case command.Bool("encode"):
		return engine.OperationEncode, nil
	case command.Bool("decode"):
		return engine.OperationDecode, nil
	default:
		return "", fmt.Errorf("one of --encode or --decode is required")
	}
}

// loadSettings layers the configuration file, then flags and their
// environment variables, over the defaults.
func loadSettings(command *cli.Command) (runner.Config, *v1.PublishSpec, error) {
	cfg := runner.DefaultConfig()
	var publish v1.PublishSpec

	if path := command.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return runner.Config{}, nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		spec, err := runner.ParseConfig(data)
		if err != nil {
			return runner.Config{}, nil, fmt.Errorf("config file '%s' is invalid: %w", path, formatValidationError(err))
		}
		cfg = runner.ConfigFromSpec(cfg, spec)
		if spec.Publish != nil {
			publish = *spec.Publish
		}
	}

	if command.IsSet("block-size") {
		cfg.BlockSize = command.Int("block-size")
	}
	if command.IsSet("threads") {
		cfg.ThreadCount = command.Int("threads")
	}
	if command.IsSet("codec") {
		cfg.Codec = command.String("codec")
	}
	if command.IsSet("keep-partial") {
		cfg.KeepPartial = command.Bool("keep-partial")
	}

	if bucket := command.String("s3-bucket"); bucket != "" {
		publish.S3 = &v1.S3Spec{
			Bucket:         bucket,
			Prefix:         lo.EmptyableToPtr(command.String("s3-prefix")),
			Region:         lo.EmptyableToPtr(command.String("s3-region")),
			Endpoint:       lo.EmptyableToPtr(command.String("s3-endpoint")),
			ForcePathStyle: command.Bool("s3-force-path-style"),
		}
	}
	if dir := command.String("mirror-dir"); dir != "" {
		publish.Mirror = &v1.MirrorSpec{Path: dir}
	}

	if err := cfg.Validate(); err != nil {
		return runner.Config{}, nil, formatValidationError(err)
	}
	return cfg, &publish, nil
}

func hasDestination(spec *v1.PublishSpec) bool {
	return spec != nil && (spec.S3 != nil || spec.Mirror != nil)
}

func summaryFormat(command *cli.Command) report.Format {
	switch command.String("report") {
	case "text":
		return report.FormatText
	case "json":
		return report.FormatJSON
	}
	if f, ok := command.Root().Writer.(*os.File); ok {
		return reportFormat(f)
	}
	return report.FormatJSON
}
