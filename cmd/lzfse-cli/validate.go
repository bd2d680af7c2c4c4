package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lzfse-cli/lzfse-cli/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate-config",
		Usage: "Validate a configuration file",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "config",
				UsageText: "The configuration file to validate",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := getLogger(ctx)

			filename := command.StringArg("config")
			if filename == "" {
				return fmt.Errorf("no configuration file provided")
			}

			data, err := os.ReadFile(filename)
			if err != nil {
				return fmt.Errorf("failed to read config file '%s': %w", filename, err)
			}

			logger = logger.With(zap.String("config_filename", filename))
			logger.Debug("validating config file")

			spec, err := runner.ParseConfig(data)
			if err != nil {
				fmt.Fprintln(command.Root().Writer, formatValidationError(err))
				return fmt.Errorf("config file '%s' is invalid", filename)
			}

			cfg := runner.ConfigFromSpec(runner.DefaultConfig(), spec)
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(command.Root().Writer, formatValidationError(err))
				return fmt.Errorf("config file '%s' is invalid", filename)
			}

			if spec.Publish != nil {
				variables, err := runner.BuildVariables(time.Now(), command.StringSlice("allowed-env"))
				if err != nil {
					return fmt.Errorf("failed to build variables: %w", err)
				}
				publish := *spec.Publish
				if err := runner.ExpandTemplates(&publish, variables); err != nil {
					return fmt.Errorf("failed to expand templates: %w", err)
				}
			}

			fmt.Fprintf(command.Root().Writer, "✓ Config file '%s' is valid\n", filename)
			return nil
		},
	}
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("config has %d validation error(s):", len(validationErrs)))
		for _, fe := range validationErrs {
			sb.WriteString(fmt.Sprintf("\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag()))
			if fe.Param() != "" {
				sb.WriteString(fmt.Sprintf(" (param: %s)", fe.Param()))
			}
		}
		return errors.New(sb.String())
	}
	return err
}
