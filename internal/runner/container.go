package runner

import (
	"errors"
	"fmt"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BuildContainer creates a new DI container with all dependencies registered.
// Dependencies are lazily initialized when first requested. A sink provider
// may be registered by the caller before the runner is first invoked.
func BuildContainer(logger *zap.Logger, fsys afero.Fs, cfg Config) *do.RootScope {
	injector := do.New()

	// Register values (eager - already created)
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, fsys)
	do.ProvideValue(injector, cfg)

	// Register runner (lazy - validated and built on first use)
	do.Provide(injector, func(i do.Injector) (*Runner, error) {
		var opts []Option
		sink, err := do.Invoke[engine.Sink](i)
		switch {
		case err == nil:
			opts = append(opts, WithSink(sink))
		case errors.Is(err, do.ErrServiceNotFound), errors.Is(err, do.ErrServiceNotMatch):
		default:
			return nil, fmt.Errorf("failed to create sink: %w", err)
		}
		return New(
			do.MustInvoke[*zap.Logger](i).Named("runner"),
			do.MustInvoke[afero.Fs](i),
			do.MustInvoke[Config](i),
			opts...,
		)
	})

	return injector
}
