package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Chain holds the stages opened for one operation. Stages are added in the
// order they are opened and released in strict reverse order.
type Chain struct {
	name   string
	logger *zap.Logger
	stages []Stage
	closed bool
}

func NewChain(logger *zap.Logger, name string) *Chain {
	return &Chain{
		name:   name,
		logger: logger,
	}
}

func (c *Chain) Name() string {
	return c.name
}

// Add registers an opened stage. Adding to a closed chain closes the stage
// immediately so that it is never leaked.
func (c *Chain) Add(ctx context.Context, stage Stage) error {
	if c.closed {
		return errors.Join(
			fmt.Errorf("chain %s is closed, cannot add stage %s", c.name, stage.Name()),
			stage.Close(ctx),
		)
	}

	for _, s := range c.stages {
		if s == stage {
			return fmt.Errorf("stage %s already in chain %s", stage.Name(), c.name)
		}
	}

	c.stages = append(c.stages, stage)
	c.logger.Debug("stage opened",
		zap.String("chain", c.name),
		zap.String("stage", stage.Name()),
		zap.String("stage_kind", stage.Kind()),
		zap.Int("position", len(c.stages)-1),
	)
	return nil
}

func (c *Chain) Len() int {
	return len(c.stages)
}

func (c *Chain) Stages() []Stage {
	return c.stages
}

// Close releases every stage in reverse order of Add. All stages are closed
// even when some fail; the failures are joined. Closing twice is a no-op.
func (c *Chain) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs error
	for i := len(c.stages) - 1; i >= 0; i-- {
		stage := c.stages[i]
		if err := stage.Close(ctx); err != nil {
			c.logger.Debug("failed to close stage",
				zap.String("chain", c.name),
				zap.String("stage", stage.Name()),
				zap.String("stage_kind", stage.Kind()),
				zap.Error(err),
			)
			errs = errors.Join(errs, fmt.Errorf("failed to close stage '%s': %w", stage.Name(), err))
			continue
		}
		c.logger.Debug("stage closed", zap.String("chain", c.name), zap.String("stage", stage.Name()))
	}

	return errs
}
