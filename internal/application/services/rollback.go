package services

import (
	"context"
	"log/slog"
)

// compensation is the undo log of a manual saga. Steps that commit a side
// effect register their reversal here; on a later failure the whole log runs
// in reverse. Undo failures are logged and skipped so every remaining step
// still gets its chance to run.
type compensation struct {
	logger *slog.Logger
	steps  []compensationStep
}

type compensationStep struct {
	name string
	undo func(context.Context) error
}

func newCompensation(logger *slog.Logger) *compensation {
	return &compensation{logger: logger}
}

func (c *compensation) add(name string, undo func(context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, undo: undo})
}

func (c *compensation) run(ctx context.Context) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			c.logger.Error("compensation step failed",
				"step", step.name,
				"error", err,
			)
		}
	}
}
