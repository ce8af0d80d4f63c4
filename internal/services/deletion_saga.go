package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SagaStep is one named, independently logged unit of a multi-step operation
type SagaStep struct {
	Name string
	Run  func(ctx context.Context) error
}

// SagaStepError reports which step stopped a saga
type SagaStepError struct {
	Step string
	Err  error
}

func (e *SagaStepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *SagaStepError) Unwrap() error {
	return e.Err
}

// runSaga executes steps in order and stops at the first failure. Steps
// after the failing one never run.
func runSaga(ctx context.Context, logger *slog.Logger, name string, steps []SagaStep) error {
	for i, step := range steps {
		start := time.Now()
		logger.InfoContext(ctx, "saga step started",
			slog.String("saga", name),
			slog.String("step", step.Name),
			slog.Int("index", i),
		)

		if err := step.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "saga step failed",
				slog.String("saga", name),
				slog.String("step", step.Name),
				slog.Any("error", err),
			)
			return &SagaStepError{Step: step.Name, Err: err}
		}

		logger.InfoContext(ctx, "saga step completed",
			slog.String("saga", name),
			slog.String("step", step.Name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}
