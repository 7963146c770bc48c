package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-promo/internal/obs"
)

// Instrument counts task outcomes and logs failures.
func Instrument(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			result := "success"
			switch {
			case err == nil:
			case errors.Is(err, asynq.SkipRetry):
				result = "dropped"
			default:
				result = "retry"
			}
			if obs.QueueTasksTotal != nil {
				obs.QueueTasksTotal.WithLabelValues(t.Type(), result).Inc()
			}
			if err != nil {
				logger.Warn().Err(err).Str("task_type", t.Type()).Str("result", result).
					Dur("duration", time.Since(start)).Msg("task_failed")
			}
			return err
		})
	}
}
