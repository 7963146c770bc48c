package queue

import (
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-promo/internal/resilience"
)

// Logger adapts zerolog to asynq's logger interface.
type Logger struct {
	L zerolog.Logger
}

var _ asynq.Logger = Logger{}

func (l Logger) Debug(args ...any) { l.L.Debug().Msg(fmt.Sprint(args...)) }
func (l Logger) Info(args ...any)  { l.L.Info().Msg(fmt.Sprint(args...)) }
func (l Logger) Warn(args ...any)  { l.L.Warn().Msg(fmt.Sprint(args...)) }
func (l Logger) Error(args ...any) { l.L.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs and exits, matching asynq's default logger.
func (l Logger) Fatal(args ...any) {
	l.L.Error().Msg(fmt.Sprint(args...))
	os.Exit(1)
}

// RetryDelay returns an asynq retry delay func with exponential backoff
// from base, jittered by jitter and capped at ceiling.
func RetryDelay(base, ceiling time.Duration, jitter float64) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		d := resilience.Backoff(base, n+1, jitter)
		if ceiling > 0 && d > ceiling {
			return ceiling
		}
		return d
	}
}
