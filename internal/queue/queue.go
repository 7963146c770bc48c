// Package queue moves follow-up work off the request path: priced cart
// snapshots and promotion cache warm-up run as asynq tasks.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-promo/internal/events"
)

const (
	// TypeCartSnapshot persists a priced cart version.
	TypeCartSnapshot = "cart:snapshot"
	// TypePromotionsWarm refreshes cached promotion snapshots.
	TypePromotionsWarm = "promotions:warm"

	// DefaultQueue is the asynq queue used when none is configured.
	DefaultQueue = "default"
)

// TaskClient is the subset of asynq.Client used to enqueue tasks.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer turns domain events into asynq tasks. It implements
// events.Publisher.
type Enqueuer struct {
	Client    TaskClient
	Queue     string
	MaxRetry  int
	Retention time.Duration
}

// WarmPayload names the shop and currency pairs to warm. An empty list means
// the worker's configured targets.
type WarmPayload struct {
	Targets []WarmTarget `json:"targets,omitempty"`
}

// WarmTarget is one shop and currency pair.
type WarmTarget struct {
	ShopCode string `json:"shopCode"`
	Currency string `json:"currency"`
}

func (e Enqueuer) queue() string {
	if e.Queue == "" {
		return DefaultQueue
	}
	return e.Queue
}

func (e Enqueuer) options(extra ...asynq.Option) []asynq.Option {
	opts := []asynq.Option{asynq.Queue(e.queue())}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	if e.Retention > 0 {
		opts = append(opts, asynq.Retention(e.Retention))
	}
	return append(opts, extra...)
}

// Publish implements events.Publisher. Events on topics without a task mapping
// are ignored. The event ID doubles as the task ID so replays of the same
// event enqueue at most once.
func (e Enqueuer) Publish(ctx context.Context, ev events.Event) error {
	if e.Client == nil {
		return errors.New("queue: task client not configured")
	}
	var typ string
	switch ev.Topic {
	case events.TopicCartPriced, events.TopicCartCleared:
		typ = TypeCartSnapshot
	default:
		return nil
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("queue: encode event: %w", err)
	}
	_, err = e.Client.EnqueueContext(ctx, asynq.NewTask(typ, raw), e.options(asynq.TaskID(ev.ID))...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("queue: enqueue %s: %w", typ, err)
	}
	return nil
}

// EnqueueWarm schedules a promotion cache warm-up.
func (e Enqueuer) EnqueueWarm(ctx context.Context, payload WarmPayload) error {
	if e.Client == nil {
		return errors.New("queue: task client not configured")
	}
	task, err := NewWarmTask(payload)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task, e.options()...); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", TypePromotionsWarm, err)
	}
	return nil
}

// NewWarmTask builds a warm-up task, used by the enqueuer and the scheduler.
func NewWarmTask(payload WarmPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: encode warm payload: %w", err)
	}
	return asynq.NewTask(TypePromotionsWarm, raw), nil
}
