package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-promo/internal/cart"
	"github.com/noah-isme/backend-promo/internal/catalog"
	"github.com/noah-isme/backend-promo/internal/events"
)

// SnapshotSaver persists priced carts.
type SnapshotSaver interface {
	Save(ctx context.Context, c *cart.Cart) error
}

// Warmer refreshes the promotion snapshot of one shop and currency.
type Warmer interface {
	Warm(ctx context.Context, shopCode, currency string) (int, error)
}

// Handlers processes queue tasks.
type Handlers struct {
	Snapshots SnapshotSaver
	Warmer    Warmer
	Targets   []catalog.Target
	Logger    zerolog.Logger
}

// Register binds every task type to mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeCartSnapshot, h.HandleCartSnapshot)
	mux.HandleFunc(TypePromotionsWarm, h.HandlePromotionsWarm)
}

// HandleCartSnapshot stores the cart carried by a cart event.
func (h *Handlers) HandleCartSnapshot(ctx context.Context, t *asynq.Task) error {
	if h.Snapshots == nil {
		return fmt.Errorf("snapshot store not configured: %w", asynq.SkipRetry)
	}
	var ev events.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}
	var c cart.Cart
	if err := json.Unmarshal(ev.Payload, &c); err != nil {
		return fmt.Errorf("decode cart %s: %v: %w", ev.AggregateID, err, asynq.SkipRetry)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("event %s carries no cart id: %w", ev.ID, asynq.SkipRetry)
	}
	if err := h.Snapshots.Save(ctx, &c); err != nil {
		return err
	}
	h.Logger.Debug().Str("cart_id", c.ID).Int64("version", c.Version).Str("topic", ev.Topic).Msg("cart_snapshot_saved")
	return nil
}

// HandlePromotionsWarm refreshes the promotion cache for the requested or
// configured targets. Failures for one target do not stop the others.
func (h *Handlers) HandlePromotionsWarm(ctx context.Context, t *asynq.Task) error {
	if h.Warmer == nil {
		return fmt.Errorf("promotion warmer not configured: %w", asynq.SkipRetry)
	}
	var payload WarmPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode warm payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	targets := h.Targets
	if len(payload.Targets) > 0 {
		targets = make([]catalog.Target, 0, len(payload.Targets))
		for _, tg := range payload.Targets {
			targets = append(targets, catalog.Target{ShopCode: tg.ShopCode, Currency: tg.Currency})
		}
	}
	var joined error
	for _, tg := range targets {
		n, err := h.Warmer.Warm(ctx, tg.ShopCode, tg.Currency)
		if err != nil {
			h.Logger.Warn().Err(err).Str("shop_code", tg.ShopCode).Str("currency", tg.Currency).Msg("promotion_warm_failed")
			joined = errors.Join(joined, fmt.Errorf("warm %s/%s: %w", tg.ShopCode, tg.Currency, err))
			continue
		}
		h.Logger.Info().Str("shop_code", tg.ShopCode).Str("currency", tg.Currency).Int("promotions", n).Msg("promotion_warmed")
	}
	return joined
}
