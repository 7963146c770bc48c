// Package cart owns the live shopping cart. Every mutating command reprices the
// whole cart from current catalog prices and a promotion snapshot fetched once
// per command.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-promo/internal/cache"
	"github.com/noah-isme/backend-promo/internal/catalog"
	"github.com/noah-isme/backend-promo/internal/events"
	"github.com/noah-isme/backend-promo/internal/promotion"
)

// Catalog supplies the prices and promotions a cart is priced against.
type Catalog interface {
	ActivePromotions(ctx context.Context, shopCode, currency string, asOf time.Time) ([]promotion.Promotion, error)
	SkuPrices(ctx context.Context, shopCode, currency string, skus []string) (map[string]catalog.SkuPrice, error)
}

// Pricer recomputes item prices and totals in place.
type Pricer interface {
	Recalculate(c *Cart, promos []promotion.Promotion)
}

// Locker serialises commands against one cart.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID string, payload any) (events.Event, error)
}

// Service encapsulates cart commands.
type Service struct {
	Store   Store
	Catalog Catalog
	Pricer  Pricer
	Locker  Locker
	Events  Emitter
	TTL     time.Duration
	LockTTL time.Duration
	Now     func() time.Time
	NewID   func() string
	Logger  zerolog.Logger
}

var tracer = otel.Tracer("cart")

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) configured() error {
	if s == nil || s.Store == nil || s.Catalog == nil || s.Pricer == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Create starts an empty cart for a shop and currency.
func (s *Service) Create(ctx context.Context, shopCode, currency string) (*Cart, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	c, err := New(s.newID(), shopCode, currency, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Store.Save(ctx, c, s.ttl()); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	s.Logger.Info().Str("cart_id", c.ID).Str("shop_code", c.ShopCode).Str("currency", c.Currency).Msg("cart_created")
	return c, nil
}

// Get returns the stored cart without repricing it.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, id)
}

// SetShop moves the cart to another shop.
func (s *Service) SetShop(ctx context.Context, id, shopCode string) (*Cart, error) {
	return s.mutate(ctx, id, "set_shop", func(c *Cart) error { return c.SetShop(shopCode) })
}

// ChangeCurrency switches the cart currency.
func (s *Service) ChangeCurrency(ctx context.Context, id, currency string) (*Cart, error) {
	return s.mutate(ctx, id, "change_currency", func(c *Cart) error { return c.SetCurrency(currency) })
}

// SetQty sets the quantity of a SKU; zero removes the line.
func (s *Service) SetQty(ctx context.Context, id, sku string, qty decimal.Decimal) (*Cart, error) {
	return s.mutate(ctx, id, "set_qty", func(c *Cart) error { return c.SetQty(sku, qty) })
}

// AddQty increments the quantity of a SKU.
func (s *Service) AddQty(ctx context.Context, id, sku string, qty decimal.Decimal) (*Cart, error) {
	return s.mutate(ctx, id, "add_qty", func(c *Cart) error { return c.AddQty(sku, qty) })
}

// RemoveSku drops a line from the cart.
func (s *Service) RemoveSku(ctx context.Context, id, sku string) (*Cart, error) {
	return s.mutate(ctx, id, "remove_sku", func(c *Cart) error { return c.Remove(sku) })
}

// Clear drops every line from the cart.
func (s *Service) Clear(ctx context.Context, id string) (*Cart, error) {
	return s.mutate(ctx, id, "clear", func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// SetDeliveryCost sets the undiscounted delivery cost.
func (s *Service) SetDeliveryCost(ctx context.Context, id string, amount decimal.Decimal) (*Cart, error) {
	return s.mutate(ctx, id, "set_delivery_cost", func(c *Cart) error { return c.SetDeliveryCost(amount) })
}

// Recalculate reprices the cart without changing its contents.
func (s *Service) Recalculate(ctx context.Context, id string) (*Cart, error) {
	return s.mutate(ctx, id, "recalculate", func(*Cart) error { return nil })
}

// mutate applies fn to a copy of the stored cart, reprices the copy and
// replaces the stored cart only when every step succeeded.
func (s *Service) mutate(ctx context.Context, id, op string, fn func(*Cart) error) (*Cart, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "cart."+op)
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", id))

	var (
		out     *Cart
		entered bool
	)
	run := func(ctx context.Context) error {
		entered = true
		stored, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		work := stored.Clone()
		if err := fn(work); err != nil {
			return err
		}
		if err := s.reprice(ctx, work); err != nil {
			return err
		}
		work.Version = stored.Version + 1
		work.UpdatedAt = s.now()
		if err := s.Store.Save(ctx, work, s.ttl()); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		out = work
		return nil
	}

	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, cache.KeyCartLock(id), s.lockTTL(), run)
		if err != nil && !entered {
			err = fmt.Errorf("%w: %w", ErrBusy, err)
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.Logger.Warn().Err(err).Str("cart_id", id).Str("command", op).Msg("cart_command_failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("cart.version", out.Version), attribute.Int("cart.items", len(out.Items)))
	s.Logger.Info().
		Str("cart_id", out.ID).
		Str("command", op).
		Int64("version", out.Version).
		Int("items", len(out.Items)).
		Str("sub_total", out.SubTotal.String()).
		Str("total", out.Total.String()).
		Msg("cart_recalculated")
	s.emit(ctx, op, out)
	return out, nil
}

func (s *Service) emit(ctx context.Context, op string, c *Cart) {
	if s.Events == nil {
		return
	}
	topic := events.TopicCartPriced
	if op == "clear" {
		topic = events.TopicCartCleared
	}
	if _, err := s.Events.Emit(ctx, topic, c.ID, c); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", c.ID).Str("topic", topic).Msg("cart_event_failed")
	}
}

// reprice refreshes catalog prices of every line and runs the pricing pipeline
// against a single promotion snapshot.
func (s *Service) reprice(ctx context.Context, c *Cart) error {
	skus := c.SKUs()
	prices, err := s.Catalog.SkuPrices(ctx, c.ShopCode, c.Currency, skus)
	if err != nil {
		return err
	}
	for i := range c.Items {
		p, ok := prices[c.Items[i].SKU]
		if !ok {
			return fmt.Errorf("%s in %s/%s: %w", c.Items[i].SKU, c.ShopCode, c.Currency, ErrSkuNotPriced)
		}
		c.Items[i].ListPrice = p.ListPrice
		c.Items[i].SalePrice = p.Effective()
	}
	promos, err := s.Catalog.ActivePromotions(ctx, c.ShopCode, c.Currency, s.now())
	if err != nil {
		return err
	}
	s.Pricer.Recalculate(c, promos)
	if len(c.Items) == 0 {
		c.State = StateEmpty
	} else {
		c.State = StateRecalculated
	}
	return nil
}
