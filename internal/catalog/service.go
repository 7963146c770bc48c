// Package catalog supplies promotion snapshots and SKU prices to the pricing
// engine. Reads go through a Redis snapshot cache, a timeout and a circuit
// breaker; any failure surfaces as ErrCatalogUnavailable.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-promo/internal/cache"
	"github.com/noah-isme/backend-promo/internal/promotion"
	"github.com/noah-isme/backend-promo/internal/resilience"
)

// ErrCatalogUnavailable is returned when promotions or prices cannot be fetched.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// ErrInvalidFilter is returned for malformed listing parameters.
var ErrInvalidFilter = errors.New("invalid filter")

// Service orchestrates the catalog source, snapshot caching and fault isolation.
type Service struct {
	source  Source
	cache   *Cache
	breaker *resilience.Breaker
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source  Source
	Cache   *Cache
	Breaker *resilience.Breaker
	Timeout time.Duration
	Logger  *zerolog.Logger
	Now     func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog source is required")
	}
	svc := &Service{
		source:  cfg.Source,
		cache:   cfg.Cache,
		breaker: cfg.Breaker,
		timeout: cfg.Timeout,
		logger:  zerolog.Nop(),
		now:     cfg.Now,
	}
	if cfg.Logger != nil {
		svc.logger = cfg.Logger.With().Str("component", "catalog").Logger()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// guard runs fn under the configured timeout and breaker. A timeout counts as
// a catalog failure; cancellation by the caller does not.
func (s *Service) guard(ctx context.Context, op string, fn func(context.Context) error) error {
	run := func(ctx context.Context) error {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return fn(ctx)
	}
	var err error
	if s.breaker != nil {
		err = s.breaker.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrCatalogUnavailable, err)
	}
	return nil
}

// ActivePromotions returns the enabled promotions of a shop and currency whose
// date window contains asOf, ordered by rank then code. Structurally invalid
// promotions are dropped and logged.
func (s *Service) ActivePromotions(ctx context.Context, shopCode, currency string, asOf time.Time) ([]promotion.Promotion, error) {
	shopCode, currency = NormaliseCode(shopCode), NormaliseCode(currency)
	enabled, err := s.enabledPromotions(ctx, shopCode, currency)
	if err != nil {
		return nil, err
	}
	out := make([]promotion.Promotion, 0, len(enabled))
	for _, p := range enabled {
		if err := p.Validate(); err != nil {
			s.logger.Warn().Err(err).Str("promotion_code", p.Code).Msg("promotion_invalid")
			continue
		}
		if p.ActiveAt(asOf) {
			out = append(out, p)
		}
	}
	promotion.Sort(out)
	return out, nil
}

func (s *Service) enabledPromotions(ctx context.Context, shopCode, currency string) ([]promotion.Promotion, error) {
	key := cache.KeyPromotions(shopCode, currency)
	var cached []promotion.Promotion
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("promotion_cache_read_failed")
	}
	if hit {
		return cached, nil
	}
	var fetched []promotion.Promotion
	err = s.guard(ctx, "fetch promotions", func(ctx context.Context) error {
		var ferr error
		fetched, ferr = s.source.EnabledPromotions(ctx, shopCode, currency)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		fetched = []promotion.Promotion{}
	}
	if err := s.cache.SetJSON(ctx, key, fetched); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("promotion_cache_write_failed")
	}
	return fetched, nil
}

// SkuPrices returns the prices of the requested SKUs keyed by SKU. SKUs without
// a price are absent from the result.
func (s *Service) SkuPrices(ctx context.Context, shopCode, currency string, skus []string) (map[string]SkuPrice, error) {
	out := make(map[string]SkuPrice, len(skus))
	if len(skus) == 0 {
		return out, nil
	}
	shopCode, currency = NormaliseCode(shopCode), NormaliseCode(currency)
	var rows []SkuPrice
	err := s.guard(ctx, "fetch prices", func(ctx context.Context) error {
		var ferr error
		rows, ferr = s.source.SkuPrices(ctx, shopCode, currency, skus)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.SKU] = p
	}
	return out, nil
}

// ListPromotions lists promotions by parameters, bypassing the snapshot cache.
func (s *Service) ListPromotions(ctx context.Context, f Filter) ([]promotion.Promotion, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return nil, fmt.Errorf("negative paging: %w", ErrInvalidFilter)
	}
	f.ShopCode, f.Currency = NormaliseCode(f.ShopCode), NormaliseCode(f.Currency)
	var out []promotion.Promotion
	err := s.guard(ctx, "list promotions", func(ctx context.Context) error {
		var ferr error
		out, ferr = s.source.ListPromotions(ctx, f)
		return ferr
	})
	if out == nil && err == nil {
		out = []promotion.Promotion{}
	}
	return out, err
}

// Warm refreshes the cached promotion snapshot of a shop and currency.
func (s *Service) Warm(ctx context.Context, shopCode, currency string) (int, error) {
	shopCode, currency = NormaliseCode(shopCode), NormaliseCode(currency)
	if err := s.Invalidate(ctx, shopCode, currency); err != nil {
		return 0, err
	}
	promos, err := s.enabledPromotions(ctx, shopCode, currency)
	if err != nil {
		return 0, err
	}
	s.logger.Debug().Str("shop_code", shopCode).Str("currency", currency).Int("count", len(promos)).Msg("promotion_cache_warmed")
	return len(promos), nil
}

// Invalidate drops the cached promotion snapshot of a shop and currency.
func (s *Service) Invalidate(ctx context.Context, shopCode, currency string) error {
	return s.cache.Delete(ctx, cache.KeyPromotions(NormaliseCode(shopCode), NormaliseCode(currency)))
}

// NormaliseCode returns the canonical form of a shop or currency code. Codes
// are stored and looked up upper-case.
func NormaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Target identifies a shop and currency pair.
type Target struct {
	ShopCode string
	Currency string
}

// ParseTargets parses a comma separated list of SHOP:CURRENCY pairs.
func ParseTargets(raw string) ([]Target, error) {
	var out []Target
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		shop, currency, ok := strings.Cut(part, ":")
		shop, currency = NormaliseCode(shop), NormaliseCode(currency)
		if !ok || shop == "" || currency == "" {
			return nil, fmt.Errorf("target %q must be SHOP:CURRENCY", part)
		}
		out = append(out, Target{ShopCode: shop, Currency: currency})
	}
	return out, nil
}
