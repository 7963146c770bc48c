package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-promo/internal/promotion"
)

// SkuPrice is the catalog price of a SKU in one shop and currency. A zero
// SalePrice means the SKU is not on sale.
type SkuPrice struct {
	SKU       string          `json:"sku"`
	ShopCode  string          `json:"shopCode"`
	Currency  string          `json:"currency"`
	ListPrice decimal.Decimal `json:"listPrice"`
	SalePrice decimal.Decimal `json:"salePrice"`
}

// Effective returns the pre-promotion price: the sale price when set, capped at
// the list price.
func (p SkuPrice) Effective() decimal.Decimal {
	if !p.SalePrice.IsPositive() || p.SalePrice.GreaterThan(p.ListPrice) {
		return p.ListPrice
	}
	return p.SalePrice
}

// Filter narrows a promotion listing. Empty fields match everything.
type Filter struct {
	Code     string
	ShopCode string
	Currency string
	Tag      string
	Scope    promotion.Scope
	Action   promotion.ActionType
	Enabled  *bool
	Limit    int
	Offset   int
}

// Match reports whether p satisfies the filter, ignoring paging.
func (f Filter) Match(p promotion.Promotion) bool {
	if f.Code != "" && !strings.EqualFold(f.Code, p.Code) {
		return false
	}
	if f.ShopCode != "" && !strings.EqualFold(f.ShopCode, p.ShopCode) {
		return false
	}
	if f.Currency != "" && !strings.EqualFold(f.Currency, p.Currency) {
		return false
	}
	if f.Tag != "" && !strings.EqualFold(f.Tag, p.Tag) {
		return false
	}
	if f.Scope != "" && f.Scope != p.Scope {
		return false
	}
	if f.Action != "" && f.Action != p.Action {
		return false
	}
	if f.Enabled != nil && *f.Enabled != p.Enabled {
		return false
	}
	return true
}

// Source is the system of record for promotions and SKU prices.
type Source interface {
	// EnabledPromotions returns enabled promotions of a shop and currency,
	// regardless of their date window.
	EnabledPromotions(ctx context.Context, shopCode, currency string) ([]promotion.Promotion, error)
	SkuPrices(ctx context.Context, shopCode, currency string, skus []string) ([]SkuPrice, error)
	ListPromotions(ctx context.Context, f Filter) ([]promotion.Promotion, error)
}

// MemorySource is an in-process Source used by tests and local tooling.
type MemorySource struct {
	mu     sync.RWMutex
	promos []promotion.Promotion
	prices map[string]SkuPrice
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{prices: make(map[string]SkuPrice)}
}

func priceKey(shopCode, currency, sku string) string {
	return strings.ToUpper(shopCode) + "|" + strings.ToUpper(currency) + "|" + sku
}

// PutPromotion inserts or replaces a promotion by code.
func (m *MemorySource) PutPromotion(p promotion.Promotion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.promos {
		if m.promos[i].Code == p.Code {
			m.promos[i] = p
			return
		}
	}
	m.promos = append(m.promos, p)
}

// PutPrice inserts or replaces a SKU price.
func (m *MemorySource) PutPrice(p SkuPrice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[priceKey(p.ShopCode, p.Currency, p.SKU)] = p
}

// EnabledPromotions implements Source.
func (m *MemorySource) EnabledPromotions(ctx context.Context, shopCode, currency string) ([]promotion.Promotion, error) {
	enabled := true
	return m.ListPromotions(ctx, Filter{ShopCode: shopCode, Currency: currency, Enabled: &enabled})
}

// SkuPrices implements Source.
func (m *MemorySource) SkuPrices(_ context.Context, shopCode, currency string, skus []string) ([]SkuPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SkuPrice, 0, len(skus))
	for _, sku := range skus {
		if p, ok := m.prices[priceKey(shopCode, currency, sku)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListPromotions implements Source.
func (m *MemorySource) ListPromotions(_ context.Context, f Filter) ([]promotion.Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]promotion.Promotion, 0, len(m.promos))
	for _, p := range m.promos {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return promotion.Less(out[i], out[j]) })
	return page(out, f.Offset, f.Limit), nil
}

func page(ps []promotion.Promotion, offset, limit int) []promotion.Promotion {
	if offset > 0 {
		if offset >= len(ps) {
			return []promotion.Promotion{}
		}
		ps = ps[offset:]
	}
	if limit > 0 && limit < len(ps) {
		ps = ps[:limit]
	}
	return ps
}
