// Package pricing recomputes cart item prices and totals from a promotion
// snapshot. A pass is synchronous and in-memory: item scope first, then order
// scope over the updated cart, then shipping.
package pricing

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-promo/internal/cart"
	"github.com/noah-isme/backend-promo/internal/condition"
	"github.com/noah-isme/backend-promo/internal/obs"
	"github.com/noah-isme/backend-promo/internal/promotion"
)

var one = decimal.NewFromInt(1)

// Config groups Engine settings.
type Config struct {
	Stacking    promotion.Stacking
	OrderPolicy OrderPolicy
	Rounding    Rounding
	// Scale is the number of fractional digits of outward amounts. Zero rounds
	// to whole units; negative values fall back to two.
	Scale  int32
	Logger *zerolog.Logger
}

// Engine is the cart pricing pipeline. It is safe for concurrent use; each
// pass works on a caller-owned cart.
type Engine struct {
	selector    promotion.Selector
	orderPolicy OrderPolicy
	rounding    Rounding
	scale       int32
	logger      zerolog.Logger
}

// NewEngine constructs an Engine with its own condition cache.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		selector:    promotion.Selector{Conditions: condition.NewEvaluator(), Stacking: cfg.Stacking},
		orderPolicy: cfg.OrderPolicy,
		rounding:    cfg.Rounding,
		scale:       cfg.Scale,
		logger:      zerolog.Nop(),
	}
	if e.scale < 0 {
		e.scale = 2
	}
	if cfg.Logger != nil {
		e.logger = cfg.Logger.With().Str("component", "pricing").Logger()
	}
	return e
}

// Result reports what a pass did beyond the cart fields it wrote.
type Result struct {
	Applied int
	Skipped []promotion.Skip
}

// Recalculate implements cart.Pricer.
func (e *Engine) Recalculate(c *cart.Cart, promos []promotion.Promotion) {
	e.Price(c, promos)
}

// Price reprices c in place against promos. Given the same cart contents and
// the same promotions the output is identical.
func (e *Engine) Price(c *cart.Cart, promos []promotion.Promotion) Result {
	start := time.Now()
	pass := &pass{engine: e, cart: c, seen: make(map[string]struct{})}

	for i := range c.Items {
		if c.Items[i].SalePrice.GreaterThan(c.Items[i].ListPrice) {
			c.Items[i].SalePrice = c.Items[i].ListPrice
		}
	}
	pass.aggregate(func(it cart.Item) decimal.Decimal { return it.SalePrice })
	pass.items(promos)
	pass.aggregate(func(it cart.Item) decimal.Decimal { return it.Price })
	pass.order(promos)
	pass.shipping(promos)

	c.Total = c.SubTotal.Sub(c.OrderDiscount).Add(c.DeliveryCost)
	if c.Total.IsNegative() {
		c.Total = decimal.Zero
	}

	if obs.PricingRecalculations != nil {
		obs.PricingRecalculations.WithLabelValues(e.orderPolicy.String()).Inc()
	}
	if obs.PricingDuration != nil {
		obs.PricingDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
	return pass.result
}

func (e *Engine) round(d decimal.Decimal) decimal.Decimal {
	return e.rounding.round(d, e.scale)
}

type pass struct {
	engine *Engine
	cart   *cart.Cart
	result Result
	seen   map[string]struct{}
	// exclusive marks lines whose item promotions may not share the line.
	exclusive []bool
}

func (p *pass) facts() condition.CartFacts {
	return condition.CartFacts{
		SubTotal:     p.cart.SubTotal,
		ListSubTotal: p.cart.ListSubTotal,
		ItemCount:    len(p.cart.Items),
		TotalQty:     p.cart.TotalQty(),
		SKUs:         p.cart.SKUs(),
	}
}

func (p *pass) binding(item *condition.ItemFacts) condition.Binding {
	return condition.Binding{Item: item, Cart: p.facts(), ShopCode: p.cart.ShopCode, Currency: p.cart.Currency}
}

// aggregate recomputes both subtotals from rounded line totals, taking the
// post-promotion unit price from price.
func (p *pass) aggregate(price func(cart.Item) decimal.Decimal) {
	list, sub := decimal.Zero, decimal.Zero
	for _, it := range p.cart.Items {
		list = list.Add(p.engine.round(it.ListPrice.Mul(it.Qty)))
		sub = sub.Add(p.engine.round(price(it).Mul(it.Qty)))
	}
	p.cart.ListSubTotal = list
	p.cart.SubTotal = sub
}

func (p *pass) items(promos []promotion.Promotion) {
	facts := p.facts()
	p.exclusive = make([]bool, len(p.cart.Items))
	for i := range p.cart.Items {
		it := &p.cart.Items[i]
		b := condition.Binding{Cart: facts, ShopCode: p.cart.ShopCode, Currency: p.cart.Currency}
		b.Item = &condition.ItemFacts{
			SKU:       it.SKU,
			Qty:       it.Qty,
			ListPrice: it.ListPrice,
			SalePrice: it.SalePrice,
			Price:     it.SalePrice,
		}
		sel := p.engine.selector.Select(promos, promotion.ScopeItem, b, promotion.Target{Price: it.SalePrice, Qty: it.Qty})
		p.record(promotion.ScopeItem, sel)

		it.Price = clamp(p.engine.round(sel.Price), it.SalePrice)
		it.AppliedPromotions = sel.Labels()
		it.PromoApplied = len(sel.Applied) > 0
		p.exclusive[i] = !combinable(sel.Applied)
	}
}

func combinable(ps []promotion.Promotion) bool {
	for _, pr := range ps {
		if !pr.CanBeCombined {
			return false
		}
	}
	return true
}

func (p *pass) order(promos []promotion.Promotion) {
	c := p.cart
	c.OrderDiscount = decimal.Zero
	sel := p.engine.selector.Select(promos, promotion.ScopeOrder, p.binding(nil), promotion.Target{Price: c.SubTotal, Qty: one})
	p.record(promotion.ScopeOrder, sel)
	c.OrderPromotions = sel.Labels()
	if len(sel.Applied) == 0 {
		return
	}
	discounted := clamp(sel.Price, c.SubTotal)

	if p.engine.orderPolicy == OrderDistribute {
		p.distribute(sel)
		return
	}
	c.OrderDiscount = p.engine.round(c.SubTotal.Sub(discounted))
}

// distribute folds the order selection into the line prices. A line already
// holding a non-combinable item promotion is left alone, and a non-combinable
// order promotion only reaches lines without item promotions. The applied
// order promotions are re-priced against the subtotal of the lines they reach.
func (p *pass) distribute(sel promotion.Selection) {
	c := p.cart
	orderExclusive := !combinable(sel.Applied)
	reach := make([]bool, len(c.Items))
	base := decimal.Zero
	for i, it := range c.Items {
		if p.exclusive[i] || (orderExclusive && len(it.AppliedPromotions) > 0) {
			continue
		}
		reach[i] = true
		base = base.Add(p.engine.round(it.Price.Mul(it.Qty)))
	}
	if !base.IsPositive() {
		c.OrderPromotions = nil
		return
	}

	resel := p.engine.selector.Select(sel.Applied, promotion.ScopeOrder, p.binding(nil), promotion.Target{Price: base, Qty: one})
	if len(resel.Applied) == 0 {
		c.OrderPromotions = nil
		return
	}
	c.OrderPromotions = resel.Labels()
	ratio := clamp(resel.Price, base).Div(base)
	for i := range c.Items {
		if !reach[i] {
			continue
		}
		it := &c.Items[i]
		it.Price = clamp(p.engine.round(it.Price.Mul(ratio)), it.SalePrice)
		it.AppliedPromotions = append(it.AppliedPromotions, c.OrderPromotions...)
		it.PromoApplied = true
	}
	p.aggregate(func(it cart.Item) decimal.Decimal { return it.Price })
}

func (p *pass) shipping(promos []promotion.Promotion) {
	c := p.cart
	sel := p.engine.selector.Select(promos, promotion.ScopeShipping, p.binding(nil), promotion.Target{Price: c.DeliveryListCost, Qty: one})
	p.record(promotion.ScopeShipping, sel)
	c.DeliveryCost = clamp(p.engine.round(sel.Price), c.DeliveryListCost)
	c.ShippingPromotions = sel.Labels()
}

// record counts applied promotions and logs each skipped promotion once per pass.
func (p *pass) record(scope promotion.Scope, sel promotion.Selection) {
	p.result.Applied += len(sel.Applied)
	if len(sel.Applied) > 0 && obs.PromotionsApplied != nil {
		obs.PromotionsApplied.WithLabelValues(string(scope)).Add(float64(len(sel.Applied)))
	}
	for _, skip := range sel.Skipped {
		key := string(scope) + "|" + skip.Promotion.Code
		if _, dup := p.seen[key]; dup {
			continue
		}
		p.seen[key] = struct{}{}
		p.result.Skipped = append(p.result.Skipped, skip)

		reason := "action"
		if errors.Is(skip.Err, condition.ErrCondition) {
			reason = "condition"
		}
		if obs.PromotionsSkipped != nil {
			obs.PromotionsSkipped.WithLabelValues(string(scope), reason).Inc()
		}
		p.engine.logger.Warn().
			Err(skip.Err).
			Str("cart_id", p.cart.ID).
			Str("scope", string(scope)).
			Str("promotion_code", skip.Promotion.Code).
			Str("expression", skip.Promotion.EligibilityCondition).
			Str("action_context", skip.Promotion.ActionContext).
			Msg("promotion_skipped")
	}
}

// clamp bounds a price to [0, ceiling].
func clamp(d, ceiling decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(ceiling) {
		return ceiling
	}
	return d
}
