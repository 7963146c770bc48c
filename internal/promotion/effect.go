package promotion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidActionContext is returned when a promotion's action parameter is
// non-numeric, out of range, or unsupported for its scope.
var ErrInvalidActionContext = errors.New("invalid action context")

var hundred = decimal.NewFromInt(100)

// Target is the amount an effect acts on. Qty is the line quantity for item
// scope and one for aggregate targets such as an order subtotal.
type Target struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Effect is the closed set of discount actions. Apply returns the new price at
// full precision and false when the effect does not apply to the target.
type Effect interface {
	Apply(t Target) (decimal.Decimal, bool)
	sealed()
}

// PercentOff discounts a price by a percentage in [0, 100].
type PercentOff struct {
	Percent decimal.Decimal
}

// AmountOff subtracts a fixed amount, flooring the result at zero.
type AmountOff struct {
	Amount decimal.Decimal
}

// BuyXGetY makes Free units out of every Buy+Free units of a line free.
type BuyXGetY struct {
	Buy  int64
	Free int64
}

func (PercentOff) sealed() {}
func (AmountOff) sealed()  {}
func (BuyXGetY) sealed()   {}

// Apply implements Effect.
func (e PercentOff) Apply(t Target) (decimal.Decimal, bool) {
	return t.Price.Mul(hundred.Sub(e.Percent)).Div(hundred), true
}

// Apply implements Effect.
func (e AmountOff) Apply(t Target) (decimal.Decimal, bool) {
	out := t.Price.Sub(e.Amount)
	if out.IsNegative() {
		return decimal.Zero, true
	}
	return out, true
}

// Apply implements Effect.
func (e BuyXGetY) Apply(t Target) (decimal.Decimal, bool) {
	units := t.Qty.Floor()
	if !units.IsPositive() {
		return t.Price, false
	}
	bundles := units.Div(decimal.NewFromInt(e.Buy + e.Free)).Floor()
	free := bundles.Mul(decimal.NewFromInt(e.Free))
	if !free.IsPositive() {
		return t.Price, false
	}
	return t.Price.Mul(t.Qty.Sub(free)).Div(t.Qty), true
}

// ParseEffect builds the effect for p from its action type and context.
func ParseEffect(p Promotion) (Effect, error) {
	raw := strings.TrimSpace(p.ActionContext)
	switch p.Action {
	case ActionPercentDiscount:
		pct, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
		if err != nil {
			return nil, fmt.Errorf("percent %q is not numeric: %w", raw, ErrInvalidActionContext)
		}
		if pct.IsNegative() {
			pct = decimal.Zero
		}
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		return PercentOff{Percent: pct}, nil
	case ActionFixedDiscount:
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("amount %q is not numeric: %w", raw, ErrInvalidActionContext)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("amount %s is negative: %w", amount, ErrInvalidActionContext)
		}
		return AmountOff{Amount: amount}, nil
	case ActionBuyXGetY:
		if p.Scope != ScopeItem {
			return nil, fmt.Errorf("buy x get y requires item scope, got %s: %w", p.Scope, ErrInvalidActionContext)
		}
		buy, free, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, fmt.Errorf("buy x get y context %q must be X:Y: %w", raw, ErrInvalidActionContext)
		}
		x, errX := strconv.ParseInt(strings.TrimSpace(buy), 10, 64)
		y, errY := strconv.ParseInt(strings.TrimSpace(free), 10, 64)
		if errX != nil || errY != nil || x <= 0 || y <= 0 {
			return nil, fmt.Errorf("buy x get y context %q must hold positive integers: %w", raw, ErrInvalidActionContext)
		}
		return BuyXGetY{Buy: x, Free: y}, nil
	}
	return nil, fmt.Errorf("unsupported action %q: %w", p.Action, ErrInvalidActionContext)
}

// Apply applies a single promotion to t and returns the new price with the
// promotion code as audit label. ok is false when the promotion has no effect
// on the target.
func Apply(p Promotion, t Target) (price decimal.Decimal, label string, ok bool, err error) {
	eff, err := ParseEffect(p)
	if err != nil {
		return t.Price, "", false, err
	}
	price, ok = eff.Apply(t)
	if !ok {
		return t.Price, "", false, nil
	}
	return price, p.Code, true, nil
}
