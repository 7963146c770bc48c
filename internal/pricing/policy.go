package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderPolicy decides how order-scope promotions affect the cart.
type OrderPolicy int

const (
	// OrderAdjustment records order promotions as a separate discount on the
	// cart total.
	OrderAdjustment OrderPolicy = iota
	// OrderDistribute spreads the order discount over item prices
	// proportionally to each line's contribution.
	OrderDistribute
)

// ParseOrderPolicy maps a configuration value to an OrderPolicy.
func ParseOrderPolicy(value string) (OrderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "adjustment":
		return OrderAdjustment, nil
	case "distribute":
		return OrderDistribute, nil
	}
	return OrderAdjustment, fmt.Errorf("unknown order policy %q", value)
}

func (p OrderPolicy) String() string {
	if p == OrderDistribute {
		return "distribute"
	}
	return "adjustment"
}

// Rounding is the rounding mode applied to outward amounts.
type Rounding int

const (
	RoundHalfUp Rounding = iota
	RoundHalfEven
)

// ParseRounding maps a configuration value to a Rounding mode.
func ParseRounding(value string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "half_up":
		return RoundHalfUp, nil
	case "half_even", "bankers":
		return RoundHalfEven, nil
	}
	return RoundHalfUp, fmt.Errorf("unknown rounding mode %q", value)
}

func (r Rounding) round(d decimal.Decimal, scale int32) decimal.Decimal {
	if r == RoundHalfEven {
		return d.RoundBank(scale)
	}
	return d.Round(scale)
}
