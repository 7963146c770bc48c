package promotion

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-promo/internal/condition"
)

// Stacking controls how combinable promotions accumulate on one target.
type Stacking int

const (
	// StackChained applies each combinable effect to the previous output.
	StackChained Stacking = iota
	// StackAdditive computes every effect against the undiscounted price and
	// subtracts the summed discounts.
	StackAdditive
)

// ParseStacking maps a configuration value to a Stacking policy.
func ParseStacking(value string) (Stacking, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "chained":
		return StackChained, nil
	case "additive":
		return StackAdditive, nil
	}
	return StackChained, fmt.Errorf("unknown stacking policy %q", value)
}

func (s Stacking) String() string {
	if s == StackAdditive {
		return "additive"
	}
	return "chained"
}

// Skip records a promotion excluded from a pass because its condition or
// action context could not be evaluated.
type Skip struct {
	Promotion Promotion
	Err       error
}

// Selection is the outcome of selecting promotions for one target.
type Selection struct {
	// Applied lists the promotions in application order.
	Applied []Promotion
	// Price is the resulting price at full precision.
	Price   decimal.Decimal
	Skipped []Skip
}

// Labels returns the codes of the applied promotions.
func (s Selection) Labels() []string { return Codes(s.Applied) }

// Selector picks the best legal combination of promotions for a target.
type Selector struct {
	Conditions *condition.Evaluator
	Stacking   Stacking
}

type candidate struct {
	promo  Promotion
	effect Effect
}

type outcome struct {
	applied []Promotion
	price   decimal.Decimal
}

// Select filters promotions by scope and eligibility, orders them by rank then
// code, and returns whichever of the combinable group or a single
// non-combinable promotion yields the lowest price.
func (s *Selector) Select(promos []Promotion, scope Scope, b condition.Binding, t Target) Selection {
	sel := Selection{Price: t.Price}
	eligible := s.eligible(promos, scope, b, &sel)
	if len(eligible) == 0 {
		return sel
	}

	var group []candidate
	var singles []candidate
	for _, c := range eligible {
		if c.promo.CanBeCombined {
			group = append(group, c)
		} else {
			singles = append(singles, c)
		}
	}

	var best *outcome
	consider := func(o outcome) {
		if len(o.applied) == 0 {
			return
		}
		if best == nil || better(o, *best) {
			cp := o
			best = &cp
		}
	}
	if len(group) > 0 {
		consider(s.stack(group, t))
	}
	for _, c := range singles {
		consider(s.stack([]candidate{c}, t))
	}
	if best != nil {
		sel.Applied = best.applied
		sel.Price = best.price
	}
	return sel
}

func (s *Selector) eligible(promos []Promotion, scope Scope, b condition.Binding, sel *Selection) []candidate {
	ordered := make([]Promotion, 0, len(promos))
	for _, p := range promos {
		if p.Scope == scope {
			ordered = append(ordered, p)
		}
	}
	Sort(ordered)

	seen := make(map[string]struct{}, len(ordered))
	out := make([]candidate, 0, len(ordered))
	for _, p := range ordered {
		if _, dup := seen[p.Code]; dup {
			continue
		}
		seen[p.Code] = struct{}{}
		ok, err := s.Conditions.Evaluate(p.EligibilityCondition, b)
		if err != nil {
			sel.Skipped = append(sel.Skipped, Skip{Promotion: p, Err: err})
			continue
		}
		if !ok {
			continue
		}
		eff, err := ParseEffect(p)
		if err != nil {
			sel.Skipped = append(sel.Skipped, Skip{Promotion: p, Err: err})
			continue
		}
		out = append(out, candidate{promo: p, effect: eff})
	}
	return out
}

// stack applies the candidates in order according to the stacking policy.
// Effects that do not apply to the target are left out of the outcome.
func (s *Selector) stack(cs []candidate, t Target) outcome {
	o := outcome{price: t.Price}
	if s.Stacking == StackAdditive {
		discount := decimal.Zero
		for _, c := range cs {
			next, ok := c.effect.Apply(t)
			if !ok {
				continue
			}
			discount = discount.Add(t.Price.Sub(next))
			o.applied = append(o.applied, c.promo)
		}
		o.price = t.Price.Sub(discount)
		if o.price.IsNegative() {
			o.price = decimal.Zero
		}
		return o
	}
	for _, c := range cs {
		next, ok := c.effect.Apply(Target{Price: o.price, Qty: t.Qty})
		if !ok {
			continue
		}
		o.price = next
		o.applied = append(o.applied, c.promo)
	}
	return o
}

// better reports whether a beats b: lower price first, then the lead
// promotion's rank and code.
func better(a, b outcome) bool {
	if cmp := a.price.Cmp(b.price); cmp != 0 {
		return cmp < 0
	}
	return Less(a.applied[0], b.applied[0])
}
