// Package promotion models promotions, their discount effects and the
// best-deal selection of which promotions apply to a price target.
package promotion

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidPromotion is returned when a promotion definition is incomplete.
var ErrInvalidPromotion = errors.New("invalid promotion")

// Scope determines where a promotion's eligibility and effect are evaluated.
type Scope string

const (
	ScopeItem     Scope = "ITEM"
	ScopeOrder    Scope = "ORDER"
	ScopeShipping Scope = "SHIPPING"
)

// ActionType names the discount effect of a promotion.
type ActionType string

const (
	ActionPercentDiscount ActionType = "PERCENT_DISCOUNT"
	ActionFixedDiscount   ActionType = "FIXED_DISCOUNT"
	ActionBuyXGetY        ActionType = "BUY_X_GET_Y"
)

// ParseScope normalises a scope name.
func ParseScope(value string) (Scope, error) {
	switch s := Scope(strings.ToUpper(strings.TrimSpace(value))); s {
	case ScopeItem, ScopeOrder, ScopeShipping:
		return s, nil
	}
	return "", fmt.Errorf("unknown scope %q: %w", value, ErrInvalidPromotion)
}

// ParseActionType normalises an action name.
func ParseActionType(value string) (ActionType, error) {
	switch a := ActionType(strings.ToUpper(strings.TrimSpace(value))); a {
	case ActionPercentDiscount, ActionFixedDiscount, ActionBuyXGetY:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q: %w", value, ErrInvalidPromotion)
}

// Promotion is an immutable promotion definition supplied by the catalog.
type Promotion struct {
	ID                   int64      `json:"id"`
	Code                 string     `json:"code"`
	ShopCode             string     `json:"shopCode"`
	Currency             string     `json:"currency"`
	Name                 string     `json:"name,omitempty"`
	Description          string     `json:"description,omitempty"`
	Tag                  string     `json:"tag,omitempty"`
	Scope                Scope      `json:"scope"`
	Action               ActionType `json:"action"`
	ActionContext        string     `json:"actionContext"`
	EligibilityCondition string     `json:"eligibilityCondition"`
	Rank                 int        `json:"rank"`
	CanBeCombined        bool       `json:"canBeCombined"`
	Enabled              bool       `json:"enabled"`
	EnabledFrom          *time.Time `json:"enabledFrom,omitempty"`
	EnabledTo            *time.Time `json:"enabledTo,omitempty"`
}

// Validate checks the structural fields of a promotion. It does not compile the
// eligibility condition or parse the action context; those failures are
// isolated per pricing pass.
func (p Promotion) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("code is required: %w", ErrInvalidPromotion)
	}
	if strings.TrimSpace(p.ShopCode) == "" {
		return fmt.Errorf("shop code is required: %w", ErrInvalidPromotion)
	}
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("currency is required: %w", ErrInvalidPromotion)
	}
	if _, err := ParseScope(string(p.Scope)); err != nil {
		return err
	}
	if _, err := ParseActionType(string(p.Action)); err != nil {
		return err
	}
	if p.EnabledFrom != nil && p.EnabledTo != nil && p.EnabledTo.Before(*p.EnabledFrom) {
		return fmt.Errorf("enabled window ends before it starts: %w", ErrInvalidPromotion)
	}
	return nil
}

// ActiveAt reports whether the promotion is enabled and inside its date window.
func (p Promotion) ActiveAt(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	if p.EnabledFrom != nil && now.Before(*p.EnabledFrom) {
		return false
	}
	if p.EnabledTo != nil && now.After(*p.EnabledTo) {
		return false
	}
	return true
}

// Less orders promotions by rank then code.
func Less(a, b Promotion) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Code < b.Code
}

// Sort orders promotions in place by rank then code.
func Sort(ps []Promotion) {
	sort.SliceStable(ps, func(i, j int) bool { return Less(ps[i], ps[j]) })
}

// Codes returns the promotion codes in order.
func Codes(ps []Promotion) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Code)
	}
	return out
}
