package cart

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrSkuNotPriced is returned when the catalog holds no price for a SKU in the
// cart's shop and currency.
var ErrSkuNotPriced = errors.New("sku not priced")

// ErrBusy is returned when the cart lock could not be acquired.
var ErrBusy = errors.New("cart busy")

// State tracks where a cart is in its pricing lifecycle.
type State string

const (
	StateEmpty        State = "EMPTY"
	StateDirty        State = "DIRTY"
	StateRecalculated State = "RECALCULATED"
)

// Item is one cart line.
type Item struct {
	SKU               string          `json:"sku"`
	Qty               decimal.Decimal `json:"qty"`
	ListPrice         decimal.Decimal `json:"listPrice"`
	SalePrice         decimal.Decimal `json:"salePrice"`
	Price             decimal.Decimal `json:"price"`
	AppliedPromotions []string        `json:"appliedPromotions"`
	PromoApplied      bool            `json:"promoApplied"`
}

// Cart is the session-owned shopping cart. Items keep insertion order.
type Cart struct {
	ID                 string          `json:"id"`
	ShopCode           string          `json:"shopCode"`
	Currency           string          `json:"currency"`
	Items              []Item          `json:"items"`
	ListSubTotal       decimal.Decimal `json:"listSubTotal"`
	SubTotal           decimal.Decimal `json:"subTotal"`
	OrderDiscount      decimal.Decimal `json:"orderDiscount"`
	OrderPromotions    []string        `json:"orderPromotions"`
	DeliveryListCost   decimal.Decimal `json:"deliveryListCost"`
	DeliveryCost       decimal.Decimal `json:"deliveryCost"`
	ShippingPromotions []string        `json:"shippingPromotions"`
	Total              decimal.Decimal `json:"total"`
	State              State           `json:"state"`
	Version            int64           `json:"version"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// New returns an empty cart for a shop and currency.
func New(id, shopCode, currency string, now time.Time) (*Cart, error) {
	c := &Cart{ID: id, State: StateEmpty, UpdatedAt: now}
	if err := c.SetShop(shopCode); err != nil {
		return nil, err
	}
	if err := c.SetCurrency(currency); err != nil {
		return nil, err
	}
	return c, nil
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]Item, len(c.Items))
	for i, it := range c.Items {
		it.AppliedPromotions = slices.Clone(it.AppliedPromotions)
		out.Items[i] = it
	}
	out.OrderPromotions = slices.Clone(c.OrderPromotions)
	out.ShippingPromotions = slices.Clone(c.ShippingPromotions)
	return &out
}

// Index returns the position of sku in the cart or -1.
func (c *Cart) Index(sku string) int {
	for i := range c.Items {
		if c.Items[i].SKU == sku {
			return i
		}
	}
	return -1
}

// SKUs returns the SKU codes in cart order.
func (c *Cart) SKUs() []string {
	out := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.SKU)
	}
	return out
}

// TotalQty sums the quantities of all lines.
func (c *Cart) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Qty)
	}
	return total
}

func (c *Cart) markDirty() {
	if len(c.Items) == 0 {
		c.State = StateEmpty
		return
	}
	c.State = StateDirty
}

// SetShop switches the shop the cart is priced in. Shop codes are stored
// upper-case.
func (c *Cart) SetShop(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fmt.Errorf("shop code is required: %w", ErrInvalidInput)
	}
	c.ShopCode = code
	c.markDirty()
	return nil
}

// SetCurrency switches the cart currency.
func (c *Cart) SetCurrency(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fmt.Errorf("currency is required: %w", ErrInvalidInput)
	}
	c.Currency = code
	c.markDirty()
	return nil
}

func normaliseSKU(sku string) (string, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return "", fmt.Errorf("sku is required: %w", ErrInvalidInput)
	}
	return sku, nil
}

// SetQty sets the quantity of a line, appending it when absent. A zero quantity
// removes the line.
func (c *Cart) SetQty(sku string, qty decimal.Decimal) error {
	sku, err := normaliseSKU(sku)
	if err != nil {
		return err
	}
	if qty.IsNegative() {
		return fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	idx := c.Index(sku)
	switch {
	case qty.IsZero() && idx >= 0:
		c.Items = slices.Delete(c.Items, idx, idx+1)
	case qty.IsZero():
	case idx >= 0:
		c.Items[idx].Qty = qty
	default:
		c.Items = append(c.Items, Item{SKU: sku, Qty: qty})
	}
	c.markDirty()
	return nil
}

// AddQty increments the quantity of a line, appending it when absent.
func (c *Cart) AddQty(sku string, qty decimal.Decimal) error {
	sku, err := normaliseSKU(sku)
	if err != nil {
		return err
	}
	if !qty.IsPositive() {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	if idx := c.Index(sku); idx >= 0 {
		c.Items[idx].Qty = c.Items[idx].Qty.Add(qty)
	} else {
		c.Items = append(c.Items, Item{SKU: sku, Qty: qty})
	}
	c.markDirty()
	return nil
}

// Remove drops a line.
func (c *Cart) Remove(sku string) error {
	idx := c.Index(strings.TrimSpace(sku))
	if idx < 0 {
		return fmt.Errorf("sku %s not in cart: %w", sku, ErrNotFound)
	}
	c.Items = slices.Delete(c.Items, idx, idx+1)
	c.markDirty()
	return nil
}

// Clear drops every line.
func (c *Cart) Clear() {
	c.Items = nil
	c.markDirty()
}

// SetDeliveryCost sets the undiscounted delivery cost.
func (c *Cart) SetDeliveryCost(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("delivery cost must not be negative: %w", ErrInvalidInput)
	}
	c.DeliveryListCost = amount
	c.markDirty()
	return nil
}
