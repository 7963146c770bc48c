package pricing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-promo/internal/cart"
	"github.com/noah-isme/backend-promo/internal/promotion"
)

const testSkuCondition = "['CC_TEST4', 'CC_TEST5'].contains(shoppingCartItem.productSkuCode)"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(sku string, qty int64, price string) cart.Item {
	p := dec(price)
	return cart.Item{SKU: sku, Qty: decimal.NewFromInt(qty), ListPrice: p, SalePrice: p}
}

func newCart(items ...cart.Item) *cart.Cart {
	return &cart.Cart{ID: "cart-1", ShopCode: "SHOP10", Currency: "EUR", Items: items}
}

func promo(code string, scope promotion.Scope, action promotion.ActionType, ctx, cond string, rank int, combinable bool) promotion.Promotion {
	return promotion.Promotion{
		Code: code, ShopCode: "SHOP10", Currency: "EUR",
		Scope: scope, Action: action, ActionContext: ctx,
		EligibilityCondition: cond, Rank: rank, CanBeCombined: combinable, Enabled: true,
	}
}

func percent(code, pct, cond string, rank int, combinable bool) promotion.Promotion {
	return promo(code, promotion.ScopeItem, promotion.ActionPercentDiscount, pct, cond, rank, combinable)
}

func engine(cfg Config) *Engine {
	cfg.Scale = 2
	return NewEngine(cfg)
}

func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

func TestSingleItemDiscount(t *testing.T) {
	c := newCart(line("CC_TEST4", 2, "123.00"))
	engine(Config{}).Price(c, []promotion.Promotion{percent("CODE10", "10", testSkuCondition, 1, false)})

	it := c.Items[0]
	require.Equal(t, "110.70", fixed(it.Price))
	require.Equal(t, "123.00", fixed(it.SalePrice))
	require.Equal(t, []string{"CODE10"}, it.AppliedPromotions)
	require.True(t, it.PromoApplied)
	require.Equal(t, "221.40", fixed(c.SubTotal))
	require.Equal(t, "246.00", fixed(c.ListSubTotal))
}

func TestNonEligibleItemUntouched(t *testing.T) {
	c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
	engine(Config{}).Price(c, []promotion.Promotion{percent("CODE10", "10", testSkuCondition, 1, false)})

	require.Equal(t, "110.70", fixed(c.Items[0].Price))
	require.Equal(t, "55.17", fixed(c.Items[1].Price))
	require.False(t, c.Items[1].PromoApplied)
	require.Empty(t, c.Items[1].AppliedPromotions)
	require.Equal(t, "276.57", fixed(c.SubTotal))
	require.Equal(t, "301.17", fixed(c.ListSubTotal))
	require.Equal(t, "276.57", fixed(c.Total))
}

func TestCombinableStacking(t *testing.T) {
	promos := []promotion.Promotion{
		percent("10PCT", "10", testSkuCondition, 1, true),
		percent("5PCT", "5", "true", 2, true),
	}

	t.Run("chained", func(t *testing.T) {
		c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
		engine(Config{Stacking: promotion.StackChained}).Price(c, promos)
		require.Equal(t, "105.17", fixed(c.Items[0].Price))
		require.Equal(t, []string{"10PCT", "5PCT"}, c.Items[0].AppliedPromotions)
		require.Equal(t, "52.41", fixed(c.Items[1].Price))
		require.Equal(t, []string{"5PCT"}, c.Items[1].AppliedPromotions)
		require.Equal(t, "262.75", fixed(c.SubTotal))
	})

	t.Run("additive", func(t *testing.T) {
		c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
		engine(Config{Stacking: promotion.StackAdditive}).Price(c, promos)
		require.Equal(t, "104.55", fixed(c.Items[0].Price))
		require.Equal(t, "52.41", fixed(c.Items[1].Price))
		require.Equal(t, "261.51", fixed(c.SubTotal))
	})
}

func TestBestDealAcrossItems(t *testing.T) {
	c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
	engine(Config{}).Price(c, []promotion.Promotion{
		percent("10PCT", "10", testSkuCondition, 1, true),
		percent("5PCT", "5", "true", 2, false),
	})

	require.Equal(t, "110.70", fixed(c.Items[0].Price))
	require.Equal(t, []string{"10PCT"}, c.Items[0].AppliedPromotions)
	require.Equal(t, "52.41", fixed(c.Items[1].Price))
	require.Equal(t, []string{"5PCT"}, c.Items[1].AppliedPromotions)
	require.Equal(t, "273.81", fixed(c.SubTotal))
}

func TestOrderAdjustment(t *testing.T) {
	c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
	promos := []promotion.Promotion{
		percent("CODE10", "10", testSkuCondition, 1, false),
		promo("ORDER10", promotion.ScopeOrder, promotion.ActionFixedDiscount, "10", "cart.subTotal >= 250", 1, true),
		promo("BIGORDER", promotion.ScopeOrder, promotion.ActionFixedDiscount, "50", "cart.subTotal >= 1000", 2, true),
	}
	engine(Config{OrderPolicy: OrderAdjustment}).Price(c, promos)

	require.Equal(t, "276.57", fixed(c.SubTotal))
	require.Equal(t, "10.00", fixed(c.OrderDiscount))
	require.Equal(t, []string{"ORDER10"}, c.OrderPromotions)
	require.Equal(t, "266.57", fixed(c.Total))
	require.Equal(t, []string{"CODE10"}, c.Items[0].AppliedPromotions)
}

func TestOrderConditionSeesItemPrices(t *testing.T) {
	c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
	promos := []promotion.Promotion{
		percent("CODE10", "10", testSkuCondition, 1, false),
		promo("ORDER10", promotion.ScopeOrder, promotion.ActionFixedDiscount, "10", "cart.subTotal >= 280", 1, true),
	}
	engine(Config{}).Price(c, promos)

	require.Empty(t, c.OrderPromotions, "order pass runs against the post-item subtotal of 276.57")
	require.True(t, c.OrderDiscount.IsZero())
}

func TestOrderDistribute(t *testing.T) {
	c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
	promos := []promotion.Promotion{
		percent("CODE10", "10", testSkuCondition, 1, true),
		promo("ORDER10", promotion.ScopeOrder, promotion.ActionPercentDiscount, "10", "true", 1, true),
	}
	engine(Config{OrderPolicy: OrderDistribute}).Price(c, promos)

	require.Equal(t, "99.63", fixed(c.Items[0].Price))
	require.Equal(t, []string{"CODE10", "ORDER10"}, c.Items[0].AppliedPromotions)
	require.Equal(t, "49.65", fixed(c.Items[1].Price))
	require.Equal(t, []string{"ORDER10"}, c.Items[1].AppliedPromotions)
	require.True(t, c.Items[1].PromoApplied)
	require.Equal(t, "248.91", fixed(c.SubTotal))
	require.True(t, c.OrderDiscount.IsZero())
	require.Equal(t, []string{"ORDER10"}, c.OrderPromotions)
	require.Equal(t, "248.91", fixed(c.Total))
}

func TestOrderDistributeKeepsExclusivity(t *testing.T) {
	item := percent("ITEM10", "10", testSkuCondition, 1, false)

	t.Run("exclusive item line skipped", func(t *testing.T) {
		c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
		order := promo("ORDER10", promotion.ScopeOrder, promotion.ActionPercentDiscount, "10", "true", 1, true)
		engine(Config{OrderPolicy: OrderDistribute}).Price(c, []promotion.Promotion{item, order})

		require.Equal(t, "110.70", fixed(c.Items[0].Price))
		require.Equal(t, []string{"ITEM10"}, c.Items[0].AppliedPromotions)
		require.Equal(t, "49.65", fixed(c.Items[1].Price))
		require.Equal(t, []string{"ORDER10"}, c.Items[1].AppliedPromotions)
		require.Equal(t, "271.05", fixed(c.SubTotal))
		require.Equal(t, []string{"ORDER10"}, c.OrderPromotions)
	})

	t.Run("exclusive order promotion reaches no discounted line", func(t *testing.T) {
		c := newCart(line("CC_TEST4", 1, "123.00"))
		order := promo("ORDER5", promotion.ScopeOrder, promotion.ActionPercentDiscount, "5", "true", 1, false)
		engine(Config{OrderPolicy: OrderDistribute}).Price(c, []promotion.Promotion{item, order})

		require.Equal(t, "110.70", fixed(c.Items[0].Price))
		require.Equal(t, []string{"ITEM10"}, c.Items[0].AppliedPromotions)
		require.Empty(t, c.OrderPromotions)
		require.Equal(t, "110.70", fixed(c.Total))
	})

	t.Run("exclusive order promotion skips combinable lines", func(t *testing.T) {
		c := newCart(line("CC_TEST4", 1, "100.00"), line("CC_TEST6", 1, "50.00"))
		promos := []promotion.Promotion{
			percent("10PCT", "10", testSkuCondition, 1, true),
			promo("ORDER15", promotion.ScopeOrder, promotion.ActionFixedDiscount, "15", "true", 1, false),
		}
		engine(Config{OrderPolicy: OrderDistribute}).Price(c, promos)

		require.Equal(t, "90.00", fixed(c.Items[0].Price))
		require.Equal(t, []string{"10PCT"}, c.Items[0].AppliedPromotions)
		require.Equal(t, "35.00", fixed(c.Items[1].Price))
		require.Equal(t, []string{"ORDER15"}, c.Items[1].AppliedPromotions)
		require.Equal(t, "125.00", fixed(c.SubTotal))
	})
}

func TestShippingPass(t *testing.T) {
	c := newCart(line("CC_TEST4", 2, "123.00"))
	c.DeliveryListCost = dec("12.50")
	promos := []promotion.Promotion{
		promo("FREESHIP", promotion.ScopeShipping, promotion.ActionPercentDiscount, "100", "cart.subTotal > 200", 1, false),
		promo("SHIP2", promotion.ScopeShipping, promotion.ActionFixedDiscount, "2", "true", 2, true),
	}
	engine(Config{}).Price(c, promos)

	require.True(t, c.DeliveryCost.IsZero())
	require.Equal(t, []string{"FREESHIP"}, c.ShippingPromotions)
	require.Equal(t, "246.00", fixed(c.Total))

	c.Items[0].Qty = decimal.NewFromInt(1)
	engine(Config{}).Price(c, promos)
	require.Equal(t, "10.50", fixed(c.DeliveryCost))
	require.Equal(t, []string{"SHIP2"}, c.ShippingPromotions)
	require.Equal(t, "133.50", fixed(c.Total))
}

func TestBuyXGetYLine(t *testing.T) {
	c := newCart(line("MUG", 3, "30.00"), line("CUP", 2, "30.00"))
	engine(Config{}).Price(c, []promotion.Promotion{
		promo("3FOR2", promotion.ScopeItem, promotion.ActionBuyXGetY, "2:1", "true", 1, true),
	})

	require.Equal(t, "20.00", fixed(c.Items[0].Price))
	require.Equal(t, []string{"3FOR2"}, c.Items[0].AppliedPromotions)
	require.Equal(t, "30.00", fixed(c.Items[1].Price))
	require.False(t, c.Items[1].PromoApplied)
	require.Equal(t, "120.00", fixed(c.SubTotal))
}

func TestBuyXGetYRoundsUnitPrice(t *testing.T) {
	c := newCart(line("MUG", 3, "10.00"))
	engine(Config{}).Price(c, []promotion.Promotion{
		promo("3FOR2", promotion.ScopeItem, promotion.ActionBuyXGetY, "2:1", "true", 1, true),
	})

	// The unit price is rounded first and the line total follows from it.
	require.Equal(t, "6.67", fixed(c.Items[0].Price))
	require.Equal(t, "20.01", fixed(c.SubTotal))
	require.Equal(t, "30.00", fixed(c.ListSubTotal))
}

func TestRoundingModes(t *testing.T) {
	promos := []promotion.Promotion{percent("HALF", "50", "true", 1, true)}

	c := newCart(line("X", 1, "2.25"))
	engine(Config{Rounding: RoundHalfUp}).Price(c, promos)
	require.Equal(t, "1.13", fixed(c.Items[0].Price))

	c = newCart(line("X", 1, "2.25"))
	engine(Config{Rounding: RoundHalfEven}).Price(c, promos)
	require.Equal(t, "1.12", fixed(c.Items[0].Price))
}

func TestSalePriceClampedToList(t *testing.T) {
	c := newCart(cart.Item{SKU: "X", Qty: decimal.NewFromInt(1), ListPrice: dec("10"), SalePrice: dec("12")})
	engine(Config{}).Price(c, nil)
	require.Equal(t, "10.00", fixed(c.Items[0].SalePrice))
	require.Equal(t, "10.00", fixed(c.Items[0].Price))
}

func TestMalformedPromotionIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := NewEngine(Config{Scale: 2, Logger: &logger})

	c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
	res := e.Price(c, []promotion.Promotion{
		percent("BROKEN", "50", "item.sku = 'CC_TEST4'", 0, false),
		percent("BADCTX", "fifty", "true", 0, false),
		percent("CODE10", "10", testSkuCondition, 1, false),
	})

	require.Equal(t, "110.70", fixed(c.Items[0].Price))
	require.Equal(t, "276.57", fixed(c.SubTotal))
	require.Len(t, res.Skipped, 2)
	require.Equal(t, 1, res.Applied)

	out := buf.String()
	require.Equal(t, 2, strings.Count(out, "promotion_skipped"), "each broken promotion is logged once per pass")
	require.Contains(t, out, `"promotion_code":"BROKEN"`)
	require.Contains(t, out, `item.sku = 'CC_TEST4'`)
}

func TestEmptyCart(t *testing.T) {
	c := newCart()
	engine(Config{}).Price(c, []promotion.Promotion{
		promo("ORDER10", promotion.ScopeOrder, promotion.ActionFixedDiscount, "10", "true", 1, true),
	})
	require.True(t, c.SubTotal.IsZero())
	require.True(t, c.OrderDiscount.IsZero())
	require.True(t, c.Total.IsZero())
}

func TestRecalculationIsIdempotent(t *testing.T) {
	promos := []promotion.Promotion{
		percent("10PCT", "10", testSkuCondition, 1, true),
		percent("5PCT", "5", "true", 2, false),
		promo("ORDER5", promotion.ScopeOrder, promotion.ActionPercentDiscount, "5", "cart.itemCount >= 2", 1, true),
	}
	e := engine(Config{})
	c := newCart(line("CC_TEST4", 2, "123.00"), line("CC_TEST6", 1, "55.17"))
	e.Price(c, promos)
	first := c.Clone()
	e.Price(c, promos)
	require.Equal(t, first, c)
}

func TestParsePolicies(t *testing.T) {
	p, err := ParseOrderPolicy("Distribute")
	require.NoError(t, err)
	require.Equal(t, OrderDistribute, p)
	_, err = ParseOrderPolicy("spread")
	require.Error(t, err)

	r, err := ParseRounding("half_even")
	require.NoError(t, err)
	require.Equal(t, RoundHalfEven, r)
	_, err = ParseRounding("ceil")
	require.Error(t, err)
}
