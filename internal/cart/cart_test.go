package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestNewNormalisesInput(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c, err := New("c1", " shop10 ", "eur", now)
	require.NoError(t, err)
	require.Equal(t, "SHOP10", c.ShopCode)
	require.Equal(t, "EUR", c.Currency)
	require.Equal(t, StateEmpty, c.State)
	require.Equal(t, now, c.UpdatedAt)

	require.NoError(t, c.SetShop("Shop20"))
	require.Equal(t, "SHOP20", c.ShopCode)

	_, err = New("c2", "", "EUR", now)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = New("c3", "SHOP10", " ", now)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetQty(t *testing.T) {
	c, err := New("c1", "SHOP10", "EUR", time.Now())
	require.NoError(t, err)

	require.NoError(t, c.SetQty("CC_TEST4", qty(2)))
	require.NoError(t, c.SetQty("CC_TEST5", qty(1)))
	require.Equal(t, []string{"CC_TEST4", "CC_TEST5"}, c.SKUs())
	require.Equal(t, StateDirty, c.State)

	require.NoError(t, c.SetQty("CC_TEST4", qty(5)))
	require.True(t, c.Items[0].Qty.Equal(qty(5)))
	require.Equal(t, []string{"CC_TEST4", "CC_TEST5"}, c.SKUs())

	require.NoError(t, c.SetQty("CC_TEST4", decimal.Zero))
	require.Equal(t, []string{"CC_TEST5"}, c.SKUs())

	require.NoError(t, c.SetQty("ABSENT", decimal.Zero))
	require.Equal(t, []string{"CC_TEST5"}, c.SKUs())

	require.ErrorIs(t, c.SetQty("CC_TEST5", qty(-1)), ErrInvalidInput)
	require.ErrorIs(t, c.SetQty(" ", qty(1)), ErrInvalidInput)
}

func TestAddQtyAndRemove(t *testing.T) {
	c, err := New("c1", "SHOP10", "EUR", time.Now())
	require.NoError(t, err)

	require.NoError(t, c.AddQty("CC_TEST4", qty(1)))
	require.NoError(t, c.AddQty("CC_TEST4", qty(2)))
	require.True(t, c.TotalQty().Equal(qty(3)))
	require.ErrorIs(t, c.AddQty("CC_TEST4", decimal.Zero), ErrInvalidInput)

	require.ErrorIs(t, c.Remove("CC_TEST9"), ErrNotFound)
	require.NoError(t, c.Remove("CC_TEST4"))
	require.Empty(t, c.Items)
	require.Equal(t, StateEmpty, c.State)
}

func TestClearAndDelivery(t *testing.T) {
	c, err := New("c1", "SHOP10", "EUR", time.Now())
	require.NoError(t, err)
	require.NoError(t, c.SetQty("CC_TEST4", qty(1)))

	require.NoError(t, c.SetDeliveryCost(decimal.RequireFromString("12.50")))
	require.Equal(t, "12.5", c.DeliveryListCost.String())
	require.ErrorIs(t, c.SetDeliveryCost(decimal.RequireFromString("-1")), ErrInvalidInput)

	c.Clear()
	require.Empty(t, c.Items)
	require.Equal(t, StateEmpty, c.State)
}

func TestCloneIsDeep(t *testing.T) {
	c, err := New("c1", "SHOP10", "EUR", time.Now())
	require.NoError(t, err)
	require.NoError(t, c.SetQty("CC_TEST4", qty(1)))
	c.Items[0].AppliedPromotions = []string{"CODE10"}
	c.OrderPromotions = []string{"ORDER5"}

	cp := c.Clone()
	cp.Items[0].AppliedPromotions[0] = "CHANGED"
	cp.OrderPromotions[0] = "CHANGED"
	require.NoError(t, cp.SetQty("CC_TEST5", qty(1)))

	require.Equal(t, "CODE10", c.Items[0].AppliedPromotions[0])
	require.Equal(t, "ORDER5", c.OrderPromotions[0])
	require.Len(t, c.Items, 1)
}
