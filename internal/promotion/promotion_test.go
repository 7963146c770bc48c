package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	ok := Promotion{Code: "A", ShopCode: "SHOP10", Currency: "EUR", Scope: ScopeItem, Action: ActionPercentDiscount}
	require.NoError(t, ok.Validate())

	missingCode := ok
	missingCode.Code = " "
	require.ErrorIs(t, missingCode.Validate(), ErrInvalidPromotion)

	badScope := ok
	badScope.Scope = "CART"
	require.ErrorIs(t, badScope.Validate(), ErrInvalidPromotion)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	badWindow := ok
	badWindow.EnabledFrom, badWindow.EnabledTo = &from, &to
	require.ErrorIs(t, badWindow.Validate(), ErrInvalidPromotion)
}

func TestActiveAt(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	p := Promotion{Enabled: true, EnabledFrom: &from, EnabledTo: &to}

	require.False(t, p.ActiveAt(from.Add(-time.Second)))
	require.True(t, p.ActiveAt(from))
	require.True(t, p.ActiveAt(to))
	require.False(t, p.ActiveAt(to.Add(time.Second)))

	p.Enabled = false
	require.False(t, p.ActiveAt(from.Add(time.Hour)))
}

func TestSortByRankThenCode(t *testing.T) {
	ps := []Promotion{{Code: "B", Rank: 2}, {Code: "Z", Rank: 1}, {Code: "A", Rank: 2}}
	Sort(ps)
	require.Equal(t, []string{"Z", "A", "B"}, Codes(ps))
}

func TestParseScopeAndAction(t *testing.T) {
	s, err := ParseScope(" order ")
	require.NoError(t, err)
	require.Equal(t, ScopeOrder, s)

	a, err := ParseActionType("buy_x_get_y")
	require.NoError(t, err)
	require.Equal(t, ActionBuyXGetY, a)

	_, err = ParseActionType("GIFT")
	require.ErrorIs(t, err, ErrInvalidPromotion)
}
