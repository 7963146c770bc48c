package condition

import (
	"github.com/shopspring/decimal"
)

// ItemFacts is the read-only view of the cart line currently being priced.
type ItemFacts struct {
	SKU       string
	Qty       decimal.Decimal
	ListPrice decimal.Decimal
	SalePrice decimal.Decimal
	Price     decimal.Decimal
}

// CartFacts is the read-only view of the whole cart.
type CartFacts struct {
	SubTotal     decimal.Decimal
	ListSubTotal decimal.Decimal
	ItemCount    int
	TotalQty     decimal.Decimal
	SKUs         []string
}

// Binding resolves the free variables of an eligibility expression. Item is nil
// when evaluating order or shipping scoped promotions.
type Binding struct {
	Item     *ItemFacts
	Cart     CartFacts
	ShopCode string
	Currency string
}

type resolver func(Binding) (value, bool)

func itemResolver(get func(*ItemFacts) value) resolver {
	return func(b Binding) (value, bool) {
		if b.Item == nil {
			return value{}, false
		}
		return get(b.Item), true
	}
}

// variables lists every path an expression may reference. A reference to an
// item variable outside item scope is reported as unbound.
var variables = map[string]resolver{
	"item.sku":                        itemResolver(func(it *ItemFacts) value { return stringValue(it.SKU) }),
	"shoppingCartItem.productSkuCode": itemResolver(func(it *ItemFacts) value { return stringValue(it.SKU) }),
	"item.qty":                        itemResolver(func(it *ItemFacts) value { return numberValue(it.Qty) }),
	"shoppingCartItem.qty":            itemResolver(func(it *ItemFacts) value { return numberValue(it.Qty) }),
	"item.listPrice":                  itemResolver(func(it *ItemFacts) value { return numberValue(it.ListPrice) }),
	"item.salePrice":                  itemResolver(func(it *ItemFacts) value { return numberValue(it.SalePrice) }),
	"item.price":                      itemResolver(func(it *ItemFacts) value { return numberValue(it.Price) }),
	"cart.subTotal": func(b Binding) (value, bool) {
		return numberValue(b.Cart.SubTotal), true
	},
	"cart.listSubTotal": func(b Binding) (value, bool) {
		return numberValue(b.Cart.ListSubTotal), true
	},
	"cart.itemCount": func(b Binding) (value, bool) {
		return numberValue(decimal.NewFromInt(int64(b.Cart.ItemCount))), true
	},
	"cart.totalQty": func(b Binding) (value, bool) {
		return numberValue(b.Cart.TotalQty), true
	},
	"cart.skus": func(b Binding) (value, bool) {
		return stringList(b.Cart.SKUs), true
	},
	"shop.code": func(b Binding) (value, bool) { return stringValue(b.ShopCode), true },
	"shopCode":  func(b Binding) (value, bool) { return stringValue(b.ShopCode), true },
	"currency":  func(b Binding) (value, bool) { return stringValue(b.Currency), true },
}
