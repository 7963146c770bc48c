package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-promo/internal/catalog"
	"github.com/noah-isme/backend-promo/internal/migrations"
	"github.com/noah-isme/backend-promo/internal/obs"
	"github.com/noah-isme/backend-promo/internal/promotion"
)

const skuXY = "['CC_TEST4', 'CC_TEST5'].contains(shoppingCartItem.productSkuCode)"

func demoPrices() []catalog.SkuPrice {
	price := func(shop, sku, list, sale string) catalog.SkuPrice {
		p := catalog.SkuPrice{SKU: sku, ShopCode: shop, Currency: "EUR", ListPrice: decimal.RequireFromString(list)}
		if sale != "" {
			p.SalePrice = decimal.RequireFromString(sale)
		}
		return p
	}
	var out []catalog.SkuPrice
	for _, shop := range []string{"SHOP10", "SHOP20"} {
		out = append(out,
			price(shop, "CC_TEST4", "123.00", ""),
			price(shop, "CC_TEST5", "55.17", ""),
			price(shop, "CC_TEST6", "40.00", "30.00"),
			price(shop, "CC_TEST9", "9.99", ""),
		)
	}
	return out
}

func demoPromotions() []promotion.Promotion {
	return []promotion.Promotion{
		{
			Code: "CODE10", ShopCode: "SHOP10", Currency: "EUR", Name: "10% off selected SKUs",
			Scope: promotion.ScopeItem, Action: promotion.ActionPercentDiscount, ActionContext: "10",
			EligibilityCondition: "['CC_TEST4'].contains(shoppingCartItem.productSkuCode)", Rank: 1, Enabled: true,
		},
		{
			Code: "SHIP100", ShopCode: "SHOP10", Currency: "EUR", Name: "Free delivery over 100",
			Scope: promotion.ScopeShipping, Action: promotion.ActionPercentDiscount, ActionContext: "100",
			EligibilityCondition: "cart.subTotal >= 100", Rank: 1, Enabled: true,
		},
		{
			Code: "10PCT", ShopCode: "SHOP20", Currency: "EUR", Name: "10% off SKU X", Tag: "stack",
			Scope: promotion.ScopeItem, Action: promotion.ActionPercentDiscount, ActionContext: "10",
			EligibilityCondition: skuXY, Rank: 1, CanBeCombined: true, Enabled: true,
		},
		{
			Code: "5PCT", ShopCode: "SHOP20", Currency: "EUR", Name: "5% off everything", Tag: "stack",
			Scope: promotion.ScopeItem, Action: promotion.ActionPercentDiscount, ActionContext: "5",
			EligibilityCondition: "true", Rank: 2, CanBeCombined: true, Enabled: true,
		},
		{
			Code: "B2G1", ShopCode: "SHOP20", Currency: "EUR", Name: "Buy 2 get 1 on CC_TEST9",
			Scope: promotion.ScopeItem, Action: promotion.ActionBuyXGetY, ActionContext: "2:1",
			EligibilityCondition: "shoppingCartItem.productSkuCode == 'CC_TEST9'", Rank: 3, Enabled: true,
		},
		{
			Code: "ORDER15", ShopCode: "SHOP20", Currency: "EUR", Name: "15 off orders over 200",
			Scope: promotion.ScopeOrder, Action: promotion.ActionFixedDiscount, ActionContext: "15",
			EligibilityCondition: "cart.subTotal > 200", Rank: 1, Enabled: true,
		},
	}
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if err := migrations.Up(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	store := &catalog.PGStore{DB: pool}
	for _, p := range demoPrices() {
		if err := store.UpsertPrice(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("sku", p.SKU).Str("shop", p.ShopCode).Msg("seed price")
		}
	}
	logger.Info().Int("count", len(demoPrices())).Msg("prices_seeded")

	for _, p := range demoPromotions() {
		id, err := store.UpsertPromotion(ctx, p)
		if err != nil {
			logger.Fatal().Err(err).Str("code", p.Code).Msg("seed promotion")
		}
		logger.Info().Int64("id", id).Str("code", p.Code).Str("shop", p.ShopCode).Msg("promotion_seeded")
	}
	logger.Info().Msg("seeding completed")
}
