package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-promo/internal/promotion"
)

// DBTX is the subset of pgxpool.Pool and pgx.Tx used by the store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore reads and writes promotions and SKU prices in Postgres.
type PGStore struct {
	DB DBTX
}

const promotionColumns = `id, code, shop_code, currency, name, description, tag, scope, action,
	action_context, eligibility_condition, rank, can_be_combined, enabled, enabled_from, enabled_to`

func scanPromotion(row pgx.Row) (promotion.Promotion, error) {
	var (
		p      promotion.Promotion
		scope  string
		action string
	)
	err := row.Scan(&p.ID, &p.Code, &p.ShopCode, &p.Currency, &p.Name, &p.Description, &p.Tag,
		&scope, &action, &p.ActionContext, &p.EligibilityCondition, &p.Rank, &p.CanBeCombined,
		&p.Enabled, &p.EnabledFrom, &p.EnabledTo)
	if err != nil {
		return promotion.Promotion{}, err
	}
	p.Scope = promotion.Scope(scope)
	p.Action = promotion.ActionType(action)
	return p, nil
}

func (s *PGStore) queryPromotions(ctx context.Context, sql string, args ...any) ([]promotion.Promotion, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []promotion.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnabledPromotions implements Source.
func (s *PGStore) EnabledPromotions(ctx context.Context, shopCode, currency string) ([]promotion.Promotion, error) {
	return s.queryPromotions(ctx, `SELECT `+promotionColumns+`
FROM promotions
WHERE shop_code = $1 AND currency = $2 AND enabled
ORDER BY rank, code`, shopCode, currency)
}

// ListPromotions implements Source.
func (s *PGStore) ListPromotions(ctx context.Context, f Filter) ([]promotion.Promotion, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Code != "" {
		add("code ILIKE $%d", f.Code)
	}
	if f.ShopCode != "" {
		add("shop_code = $%d", f.ShopCode)
	}
	if f.Currency != "" {
		add("currency = $%d", f.Currency)
	}
	if f.Tag != "" {
		add("tag ILIKE $%d", f.Tag)
	}
	if f.Scope != "" {
		add("scope = $%d", string(f.Scope))
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.Enabled != nil {
		add("enabled = $%d", *f.Enabled)
	}
	var b strings.Builder
	b.WriteString("SELECT " + promotionColumns + "\nFROM promotions")
	if len(where) > 0 {
		b.WriteString("\nWHERE " + strings.Join(where, " AND "))
	}
	b.WriteString("\nORDER BY rank, code")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, "\nLIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, "\nOFFSET $%d", len(args))
	}
	return s.queryPromotions(ctx, b.String(), args...)
}

// SkuPrices implements Source.
func (s *PGStore) SkuPrices(ctx context.Context, shopCode, currency string, skus []string) ([]SkuPrice, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT sku, list_price::text, COALESCE(sale_price, 0)::text
FROM sku_prices
WHERE shop_code = $1 AND currency = $2 AND sku = ANY($3)`, shopCode, currency, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SkuPrice
	for rows.Next() {
		var sku, list, sale string
		if err := rows.Scan(&sku, &list, &sale); err != nil {
			return nil, err
		}
		p := SkuPrice{SKU: sku, ShopCode: shopCode, Currency: currency}
		if p.ListPrice, err = decimal.NewFromString(list); err != nil {
			return nil, fmt.Errorf("sku %s list price: %w", sku, err)
		}
		if p.SalePrice, err = decimal.NewFromString(sale); err != nil {
			return nil, fmt.Errorf("sku %s sale price: %w", sku, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPromotion inserts a promotion or replaces the one with the same code.
func (s *PGStore) UpsertPromotion(ctx context.Context, p promotion.Promotion) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	p.ShopCode, p.Currency = NormaliseCode(p.ShopCode), NormaliseCode(p.Currency)
	var id int64
	err := s.DB.QueryRow(ctx, `INSERT INTO promotions (code, shop_code, currency, name, description, tag, scope, action,
	action_context, eligibility_condition, rank, can_be_combined, enabled, enabled_from, enabled_to)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (code) DO UPDATE SET
	shop_code = EXCLUDED.shop_code,
	currency = EXCLUDED.currency,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	tag = EXCLUDED.tag,
	scope = EXCLUDED.scope,
	action = EXCLUDED.action,
	action_context = EXCLUDED.action_context,
	eligibility_condition = EXCLUDED.eligibility_condition,
	rank = EXCLUDED.rank,
	can_be_combined = EXCLUDED.can_be_combined,
	enabled = EXCLUDED.enabled,
	enabled_from = EXCLUDED.enabled_from,
	enabled_to = EXCLUDED.enabled_to,
	updated_at = now()
RETURNING id`,
		p.Code, p.ShopCode, p.Currency, p.Name, p.Description, p.Tag, string(p.Scope), string(p.Action),
		p.ActionContext, p.EligibilityCondition, p.Rank, p.CanBeCombined, p.Enabled, p.EnabledFrom, p.EnabledTo,
	).Scan(&id)
	return id, err
}

// UpsertPrice inserts or replaces a SKU price.
func (s *PGStore) UpsertPrice(ctx context.Context, p SkuPrice) error {
	p.ShopCode, p.Currency = NormaliseCode(p.ShopCode), NormaliseCode(p.Currency)
	var sale *string
	if p.SalePrice.IsPositive() {
		v := p.SalePrice.String()
		sale = &v
	}
	_, err := s.DB.Exec(ctx, `INSERT INTO sku_prices (shop_code, currency, sku, list_price, sale_price)
VALUES ($1, $2, $3, $4::numeric, $5::numeric)
ON CONFLICT (shop_code, currency, sku) DO UPDATE SET
	list_price = EXCLUDED.list_price,
	sale_price = EXCLUDED.sale_price,
	updated_at = now()`, p.ShopCode, p.Currency, p.SKU, p.ListPrice.String(), sale)
	return err
}
