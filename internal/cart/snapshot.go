package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SnapshotStore appends priced cart versions to Postgres for reporting.
type SnapshotStore struct {
	DB Execer
}

// Save records the cart at its current version. Replays of the same version
// are ignored.
func (s SnapshotStore) Save(ctx context.Context, c *Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO cart_snapshots
	(cart_id, version, shop_code, currency, list_sub_total, sub_total, order_discount, delivery_cost, total, payload, priced_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11)
ON CONFLICT (cart_id, version) DO NOTHING`,
		c.ID, c.Version, c.ShopCode, c.Currency,
		c.ListSubTotal.String(), c.SubTotal.String(), c.OrderDiscount.String(), c.DeliveryCost.String(), c.Total.String(),
		payload, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}
