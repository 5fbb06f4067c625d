package planning

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundry-erp/foundry-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for production orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, number, product_id, quantity, scheduled_start, status, created_at, updated_at`

func scanOrder(row pgx.Row) (ProductionOrder, error) {
	var (
		o   ProductionOrder
		qty pgtype.Numeric
	)
	err := row.Scan(&o.ID, &o.Number, &o.ProductID, &qty, &o.ScheduledStart, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductionOrder{}, ErrOrderNotFound
	}
	if err != nil {
		return ProductionOrder{}, err
	}
	o.Quantity = db.NumericToDecimal(qty)
	return o, nil
}

// Get fetches one production order.
func (r *Repository) Get(ctx context.Context, orderID int64) (ProductionOrder, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id = $1`, orderID))
}

// GetMany fetches a set of production orders in one query. Absent IDs are
// missing from the result.
func (r *Repository) GetMany(ctx context.Context, orderIDs []int64) (map[int64]ProductionOrder, error) {
	result := make(map[int64]ProductionOrder, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id = ANY($1)`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result[o.ID] = o
	}
	return result, rows.Err()
}

// ListByStatus lists production orders in the given states, earliest
// scheduled start first.
func (r *Repository) ListByStatus(ctx context.Context, statuses []OrderStatus) ([]ProductionOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM production_orders WHERE status = ANY($1) ORDER BY scheduled_start, id`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []ProductionOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Insert stores a new production order.
func (r *Repository) Insert(ctx context.Context, o ProductionOrder) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO production_orders (number, product_id, quantity, scheduled_start, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		o.Number, o.ProductID, db.DecimalToNumeric(o.Quantity), o.ScheduledStart, o.Status,
	).Scan(&id)
	return id, err
}

// UpdateStatus moves a production order to a new state.
func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE production_orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
