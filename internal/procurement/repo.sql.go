package procurement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/foundry-erp/foundry-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations for purchase order writes.
type TxRepository interface {
	GetForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error)
	InsertPO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line POLine) (int64, error)
	UpdateStatus(ctx context.Context, poID int64, status POStatus) error
	UpdateReceivedQty(ctx context.Context, lineID int64, received decimal.Decimal) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const poColumns = `id, number, supplier_name, status, expected_date, created_at, updated_at`

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.SupplierName, &po.Status, &po.ExpectedDate, &po.CreatedAt, &po.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func loadLines(ctx context.Context, q rowQuerier, poID int64) ([]POLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, po_id, product_id, ordered_qty, received_qty, unit_price
		 FROM purchase_order_lines WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var (
			line     POLine
			ordered  pgtype.Numeric
			received pgtype.Numeric
			price    pgtype.Numeric
		)
		if err := rows.Scan(&line.ID, &line.POID, &line.ProductID, &ordered, &received, &price); err != nil {
			return nil, err
		}
		line.OrderedQty = db.NumericToDecimal(ordered)
		line.ReceivedQty = db.NumericToDecimal(received)
		line.UnitPrice = db.NumericToDecimal(price)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Get fetches one purchase order with its lines.
func (r *Repository) Get(ctx context.Context, poID int64) (PurchaseOrder, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, poID))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, r.pool, po.ID)
	return po, err
}

// List lists purchase orders, newest first. Lines are not loaded.
func (r *Repository) List(ctx context.Context, status POStatus, limit int) ([]PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		if status != "" {
			query += ` LIMIT $2`
		} else {
			query += ` LIMIT $1`
		}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// SumOutstanding sums still-undelivered quantities per product over all
// committed purchase orders in one query. Products without open commitments
// are absent from the map.
func (r *Repository) SumOutstanding(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	result := make(map[int64]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT l.product_id, COALESCE(SUM(l.ordered_qty - l.received_qty), 0)
		 FROM purchase_order_lines l
		 JOIN purchase_orders po ON po.id = l.po_id
		 WHERE l.product_id = ANY($1) AND po.status = ANY($2)
		 GROUP BY l.product_id`, productIDs, committedStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int64
			sum       pgtype.Numeric
		)
		if err := rows.Scan(&productID, &sum); err != nil {
			return nil, err
		}
		result[productID] = db.NumericToDecimal(sum)
	}
	return result, rows.Err()
}

func (r *txRepo) GetForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error) {
	po, err := scanPO(r.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, poID))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, r.tx, po.ID)
	return po, err
}

func (r *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_orders (number, supplier_name, status, expected_date)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		po.Number, po.SupplierName, po.Status, po.ExpectedDate,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertLine(ctx context.Context, line POLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_order_lines (po_id, product_id, ordered_qty, received_qty, unit_price)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		line.POID, line.ProductID, db.DecimalToNumeric(line.OrderedQty), db.DecimalToNumeric(line.ReceivedQty), db.DecimalToNumeric(line.UnitPrice),
	).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateStatus(ctx context.Context, poID int64, status POStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = now() WHERE id = $1`, poID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) UpdateReceivedQty(ctx context.Context, lineID int64, received decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_order_lines SET received_qty = $2 WHERE id = $1`, lineID, db.DecimalToNumeric(received))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}
