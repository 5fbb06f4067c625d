package ledger

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundry-erp/foundry-erp/internal/platform/db"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for the movement ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used during movement admission.
type TxRepository interface {
	// LockProduct serialises ledger writes for one product. Writes for
	// different products proceed in parallel.
	LockProduct(ctx context.Context, productID int64) error
	SumMovements(ctx context.Context, productID int64) (decimal.Decimal, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
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

const movementColumns = `id, product_id, kind, quantity, occurred_at, reference, reference_kind, created_by`

func scanMovement(row pgx.Row) (Movement, error) {
	var (
		m   Movement
		qty pgtype.Numeric
	)
	if err := row.Scan(&m.ID, &m.ProductID, &m.Kind, &qty, &m.OccurredAt, &m.Reference, &m.ReferenceKind, &m.CreatedBy); err != nil {
		return Movement{}, err
	}
	m.Quantity = db.NumericToDecimal(qty)
	return m, nil
}

// ListMovements returns the movement history for one product, oldest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, filter MovementFilter) ([]Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE product_id = $1`
	args := []interface{}{productID}
	argCount := 1
	if !filter.From.IsZero() {
		argCount++
		query += ` AND occurred_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		query += ` AND occurred_at < $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}
	query += ` ORDER BY occurred_at, id`
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// MovementsFor fetches the full movement history for a set of products in one
// query. Products without movements are absent from the map; callers that need
// a total view fill in zero histories.
func (r *Repository) MovementsFor(ctx context.Context, productIDs []int64) (map[int64][]Movement, error) {
	result := make(map[int64][]Movement, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE product_id = ANY($1) ORDER BY product_id, occurred_at, id`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		result[m.ProductID] = append(result[m.ProductID], m)
	}
	return result, rows.Err()
}

func (r *txRepo) LockProduct(ctx context.Context, productID int64) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, productID)
	return err
}

func (r *txRepo) SumMovements(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN kind = 'OUT' THEN -quantity ELSE quantity END), 0) FROM stock_movements WHERE product_id = $1`, productID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return db.NumericToDecimal(sum), nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO stock_movements (product_id, kind, quantity, occurred_at, reference, reference_kind, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.ProductID, m.Kind, db.DecimalToNumeric(m.Quantity), m.OccurredAt, m.Reference, m.ReferenceKind, m.CreatedBy,
	).Scan(&id)
	return id, err
}
