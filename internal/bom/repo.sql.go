package bom

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundry-erp/foundry-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for bills of materials.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations for BOM writes.
type TxRepository interface {
	InsertBOM(ctx context.Context, b BillOfMaterials) (int64, error)
	InsertItem(ctx context.Context, item BOMItem) (int64, error)
	GetBOM(ctx context.Context, bomID int64) (BillOfMaterials, error)
	DeactivateForProduct(ctx context.Context, productID int64) error
	SetActive(ctx context.Context, bomID int64) error
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

const bomColumns = `id, product_id, version, is_active, created_at, updated_at`

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanBOM(row pgx.Row) (BillOfMaterials, error) {
	var b BillOfMaterials
	err := row.Scan(&b.ID, &b.ProductID, &b.Version, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BillOfMaterials{}, ErrNotFound
	}
	if err != nil {
		return BillOfMaterials{}, err
	}
	return b, nil
}

func loadItems(ctx context.Context, q rowQuerier, bomID int64) ([]BOMItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, bom_id, component_id, quantity_per_unit, scrap_factor, sequence, unit
		 FROM bom_items WHERE bom_id = $1 ORDER BY sequence, id`, bomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BOMItem
	for rows.Next() {
		var (
			item  BOMItem
			qty   pgtype.Numeric
			scrap pgtype.Numeric
		)
		if err := rows.Scan(&item.ID, &item.BOMID, &item.ComponentID, &qty, &scrap, &item.Sequence, &item.Unit); err != nil {
			return nil, err
		}
		item.QuantityPerUnit = db.NumericToDecimal(qty)
		item.ScrapFactor = db.NumericToDecimal(scrap)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches one BOM with its items.
func (r *Repository) Get(ctx context.Context, bomID int64) (BillOfMaterials, error) {
	b, err := scanBOM(r.pool.QueryRow(ctx, `SELECT `+bomColumns+` FROM boms WHERE id = $1`, bomID))
	if err != nil {
		return BillOfMaterials{}, err
	}
	b.Items, err = loadItems(ctx, r.pool, b.ID)
	return b, err
}

// ActiveBOM fetches the active BOM for a product, items included.
func (r *Repository) ActiveBOM(ctx context.Context, productID int64) (BillOfMaterials, error) {
	b, err := scanBOM(r.pool.QueryRow(ctx,
		`SELECT `+bomColumns+` FROM boms WHERE product_id = $1 AND is_active`, productID))
	if errors.Is(err, ErrNotFound) {
		return BillOfMaterials{}, ErrNoActiveBOM
	}
	if err != nil {
		return BillOfMaterials{}, err
	}
	b.Items, err = loadItems(ctx, r.pool, b.ID)
	return b, err
}

// ListVersions lists all BOM versions of a product, newest version first.
// Items are not loaded.
func (r *Repository) ListVersions(ctx context.Context, productID int64) ([]BillOfMaterials, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bomColumns+` FROM boms WHERE product_id = $1 ORDER BY version DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boms []BillOfMaterials
	for rows.Next() {
		b, err := scanBOM(rows)
		if err != nil {
			return nil, err
		}
		boms = append(boms, b)
	}
	return boms, rows.Err()
}

func (r *txRepo) InsertBOM(ctx context.Context, b BillOfMaterials) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO boms (product_id, version, is_active) VALUES ($1, $2, $3) RETURNING id`,
		b.ProductID, b.Version, b.IsActive,
	).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return 0, ErrDuplicateVersion
	}
	return id, err
}

func (r *txRepo) InsertItem(ctx context.Context, item BOMItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO bom_items (bom_id, component_id, quantity_per_unit, scrap_factor, sequence, unit)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		item.BOMID, item.ComponentID, db.DecimalToNumeric(item.QuantityPerUnit), db.DecimalToNumeric(item.ScrapFactor), item.Sequence, item.Unit,
	).Scan(&id)
	return id, err
}

func (r *txRepo) GetBOM(ctx context.Context, bomID int64) (BillOfMaterials, error) {
	return scanBOM(r.tx.QueryRow(ctx, `SELECT `+bomColumns+` FROM boms WHERE id = $1 FOR UPDATE`, bomID))
}

func (r *txRepo) DeactivateForProduct(ctx context.Context, productID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE boms SET is_active = false, updated_at = now() WHERE product_id = $1 AND is_active`, productID)
	return err
}

func (r *txRepo) SetActive(ctx context.Context, bomID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE boms SET is_active = true, updated_at = now() WHERE id = $1`, bomID)
	return err
}
