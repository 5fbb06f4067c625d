package bom

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound signals a missing BOM.
	ErrNotFound = errors.New("bom: not found")
	// ErrNoActiveBOM signals that a product has no active bill of materials.
	ErrNoActiveBOM = errors.New("bom: no active bill of materials")
	// ErrInvalidItem signals an item violating quantity constraints.
	ErrInvalidItem = errors.New("bom: invalid item")
	// ErrDuplicateVersion signals a version clash for the same product.
	ErrDuplicateVersion = errors.New("bom: duplicate version")
)

// BOMItem is one component line of a bill of materials.
type BOMItem struct {
	ID              int64           `json:"id"`
	BOMID           int64           `json:"bom_id"`
	ComponentID     int64           `json:"component_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	ScrapFactor     decimal.Decimal `json:"scrap_factor"`
	Sequence        int             `json:"sequence"`
	Unit            string          `json:"unit"`
}

// RequiredFor computes the gross requirement this line contributes to an order
// of the given quantity: quantityPerUnit * orderQty * (1 + scrapFactor).
func (i BOMItem) RequiredFor(orderQty decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return i.QuantityPerUnit.Mul(orderQty).Mul(one.Add(i.ScrapFactor))
}

// BillOfMaterials is one versioned recipe for a product. At most one version
// per product is active at a time.
type BillOfMaterials struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	Items     []BOMItem `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
