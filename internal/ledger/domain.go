package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementKind = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementKind = "OUT"
	// MovementAdjustment represents a positive manual correction.
	MovementAdjustment MovementKind = "ADJUSTMENT"
)

// ReferenceKind names the document type a movement originates from.
type ReferenceKind string

const (
	RefManual      ReferenceKind = "MANUAL"
	RefReceipt     ReferenceKind = "RECEIPT"
	RefConsumption ReferenceKind = "CONSUMPTION"
	RefCorrection  ReferenceKind = "CORRECTION"
)

// Movement is a single append-only stock-affecting event. Movements are never
// updated or deleted; the only supported correction is a compensating movement.
type Movement struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	Kind          MovementKind    `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Reference     string          `json:"reference"`
	ReferenceKind ReferenceKind   `json:"reference_kind"`
	CreatedBy     int64           `json:"created_by"`
}

// SignedQuantity returns the movement's contribution to the running balance.
// IN and ADJUSTMENT add, OUT subtracts.
func (m Movement) SignedQuantity() decimal.Decimal {
	if m.Kind == MovementOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// FoldMovements replays a movement history into the derived on-hand quantity.
// The fold is pure addition and subtraction, so replay order does not affect
// the result. No clamping: an inconsistent history yields a negative balance.
func FoldMovements(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.SignedQuantity())
	}
	return total
}

// StockStatus classifies a derived balance against configured thresholds.
type StockStatus string

const (
	StatusOK       StockStatus = "OK"
	StatusLow      StockStatus = "LOW"
	StatusCritical StockStatus = "CRITICAL"
	StatusExcess   StockStatus = "EXCESS"
)

// StockThresholds are the per-product classification bounds. The minStock <=
// maxStock invariant belongs to the master data layer and is not re-checked
// here.
type StockThresholds struct {
	MinStock    decimal.Decimal `json:"min_stock"`
	MaxStock    decimal.Decimal `json:"max_stock"`
	SafetyStock decimal.Decimal `json:"safety_stock"`
}

// ClassifyStatus maps a quantity to its stock status. Exactly one status holds
// for any pair; CRITICAL takes precedence over LOW when safetyStock >= minStock.
func ClassifyStatus(quantity decimal.Decimal, t StockThresholds) StockStatus {
	switch {
	case quantity.LessThan(t.SafetyStock):
		return StatusCritical
	case quantity.LessThan(t.MinStock):
		return StatusLow
	case quantity.GreaterThan(t.MaxStock):
		return StatusExcess
	default:
		return StatusOK
	}
}

// Balance summarises derived stock for a product.
type Balance struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    StockStatus     `json:"status"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

var (
	// ErrProductNotFound indicates the referenced product does not exist.
	ErrProductNotFound = errors.New("ledger: product not found")
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be positive")
	// ErrNegativeStock triggered when an exit would drive stock negative.
	ErrNegativeStock = errors.New("ledger: negative stock not allowed")
)
