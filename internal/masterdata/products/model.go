package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a product for planning purposes.
type Kind string

const (
	KindRawMaterial  Kind = "RAW_MATERIAL"
	KindPackaging    Kind = "PACKAGING"
	KindSemiFinished Kind = "SEMI_FINISHED"
	KindFinishedGood Kind = "FINISHED_GOOD"
)

// Valid reports whether the kind is a known classification.
func (k Kind) Valid() bool {
	switch k {
	case KindRawMaterial, KindPackaging, KindSemiFinished, KindFinishedGood:
		return true
	}
	return false
}

// Procured reports whether shortages of this kind are covered by purchasing
// rather than by a production order.
func (k Kind) Procured() bool {
	return k == KindRawMaterial || k == KindPackaging
}

// Product represents a product entity.
type Product struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Kind         Kind            `json:"kind"`
	Unit         string          `json:"unit"`
	MinStock     decimal.Decimal `json:"min_stock"`
	MaxStock     decimal.Decimal `json:"max_stock"`
	SafetyStock  decimal.Decimal `json:"safety_stock"`
	LeadTimeDays int             `json:"lead_time_days"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
