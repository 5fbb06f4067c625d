package products

import "github.com/shopspring/decimal"

// ProductForm carries create/update payloads.
type ProductForm struct {
	Code         string          `json:"code" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Kind         string          `json:"kind" validate:"required,oneof=RAW_MATERIAL PACKAGING SEMI_FINISHED FINISHED_GOOD"`
	Unit         string          `json:"unit" validate:"required"`
	MinStock     decimal.Decimal `json:"min_stock"`
	MaxStock     decimal.Decimal `json:"max_stock"`
	SafetyStock  decimal.Decimal `json:"safety_stock"`
	LeadTimeDays int             `json:"lead_time_days" validate:"gte=0"`
	IsActive     bool            `json:"is_active"`
}
