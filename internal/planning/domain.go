package planning

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
)

var (
	// ErrOrderNotFound signals a missing production order.
	ErrOrderNotFound = errors.New("planning: production order not found")
	// ErrComponentMissing signals a BOM component absent from the product
	// master. This is a data-integrity failure and aborts the run.
	ErrComponentMissing = errors.New("planning: bom component missing from product master")
	// ErrInvalidOrder signals an order violating quantity constraints.
	ErrInvalidOrder = errors.New("planning: invalid production order")
	// ErrInvalidTransition signals a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("planning: invalid status transition")
)

// OrderStatus is the production order lifecycle state.
type OrderStatus string

const (
	OrderPlanned    OrderStatus = "PLANNED"
	OrderReleased   OrderStatus = "RELEASED"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// OpenStatuses are the states eligible for requirements planning.
var OpenStatuses = []OrderStatus{OrderPlanned, OrderReleased}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPlanned:    {OrderReleased, OrderCancelled},
	OrderReleased:   {OrderInProgress, OrderCancelled},
	OrderInProgress: {OrderCompleted, OrderCancelled},
}

// CanTransition reports whether the order may move to the given state.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProductionOrder is a planned manufacturing run of one product.
type ProductionOrder struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	ProductID      int64           `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	ScheduledStart time.Time       `json:"scheduled_start"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Action is the sourcing decision for a component shortfall.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionProduce Action = "PRODUCE"
	ActionNone    Action = "NONE"
)

// ActionFor decides how a shortfall is covered: procured kinds are bought,
// manufactured kinds are produced, and a zero shortfall needs nothing.
func ActionFor(kind products.Kind, net decimal.Decimal) Action {
	if net.IsZero() {
		return ActionNone
	}
	if kind.Procured() {
		return ActionBuy
	}
	return ActionProduce
}

// Priority ranks how urgently a suggestion must be acted on.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// PriorityFor ranks a suggested date against now. Days are counted in whole
// days rounded up; overdue dates count negative and rank HIGH.
func PriorityFor(now, suggested time.Time) (Priority, int) {
	days := int(math.Ceil(suggested.Sub(now).Hours() / 24))
	switch {
	case days <= 7:
		return PriorityHigh, days
	case days <= 14:
		return PriorityMedium, days
	default:
		return PriorityLow, days
	}
}

// Requirement is one component's gross and net demand for a production run.
type Requirement struct {
	ComponentID   int64           `json:"component_id"`
	ComponentCode string          `json:"component_code"`
	ComponentName string          `json:"component_name"`
	Kind          products.Kind   `json:"kind"`
	Unit          string          `json:"unit"`
	RequiredQty   decimal.Decimal `json:"required_qty"`
	AvailableQty  decimal.Decimal `json:"available_qty"`
	OnOrderQty    decimal.Decimal `json:"on_order_qty"`
	NetQty        decimal.Decimal `json:"net_qty"`
	Action        Action          `json:"action"`
	LeadTimeDays  int             `json:"lead_time_days"`
	SuggestedDate time.Time       `json:"suggested_date"`
}

// PlanTotals summarises an order plan: the number of requirement lines, how
// many carry a shortfall, and how that shortfall splits by sourcing action.
type PlanTotals struct {
	Components int `json:"components"`
	Short      int `json:"short"`
	Buy        int `json:"buy"`
	Produce    int `json:"produce"`
}

// OrderPlan is the full requirements picture for one production order.
type OrderPlan struct {
	OrderID      int64           `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Requirements []Requirement   `json:"requirements"`
	Totals       PlanTotals      `json:"totals"`
}

// Suggestion is an actionable shortfall with urgency attached.
type Suggestion struct {
	Requirement
	Priority  Priority `json:"priority"`
	DaysUntil int      `json:"days_until"`
}

// Defaults carries lead-time fallbacks for components that do not specify one.
type Defaults struct {
	RawMaterialLeadTimeDays int
	DefaultLeadTimeDays     int
}

// LeadTimeFor resolves a component's lead time: its own value when set,
// otherwise the kind-specific fallback.
func (d Defaults) LeadTimeFor(p products.Product) int {
	if p.LeadTimeDays > 0 {
		return p.LeadTimeDays
	}
	if p.Kind == products.KindRawMaterial {
		return d.RawMaterialLeadTimeDays
	}
	return d.DefaultLeadTimeDays
}
