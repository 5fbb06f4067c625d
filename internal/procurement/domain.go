package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound signals a missing purchase order.
	ErrNotFound = errors.New("procurement: purchase order not found")
	// ErrLineNotFound signals a missing purchase order line.
	ErrLineNotFound = errors.New("procurement: purchase order line not found")
	// ErrInvalidTransition signals a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("procurement: invalid status transition")
	// ErrInvalidLine signals a line violating quantity constraints.
	ErrInvalidLine = errors.New("procurement: invalid line")
	// ErrReceiptExceedsOrdered signals a receipt that would overfill a line.
	ErrReceiptExceedsOrdered = errors.New("procurement: receipt exceeds ordered quantity")
)

// POStatus is the purchase order lifecycle state.
type POStatus string

const (
	StatusDraft     POStatus = "DRAFT"
	StatusApproval  POStatus = "APPROVAL"
	StatusApproved  POStatus = "APPROVED"
	StatusConfirmed POStatus = "CONFIRMED"
	StatusClosed    POStatus = "CLOSED"
	StatusCancelled POStatus = "CANCELLED"
)

// committedStatuses are the states whose undelivered quantities count as
// open commitments for planning.
var committedStatuses = []POStatus{StatusApproved, StatusConfirmed}

// Terminal reports whether no further transitions are allowed.
func (s POStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

var transitions = map[POStatus]POStatus{
	StatusDraft:    StatusApproval,
	StatusApproval: StatusApproved,
	StatusApproved: StatusConfirmed,
}

// CanAdvance reports whether the order may move to the next lifecycle state.
func (s POStatus) CanAdvance(next POStatus) bool {
	return transitions[s] == next
}

// POLine is one product position on a purchase order.
type POLine struct {
	ID          int64           `json:"id"`
	POID        int64           `json:"po_id"`
	ProductID   int64           `json:"product_id"`
	OrderedQty  decimal.Decimal `json:"ordered_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Outstanding is the still-undelivered quantity of the line.
func (l POLine) Outstanding() decimal.Decimal {
	return l.OrderedQty.Sub(l.ReceivedQty)
}

// PurchaseOrder is an external replenishment order.
type PurchaseOrder struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	SupplierName string    `json:"supplier_name"`
	Status       POStatus  `json:"status"`
	Lines        []POLine  `json:"lines"`
	ExpectedDate time.Time `json:"expected_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullyReceived reports whether every line is completely delivered.
func (po PurchaseOrder) FullyReceived() bool {
	for _, line := range po.Lines {
		if line.Outstanding().IsPositive() {
			return false
		}
	}
	return true
}
