package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StockStatusChangedEvent reports a balance crossing a threshold boundary.
// The ledger only states the fact; delivery is the subscriber's concern.
type StockStatusChangedEvent struct {
	ProductID  int64           `json:"product_id"`
	Previous   StockStatus     `json:"previous"`
	Current    StockStatus     `json:"current"`
	Quantity   decimal.Decimal `json:"quantity"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// AlertPort receives stock status change notices.
type AlertPort interface {
	Notify(ctx context.Context, evt StockStatusChangedEvent) error
}
