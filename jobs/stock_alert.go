package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/foundry-erp/foundry-erp/internal/ledger"
	"github.com/foundry-erp/foundry-erp/internal/observability"
)

// Notifier turns ledger stock status changes into queued alert tasks. It
// implements the ledger's alert port so threshold crossings observed during
// movement posting are delivered out of band.
type Notifier struct {
	client *Client
	logger *slog.Logger
}

// NewNotifier constructs a queue backed notifier.
func NewNotifier(client *Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Notify enqueues a stock alert delivery task.
func (n *Notifier) Notify(ctx context.Context, evt ledger.StockStatusChangedEvent) error {
	if n == nil || n.client == nil {
		return nil
	}
	if _, err := n.client.EnqueueStockAlert(ctx, evt); err != nil {
		n.logger.Error("enqueue stock alert failed",
			slog.Int64("product_id", evt.ProductID),
			slog.Any("error", err))
		return err
	}
	return nil
}

// StockAlertJob delivers stock status change notices to the configured
// recipients.
type StockAlertJob struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	From    string
	To      string
}

// NewStockAlertJob initialises the stock alert handler. From and To name the
// notification sender and recipient addresses.
func NewStockAlertJob(logger *slog.Logger, metrics *observability.Metrics, from, to string) *StockAlertJob {
	return &StockAlertJob{Logger: logger, Metrics: metrics, From: from, To: to}
}

// Handle executes the alert delivery logic.
func (j *StockAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("stock alert: handler not configured")
	}
	var evt ledger.StockStatusChangedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return asynq.SkipRetry
	}

	notice := []any{
		slog.Int64("product_id", evt.ProductID),
		slog.String("previous", string(evt.Previous)),
		slog.String("current", string(evt.Current)),
		slog.String("quantity", evt.Quantity.String()),
		slog.String("from", j.From),
		slog.String("to", j.To),
	}
	switch evt.Current {
	case ledger.StatusCritical:
		j.Logger.Error("stock critical", notice...)
	case ledger.StatusLow:
		j.Logger.Warn("stock low", notice...)
	default:
		j.Logger.Info("stock status changed", notice...)
	}

	if j.Metrics != nil {
		j.Metrics.RecordStockAlert(string(evt.Current))
	}
	return nil
}
