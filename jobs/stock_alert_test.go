package jobs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/ledger"
)

type capturedRecord struct {
	level slog.Level
	msg   string
	attrs map[string]string
}

type captureHandler struct {
	records *[]capturedRecord
}

func (h captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := capturedRecord{level: r.Level, msg: r.Message, attrs: map[string]string{}}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value.String()
		return true
	})
	*h.records = append(*h.records, rec)
	return nil
}

func (h captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h captureHandler) WithGroup(string) slog.Handler      { return h }

func TestStockAlertDeliversToConfiguredRecipients(t *testing.T) {
	var records []capturedRecord
	logger := slog.New(captureHandler{records: &records})
	job := NewStockAlertJob(logger, nil, "no-reply@foundry.local", "planning@foundry.local")

	task, err := NewStockAlertTask(ledger.StockStatusChangedEvent{
		ProductID: 7,
		Previous:  ledger.StatusOK,
		Current:   ledger.StatusCritical,
		Quantity:  decimal.NewFromInt(3),
	})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, records, 1)
	require.Equal(t, slog.LevelError, records[0].level)
	require.Equal(t, "no-reply@foundry.local", records[0].attrs["from"])
	require.Equal(t, "planning@foundry.local", records[0].attrs["to"])
	require.Equal(t, string(ledger.StatusCritical), records[0].attrs["current"])
}

func TestStockAlertLowWarns(t *testing.T) {
	var records []capturedRecord
	logger := slog.New(captureHandler{records: &records})
	job := NewStockAlertJob(logger, nil, "no-reply@foundry.local", "planning@foundry.local")

	task, err := NewStockAlertTask(ledger.StockStatusChangedEvent{
		ProductID: 7,
		Previous:  ledger.StatusOK,
		Current:   ledger.StatusLow,
		Quantity:  decimal.NewFromInt(12),
	})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, records, 1)
	require.Equal(t, slog.LevelWarn, records[0].level)
	require.Equal(t, "stock low", records[0].msg)
}

func TestStockAlertHandlerSkipsBadPayload(t *testing.T) {
	job := NewStockAlertJob(slog.Default(), nil, "", "")

	err := job.Handle(context.Background(), asynq.NewTask(TaskStockAlert, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
