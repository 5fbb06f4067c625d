package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/foundry-erp/foundry-erp/internal/planning"
)

// Planner describes the planning behaviour the replan job needs.
type Planner interface {
	PurchaseSuggestions(ctx context.Context, orderIDs []int64) ([]planning.Suggestion, error)
	ProductionSuggestions(ctx context.Context, orderIDs []int64) ([]planning.Suggestion, error)
}

// ReplanJob recomputes suggestions for all open production orders and raises
// attention on HIGH priority shortfalls.
type ReplanJob struct {
	Planner Planner
	Cache   *planning.Cache
	Logger  *slog.Logger
}

// NewReplanJob initialises the replan handler.
func NewReplanJob(planner Planner, cache *planning.Cache, logger *slog.Logger) *ReplanJob {
	return &ReplanJob{Planner: planner, Cache: cache, Logger: logger}
}

// Handle executes the replanning logic.
func (j *ReplanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Planner == nil {
		return errors.New("replan: handler not configured")
	}

	// drop stale suggestion lists so the recompute repopulates the cache
	if err := j.Cache.Bump(ctx); err != nil {
		j.Logger.Warn("cache bump failed", slog.Any("error", err))
	}

	purchases, err := j.Planner.PurchaseSuggestions(ctx, nil)
	if err != nil {
		j.Logger.Error("replan purchase pass failed", slog.Any("error", err))
		return err
	}
	productions, err := j.Planner.ProductionSuggestions(ctx, nil)
	if err != nil {
		j.Logger.Error("replan production pass failed", slog.Any("error", err))
		return err
	}

	urgent := 0
	for _, s := range append(purchases, productions...) {
		if s.Priority != planning.PriorityHigh {
			continue
		}
		urgent++
		j.Logger.Warn("urgent shortfall",
			slog.Int64("component_id", s.ComponentID),
			slog.String("component", s.ComponentCode),
			slog.String("action", string(s.Action)),
			slog.String("net_qty", s.NetQty.String()),
			slog.Int("days_until", s.DaysUntil))
	}

	j.Logger.Info("replan complete",
		slog.Int("purchase_suggestions", len(purchases)),
		slog.Int("production_suggestions", len(productions)),
		slog.Int("urgent", urgent))
	return nil
}
