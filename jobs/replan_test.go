package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/planning"
)

type fakePlanner struct {
	purchases   []planning.Suggestion
	productions []planning.Suggestion
	err         error
}

func (f *fakePlanner) PurchaseSuggestions(ctx context.Context, orderIDs []int64) ([]planning.Suggestion, error) {
	return f.purchases, f.err
}

func (f *fakePlanner) ProductionSuggestions(ctx context.Context, orderIDs []int64) ([]planning.Suggestion, error) {
	return f.productions, f.err
}

func TestReplanJobRuns(t *testing.T) {
	planner := &fakePlanner{
		purchases: []planning.Suggestion{
			{Priority: planning.PriorityHigh, DaysUntil: 2},
			{Priority: planning.PriorityLow, DaysUntil: 20},
		},
		productions: []planning.Suggestion{
			{Priority: planning.PriorityMedium, DaysUntil: 10},
		},
	}
	job := NewReplanJob(planner, nil, slog.Default())

	require.NoError(t, job.Handle(context.Background(), NewReplanTask()))
}

func TestReplanJobPropagatesFailure(t *testing.T) {
	planner := &fakePlanner{err: errors.New("boom")}
	job := NewReplanJob(planner, nil, slog.Default())

	require.Error(t, job.Handle(context.Background(), NewReplanTask()))
}

