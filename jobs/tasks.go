package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/foundry-erp/foundry-erp/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockAlert delivers a stock status change notice.
	TaskStockAlert = "stock:alert"
	// TaskReplan recomputes suggestions for all open production orders.
	TaskReplan = "plan:replan"
)

// NewStockAlertTask constructs an Asynq task carrying a stock status change.
func NewStockAlertTask(evt ledger.StockStatusChangedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAlert, data), nil
}

// NewReplanTask constructs an Asynq task triggering a replanning run.
func NewReplanTask() *asynq.Task {
	return asynq.NewTask(TaskReplan, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueStockAlert enqueues a stock alert delivery task.
func (c *Client) EnqueueStockAlert(ctx context.Context, evt ledger.StockStatusChangedEvent) (*asynq.TaskInfo, error) {
	task, err := NewStockAlertTask(evt)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueReplan enqueues an immediate replanning run.
func (c *Client) EnqueueReplan(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewReplanTask(), asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
