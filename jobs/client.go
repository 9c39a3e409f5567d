package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client enqueues ledger tasks.
type Client struct {
	client *asynq.Client
}

func NewClient(redis asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redis)}
}

// EnqueueGLIntegrity queues an on-demand integrity check.
func (c *Client) EnqueueGLIntegrity(ctx context.Context, payload GLIntegrityPayload) (*asynq.TaskInfo, error) {
	task, err := NewGLIntegrityTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, integrityTaskOptions()...)
}

func (c *Client) Close() error {
	return c.client.Close()
}
