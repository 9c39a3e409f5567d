package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueLedger carries every ledger task.
	QueueLedger = "ledger"
	// TaskLedgerGLIntegrity verifies the books of one or every tenant.
	TaskLedgerGLIntegrity = "ledger:gl_integrity"

	integrityMaxRetry = 3
	integrityTimeout  = 10 * time.Minute
)

func integrityTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(integrityMaxRetry),
		asynq.Timeout(integrityTimeout),
	}
}

// GLIntegrityPayload selects what the integrity check covers. A zero TenantID
// checks every tenant; an empty AsOf checks up to the run date.
type GLIntegrityPayload struct {
	TenantID int64  `json:"tenant_id,omitempty"`
	AsOf     string `json:"as_of,omitempty"`
}

func (p GLIntegrityPayload) asOf() (*time.Time, error) {
	if p.AsOf == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", p.AsOf)
	if err != nil {
		return nil, fmt.Errorf("gl integrity: as_of %q: %w", p.AsOf, err)
	}
	return &t, nil
}

// NewGLIntegrityTask validates the payload and wraps it in a task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	if _, err := payload.asOf(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerGLIntegrity, data), nil
}
