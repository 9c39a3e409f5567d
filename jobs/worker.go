package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 5

// WorkerOptions configures NewWorker.
type WorkerOptions struct {
	Redis       asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Integrity   *GLIntegrityJob
	// IntegrityCron schedules a check of every tenant. Empty disables the
	// scheduler; enqueued tasks are still consumed.
	IntegrityCron string
}

// Worker consumes ledger tasks and runs the periodic integrity schedule.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker builds the asynq server, registers the ledger task handlers and,
// when a cron spec is given, the integrity schedule.
func NewWorker(opts WorkerOptions) (*Worker, error) {
	if opts.Integrity == nil {
		return nil, errors.New("jobs: worker needs an integrity job")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	w := &Worker{logger: logger, mux: asynq.NewServeMux()}
	w.mux.HandleFunc(TaskLedgerGLIntegrity, opts.Integrity.Handle)
	w.server = asynq.NewServer(opts.Redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueLedger: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("ledger task failed",
				slog.String("type", task.Type()),
				slog.String("payload", string(task.Payload())),
				slog.Any("error", err))
		}),
	})

	if opts.IntegrityCron == "" {
		return w, nil
	}
	task, err := NewGLIntegrityTask(GLIntegrityPayload{})
	if err != nil {
		return nil, err
	}
	w.scheduler = asynq.NewScheduler(opts.Redis, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := w.scheduler.Register(opts.IntegrityCron, task, integrityTaskOptions()...); err != nil {
		return nil, fmt.Errorf("jobs: schedule %q: %w", opts.IntegrityCron, err)
	}
	return w, nil
}

// Run processes tasks until ctx is cancelled or the server stops.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("jobs: worker not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			w.scheduler.Shutdown()
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		w.server.Shutdown()
		return nil
	})
	w.logger.Info("worker started",
		slog.String("queue", QueueLedger),
		slog.Bool("scheduler", w.scheduler != nil))
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
