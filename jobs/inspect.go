package jobs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// QueueStats is a snapshot of the ledger queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
}

// InspectQueue reads the ledger queue counters. A nil inspector yields empty
// stats, which is what the memory store runs with.
func InspectQueue(inspector *asynq.Inspector) (QueueStats, error) {
	if inspector == nil {
		return QueueStats{Queue: QueueLedger}, nil
	}
	info, err := inspector.GetQueueInfo(QueueLedger)
	if err != nil {
		return QueueStats{Queue: QueueLedger}, err
	}
	return QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
	}, nil
}

// Handler serves GET /jobs/health.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.queueHealth)
}

func (h *Handler) queueHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := InspectQueue(h.inspector)
	if err != nil {
		h.logger.Warn("inspect ledger queue", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "the ledger queue cannot be inspected")
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
