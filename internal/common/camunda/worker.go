package camunda

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"mcp-frete-sistema/internal/common/config"
	"mcp-frete-sistema/internal/common/logger"
)

// JobHandler is implemented by every tool worker.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Workers keeps the job workers opened for the registered tools.
type Workers struct {
	client  zbc.Client
	logger  logger.Logger
	workers map[string]worker.JobWorker
}

func NewWorkers(client zbc.Client, log logger.Logger) *Workers {
	return &Workers{
		client:  client,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Register opens a job worker for taskType unless it is disabled in config.
func (w *Workers) Register(taskType string, wcfg config.WorkerConfig, handler JobHandler) {
	if !wcfg.Enabled {
		w.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	w.workers[taskType] = w.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	w.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Count returns the number of open workers.
func (w *Workers) Count() int {
	return len(w.workers)
}

// Stop closes every worker and waits for in-flight jobs, bounded by ctx.
func (w *Workers) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		for taskType, jw := range w.workers {
			w.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
			jw.Close()
			jw.AwaitClose()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker shutdown timed out", map[string]interface{}{"error": ctx.Err()})
	}
}
