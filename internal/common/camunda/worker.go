// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"assetid-workers/internal/common/logger"
)

// Worker is the lifecycle every job handler exposes to the worker manager.
type Worker interface {
	Register() error
	Close()
	GetTaskType() string
	IsEnabled() bool
	HealthCheck(ctx context.Context) error
}

// WorkerOptions configures a job worker subscription.
type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
	Handler       worker.JobHandler
}

// OpenWorker subscribes handler to the task type.
func (c *Client) OpenWorker(opts WorkerOptions) worker.JobWorker {
	return c.client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(opts.Handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		RequestTimeout(c.config.RequestTimeout).
		Name(fmt.Sprintf("%s-worker", opts.TaskType)).
		Open()
}

// CompleteJob sends the completion with retry on transient gateway errors.
func (c *Client) CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, variables map[string]interface{}, log logger.Logger) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		log.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return err
	}

	err = c.ExecuteWithRetry(ctx, "complete-job", func(ctx context.Context) error {
		_, err := request.Send(ctx)
		return err
	})
	if err != nil {
		log.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
	return err
}
