// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// RetryBackoff is the base delay before Zeebe reactivates a failed job. It doubles with each
// retry already consumed.
var RetryBackoff = 5 * time.Second

// ErrorHandler turns a worker error into a job failure (retryable) or a BPMN error (business).
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := normalizeError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"jobType":            job.GetType(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"errorCode":          string(stdErr.Code),
		"bpmnErrorCode":      bpmnErr.Code,
		"details":            stdErr.Details,
		"category":           GetErrorCategory(stdErr.Code),
		"retries":            job.GetRetries(),
	})

	var sendErr error
	if retries, ok := remainingRetries(bpmnErr, job.GetRetries()); ok {
		sendErr = h.failJob(ctx, client, job, bpmnErr, retries)
	} else {
		sendErr = h.throwError(ctx, client, job, bpmnErr)
	}
	if sendErr != nil {
		h.logger.Error("Failed to report job error", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  sendErr.Error(),
		})
	}
}

// remainingRetries is the retry count to hand back to Zeebe. It never exceeds what the job has
// left and is false when the error should be thrown instead.
func remainingRetries(bpmnErr *BPMNError, jobRetries int32) (int32, bool) {
	if bpmnErr.Retries <= 0 || jobRetries <= 0 {
		return 0, false
	}
	left := jobRetries - 1
	if max := int32(bpmnErr.Retries); left > max {
		left = max
	}
	return left, true
}

func backoff(consumed int) time.Duration {
	if consumed < 0 {
		consumed = 0
	}
	if consumed > 5 {
		consumed = 5
	}
	return RetryBackoff << consumed
}

func normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int32) error {
	cmd := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(retries).
		RetryBackoff(backoff(bpmnErr.Retries - int(retries))).
		ErrorMessage(bpmnErr.Message + ": " + bpmnErr.Details)

	if withVars, err := cmd.VariablesFromString(errorVariables(bpmnErr)); err == nil {
		_, err = withVars.Send(ctx)
		return err
	}
	_, err := cmd.Send(ctx)
	return err
}

func (h *ErrorHandler) throwError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) error {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.GetKey()).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if withVars, err := cmd.VariablesFromString(errorVariables(bpmnErr)); err == nil {
		_, err = withVars.Send(ctx)
		return err
	}
	_, err := cmd.Send(ctx)
	return err
}

func errorVariables(bpmnErr *BPMNError) string {
	raw, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return "{}"
	}
	return string(raw)
}
