package reportjob

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-report/adapters/reportapi"
	reportcmd "github.com/goliatone/go-report/command"
	"github.com/goliatone/go-report/report"
)

const (
	DefaultPublishTaskID   = "report:publish"
	DefaultPublishTaskPath = "report:publish"
)

// Payload captures the job execution input.
type Payload struct {
	JobID   string               `json:"job_id"`
	Report  report.Report        `json:"report"`
	Options report.RenderOptions `json:"options"`
	Format  report.Format        `json:"format"`
}

// MessageBuilderFunc builds an execution message for non-queue paths.
type MessageBuilderFunc func(ctx context.Context) (*job.ExecutionMessage, error)

// PublishDispatch dispatches a report export command.
type PublishDispatch func(ctx context.Context, msg reportcmd.ExportReport) error

// TaskConfig configures the report publish task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	RetryPolicy    RetryPolicy
	CancelRegistry *CancelRegistry
	Results        reportapi.IdempotencyStore
	ResultTTL      time.Duration
	Logger         report.Logger
	Dispatch       PublishDispatch
	MessageBuilder MessageBuilderFunc
}

// PublishTask renders and publishes queued reports. The receipt of a finished
// job is stored in Results under the job ID.
type PublishTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	retryPolicy    RetryPolicy
	cancelRegistry *CancelRegistry
	results        reportapi.IdempotencyStore
	resultTTL      time.Duration
	logger         report.Logger
	dispatch       PublishDispatch
	messageBuilder MessageBuilderFunc
}

// NewPublishTask creates a new report publish task.
func NewPublishTask(cfg TaskConfig) *PublishTask {
	logger := cfg.Logger
	if logger == nil {
		logger = report.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultPublishTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPublishTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(ctx context.Context, msg reportcmd.ExportReport) error {
			return dispatcher.Dispatch(ctx, msg)
		}
	}

	return &PublishTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		retryPolicy:    cfg.RetryPolicy,
		cancelRegistry: cfg.CancelRegistry,
		results:        cfg.Results,
		resultTTL:      cfg.ResultTTL,
		logger:         logger,
		dispatch:       dispatch,
		messageBuilder: cfg.MessageBuilder,
	}
}

// GetID returns the task identifier.
func (t *PublishTask) GetID() string { return t.id }

// GetHandler returns a handler for non-queue execution paths.
func (t *PublishTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return report.NewError(report.KindInternal, "task is nil", nil)
		}
		if t.messageBuilder == nil {
			return report.NewError(report.KindInternal, "job message builder not configured", nil)
		}

		ctx := context.Background()
		msg, err := t.messageBuilder(ctx)
		if err != nil {
			if errors.Is(err, errExecutionSkipped) {
				return nil
			}
			return err
		}
		if msg == nil {
			return report.NewError(report.KindValidation, "execution message is required", nil)
		}
		return t.Execute(ctx, msg)
	}
}

// GetHandlerConfig returns scheduler options for the task.
func (t *PublishTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

// GetConfig returns task config defaults.
func (t *PublishTask) GetConfig() job.Config { return t.config }

// GetPath returns the task path.
func (t *PublishTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *PublishTask) GetEngine() job.Engine { return nil }

// Execute renders and publishes the report in msg, retrying per the task
// policy. Nothing is published until a render succeeds, so a retry starts
// clean.
func (t *PublishTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return report.NewError(report.KindInternal, "task is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	if payload.JobID == "" {
		return report.NewError(report.KindValidation, "job ID is required", nil)
	}

	execCtx := ctx
	if t.cancelRegistry != nil {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		release := t.cancelRegistry.Register(payload.JobID, cancel)
		defer release()
	}

	policy := t.retryPolicy
	attempt := 0
	for {
		if err := execCtx.Err(); err != nil {
			return t.fail(ctx, payload.JobID, err)
		}

		var receipt report.Receipt
		cmd := reportcmd.ExportReport{
			Report:  payload.Report,
			Options: payload.Options,
			Format:  payload.Format,
			Publish: true,
			Receipt: &receipt,
		}
		err := t.dispatch(execCtx, cmd)
		if err == nil {
			t.logger.Infof("report job %s published handle %s", payload.JobID, receipt.Handle)
			return t.storeResult(execCtx, payload.JobID, receipt)
		}

		if attempt >= policy.MaxRetries || !policy.retryable(err) {
			t.logger.Errorf("report job %s failed after %d attempts: %v", payload.JobID, attempt+1, err)
			return t.fail(ctx, payload.JobID, err)
		}

		attempt++
		if werr := wait(execCtx, policy.Delay(attempt)); werr != nil {
			return t.fail(ctx, payload.JobID, werr)
		}
	}
}

// fail records err as the job result and returns it. The record outlives a
// canceled execution context.
func (t *PublishTask) fail(ctx context.Context, jobID string, err error) error {
	if t.results == nil {
		return err
	}
	if serr := t.results.Set(context.WithoutCancel(ctx), resultKey(jobID), report.FailedReceipt(err), t.resultTTL); serr != nil {
		t.logger.Errorf("report job %s failure not recorded: %v", jobID, serr)
	}
	return err
}

func (t *PublishTask) storeResult(ctx context.Context, jobID string, receipt report.Receipt) error {
	if t.results == nil || receipt.Handle == "" {
		return nil
	}
	return t.results.Set(ctx, resultKey(jobID), receipt, t.resultTTL)
}

func resultKey(jobID string) string {
	return "job:" + jobID
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, report.NewError(report.KindValidation, "payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, report.NewError(report.KindValidation, "job payload is required", nil)
	}

	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, report.NewError(report.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, report.NewError(report.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, report.NewError(report.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, report.NewError(report.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, report.NewError(report.KindValidation, "job payload is invalid", err)
	}
	return payload, nil
}
