package reportjob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-report/adapters/reportapi"
	reportcmd "github.com/goliatone/go-report/command"
	"github.com/goliatone/go-report/report"
	"github.com/google/uuid"
)

var errExecutionSkipped = errors.New("report execution skipped")

// ReportRequest asks for a report to be rendered and published in the
// background. A zero Options value means the builder defaults.
type ReportRequest struct {
	Report         report.Report        `json:"report"`
	Options        report.RenderOptions `json:"options"`
	Format         report.Format        `json:"format"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// MessageBuilderConfig configures message building for report jobs.
type MessageBuilderConfig struct {
	Results     reportapi.IdempotencyStore
	Defaults    report.RenderOptions
	TaskID      string
	TaskPath    string
	Config      job.Config
	IDGenerator func() string
}

// MessageBuilder builds execution messages for report jobs.
type MessageBuilder struct {
	results     reportapi.IdempotencyStore
	defaults    report.RenderOptions
	taskID      string
	taskPath    string
	config      job.Config
	idGenerator func() string
}

// BuildResult captures the outcome of message building. Reused is set when a
// job with the same idempotency signature already finished.
type BuildResult struct {
	JobID     string
	Message   *job.ExecutionMessage
	Signature string
	Receipt   report.Receipt
	Reused    bool
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(cfg MessageBuilderConfig) *MessageBuilder {
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultPublishTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultPublishTaskPath
	}
	defaults := cfg.Defaults
	if defaults == (report.RenderOptions{}) {
		defaults = report.DefaultRenderOptions()
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}

	return &MessageBuilder{
		results:     cfg.Results,
		defaults:    defaults,
		taskID:      taskID,
		taskPath:    taskPath,
		config:      cfg.Config,
		idGenerator: idGen,
	}
}

// Build prepares an execution message for req. Requests carrying an
// idempotency key get a job ID derived from the key and payload, so a retried
// request maps to the same job and the same result.
func (b *MessageBuilder) Build(ctx context.Context, req ReportRequest) (BuildResult, error) {
	if b == nil {
		return BuildResult{}, report.NewError(report.KindInternal, "message builder is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if req.Options == (report.RenderOptions{}) {
		req.Options = b.defaults
	}
	if req.Format == "" {
		req.Format = report.FormatPDF
	}
	check := reportcmd.ExportReport{Report: req.Report, Options: req.Options, Format: req.Format}
	if err := check.Validate(); err != nil {
		return BuildResult{}, err
	}
	if _, err := report.ResolveGeometry(req.Options); err != nil {
		return BuildResult{}, err
	}

	jobID := ""
	signature := ""
	if req.IdempotencyKey != "" {
		signature = buildSignature(req)
		jobID = "job-" + signature[:24]
		if b.results != nil {
			receipt, ok, err := b.results.Get(ctx, resultKey(jobID))
			if err != nil {
				return BuildResult{}, err
			}
			if ok && !receipt.Failed() {
				return BuildResult{JobID: jobID, Signature: signature, Receipt: receipt, Reused: true}, nil
			}
		}
	} else {
		jobID = b.idGenerator()
	}
	if jobID == "" {
		return BuildResult{}, report.NewError(report.KindInternal, "job ID generator returned an empty ID", nil)
	}

	encoded, err := encodePayload(Payload{
		JobID:   jobID,
		Report:  req.Report,
		Options: req.Options,
		Format:  req.Format,
	})
	if err != nil {
		return BuildResult{JobID: jobID, Signature: signature}, err
	}

	msg := &job.ExecutionMessage{
		JobID:      b.taskID,
		ScriptPath: b.taskPath,
		Config:     b.config,
		Parameters: map[string]any{"payload": encoded},
	}
	if signature != "" {
		msg.IdempotencyKey = signature
		msg.DedupPolicy = job.DedupPolicyMerge
	}

	return BuildResult{JobID: jobID, Message: msg, Signature: signature}, nil
}

// BuildMessage returns an execution message or signals a no-op when the
// request was already served.
func (b *MessageBuilder) BuildMessage(ctx context.Context, req ReportRequest) (*job.ExecutionMessage, error) {
	result, err := b.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.Reused {
		return nil, errExecutionSkipped
	}
	if result.Message == nil {
		return nil, report.NewError(report.KindValidation, "execution message is required", nil)
	}
	return result.Message, nil
}

func buildSignature(req ReportRequest) string {
	payload := struct {
		Key         string               `json:"key"`
		Title       string               `json:"title"`
		Body        string               `json:"body"`
		GeneratedAt string               `json:"generated_at"`
		Format      report.Format        `json:"format"`
		Options     report.RenderOptions `json:"options"`
	}{
		Key:         req.IdempotencyKey,
		Title:       req.Report.Title,
		Body:        req.Report.Body,
		GeneratedAt: req.Report.GeneratedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
		Format:      req.Format,
		Options:     req.Options,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
