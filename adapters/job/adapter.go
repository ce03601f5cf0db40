package reportjob

import (
	"context"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-report/adapters/reportapi"
	"github.com/goliatone/go-report/report"
)

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// EnqueuerFunc adapts a function to an Enqueuer.
type EnqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f EnqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return report.NewError(report.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

// Config configures the go-job report scheduler.
type Config struct {
	Enqueuer Enqueuer
	Results  reportapi.IdempotencyStore
	Builder  *MessageBuilder
	Logger   report.Logger
}

// Ticket identifies a background report job. Done is set when the result was
// already available at request time.
type Ticket struct {
	JobID   string         `json:"job_id"`
	Done    bool           `json:"done"`
	Receipt report.Receipt `json:"receipt,omitzero"`
}

// Scheduler enqueues report publish jobs and reports their results.
type Scheduler struct {
	enqueuer Enqueuer
	results  reportapi.IdempotencyStore
	builder  *MessageBuilder
	logger   report.Logger
}

// NewScheduler creates a new job scheduler adapter.
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = report.NopLogger{}
	}
	builder := cfg.Builder
	if builder == nil {
		builder = NewMessageBuilder(MessageBuilderConfig{Results: cfg.Results})
	}

	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		results:  cfg.Results,
		builder:  builder,
		logger:   logger,
	}
}

// RequestReport validates req and enqueues a publish job for it.
func (s *Scheduler) RequestReport(ctx context.Context, req ReportRequest) (Ticket, error) {
	if s == nil {
		return Ticket{}, report.NewError(report.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return Ticket{}, report.NewError(report.KindInternal, "job enqueuer not configured", nil)
	}

	result, err := s.builder.Build(ctx, req)
	if err != nil {
		return Ticket{}, err
	}
	if result.Reused {
		s.logger.Debugf("report job %s reused", result.JobID)
		return Ticket{JobID: result.JobID, Done: true, Receipt: result.Receipt}, nil
	}

	if err := s.enqueuer.Enqueue(ctx, result.Message); err != nil {
		s.logger.Errorf("report job %s enqueue failed: %v", result.JobID, err)
		return Ticket{JobID: result.JobID}, err
	}
	s.logger.Debugf("report job %s enqueued", result.JobID)
	return Ticket{JobID: result.JobID}, nil
}

// Result returns the receipt of a finished job. A job that failed yields a
// receipt with Failed set. ok is false while the job is pending or once the
// result expired.
func (s *Scheduler) Result(ctx context.Context, jobID string) (report.Receipt, bool, error) {
	if s == nil {
		return report.Receipt{}, false, report.NewError(report.KindInternal, "scheduler is nil", nil)
	}
	if jobID == "" {
		return report.Receipt{}, false, report.NewError(report.KindValidation, "job ID is required", nil)
	}
	if s.results == nil {
		return report.Receipt{}, false, report.NewError(report.KindInternal, "result store not configured", nil)
	}
	return s.results.Get(ctx, resultKey(jobID))
}
