package command

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report/report"
)

// BatchRequest describes one report in a batch file.
type BatchRequest struct {
	Report  report.Report          `json:"report"`
	Options report.OptionsOverride `json:"options,omitempty"`
	Format  report.Format          `json:"format,omitempty"`
}

// BatchLoader loads batch requests from a source.
type BatchLoader func(ctx context.Context) ([]BatchRequest, error)

// BatchExporter renders one report.
type BatchExporter interface {
	Export(ctx context.Context, format report.Format, rep report.Report, opts report.RenderOptions) report.ExportResult
}

// BatchCommand renders a list of reports into an output directory. It runs
// from the CLI or on a cron schedule.
type BatchCommand struct {
	exporter   BatchExporter
	loader     BatchLoader
	outDir     string
	defaults   report.RenderOptions
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	logger     report.Logger
	sleep      func(time.Duration)
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxRequests int
	MinInterval time.Duration
}

// BatchSummary reports what a batch run produced.
type BatchSummary struct {
	Written []string
	Failed  map[string]report.Failure
}

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// WithBatchDefaults sets the options each request overrides.
func WithBatchDefaults(opts report.RenderOptions) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.defaults = opts
	}
}

// WithBatchLogger sets the batch logger.
func WithBatchLogger(logger report.Logger) BatchOption {
	return func(cmd *BatchCommand) {
		if logger != nil {
			cmd.logger = logger
		}
	}
}

// NewScheduledReportsCommand creates a scheduled reports CLI/Cron command
// writing documents to outDir.
func NewScheduledReportsCommand(exporter BatchExporter, loader BatchLoader, outDir string, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		exporter: exporter,
		loader:   loader,
		outDir:   outDir,
		defaults: report.DefaultRenderOptions(),
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"reports-scheduled"},
			Description: "Render scheduled reports",
			Group:       "reports",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 * * * *"},
		logger:     report.NopLogger{},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// Run renders the batch read from path, or from the loader when path is
// empty.
func (c *BatchCommand) Run(ctx context.Context, path string) (BatchSummary, error) {
	return c.run(ctx, path)
}

// CronHandler executes scheduled batch renders.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		_, err := c.run(context.Background(), "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

// run renders every request. A failed report is recorded in the summary and
// does not stop the batch; write errors do.
func (c *BatchCommand) run(ctx context.Context, from string) (BatchSummary, error) {
	summary := BatchSummary{Failed: map[string]report.Failure{}}
	if c == nil {
		return summary, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.exporter == nil {
		return summary, errors.New("batch exporter is required", errors.CategoryValidation).
			WithTextCode("EXPORTER_REQUIRED")
	}
	if strings.TrimSpace(c.outDir) == "" {
		return summary, errors.New("batch output directory is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_DIR_REQUIRED")
	}

	requests, err := c.loadRequests(ctx, from)
	if err != nil {
		return summary, err
	}
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return summary, errors.Wrap(err, errors.CategoryExternal, "create output directory failed").
			WithTextCode("OUTPUT_DIR_CREATE")
	}

	for i, item := range requests {
		if c.limits.MaxRequests > 0 && i >= c.limits.MaxRequests {
			break
		}
		if i > 0 && c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
		opts := report.MergeOptions(c.defaults, item.Options)
		result := c.exporter.Export(ctx, item.Format, item.Report, opts)
		if !result.OK() {
			label := item.Report.DisplayTitle()
			if result.Failure != nil {
				summary.Failed[label] = *result.Failure
				c.logger.Errorf("batch report %q failed (%s): %v", label, result.Failure.Kind, result.Failure.Err)
			}
			continue
		}

		target := filepath.Join(c.outDir, filepath.Base(result.Success.SuggestedFilename))
		if err := os.WriteFile(target, result.Success.Document, 0o644); err != nil {
			return summary, errors.Wrap(err, errors.CategoryExternal, "write report failed").
				WithTextCode("REPORT_WRITE")
		}
		summary.Written = append(summary.Written, target)
		c.logger.Infof("batch report written: %s (%d pages)", target, result.Success.Pages)
	}
	return summary, nil
}

func (c *BatchCommand) loadRequests(ctx context.Context, from string) ([]BatchRequest, error) {
	if strings.TrimSpace(from) != "" {
		return loadBatchRequestsFromFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type batchCLI struct {
	cmd  *BatchCommand
	From string `kong:"name='from',help='Path to JSON batch report requests'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	_, err := c.cmd.run(context.Background(), c.From)
	return err
}

func loadBatchRequestsFromFile(path string) ([]BatchRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read batch file failed").
			WithTextCode("BATCH_FILE_READ")
	}

	var requests []BatchRequest
	if err := json.Unmarshal(content, &requests); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "batch file invalid JSON").
			WithTextCode("BATCH_FILE_INVALID")
	}
	return requests, nil
}

// CLIHandler exposes cleanup via CLI.
func (h *CleanupReportsHandler) CLIHandler() any {
	return &cleanupCLI{handler: h}
}

// CLIOptions describes cleanup CLI metadata.
func (h *CleanupReportsHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"reports-cleanup"},
		Description: "Remove expired report downloads",
		Group:       "reports",
	}
}

type cleanupCLI struct {
	handler *CleanupReportsHandler
}

func (c *cleanupCLI) Run() error {
	if c == nil || c.handler == nil {
		return errors.New("cleanup handler is required", errors.CategoryInternal).
			WithTextCode("CLEANUP_HANDLER_REQUIRED")
	}
	return c.handler.Execute(context.Background(), CleanupReports{})
}
