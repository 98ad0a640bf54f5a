package fetcher

import (
	"context"
	"errors"
	"fmt"
	"gcdfetch/lib/credentials"
	"gcdfetch/lib/gcd"
	"gcdfetch/lib/history"
	"gcdfetch/lib/notify"
	"gcdfetch/lib/telemetry"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ErrNotice is returned for a notice when Options.FailOnNotice is set.
var ErrNotice = errors.New("portal answered with a notice")

type Status string

const (
	StatusSaved     Status = "saved"
	StatusDuplicate Status = "duplicate"
	StatusNotice    Status = "notice"
)

type Result struct {
	RunId    string
	Status   Status
	Identity string

	// set for StatusSaved
	Path  string
	Bytes int64

	// set for StatusNotice
	Notice string
}

type Options struct {
	Portal    gcd.Options
	OutputDir string
	// treat a notice as a failed run
	FailOnNotice bool
}

type Service struct {
	credentials credentials.Provider
	history     history.Store
	notifier    notify.Notifier
	opts        Options
	logger      *slog.Logger
}

func NewService(
	creds credentials.Provider,
	store history.Store,
	notifier notify.Notifier,
	opts Options,
	logger *slog.Logger,
) Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return Service{
		credentials: creds,
		history:     store,
		notifier:    notifier,
		opts:        opts,
		logger:      logger,
	}
}

// Run downloads the current dump unless its identity is already in the
// history. the history is only appended to once the dump is on disk.
func (s Service) Run(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	runId := uuid.NewString()
	logger := s.logger.With("run_id", runId)
	span.SetAttributes(attribute.String("gcd.run_id", runId))

	result, err := s.run(ctx, logger)
	result.RunId = runId

	status := string(result.Status)
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	if result.Status != StatusDuplicate {
		s.notify(ctx, logger, result, err)
	}
	telemetry.RecordProcessStats(ctx)

	return result, err
}

func (s Service) run(ctx context.Context, logger *slog.Logger) (Result, error) {
	records, err := s.history.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	logger.DebugContext(ctx, "loaded history", "records", len(records))

	creds, err := s.credentials.Resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	logger.InfoContext(ctx, "resolved credentials", "credentials", creds)

	portal := s.opts.Portal
	portal.Logger = logger
	client, err := gcd.NewClient(portal)
	if err != nil {
		return Result{}, err
	}
	defer client.Close()

	loginToken, err := client.FetchLoginToken(ctx)
	if err != nil {
		return Result{}, err
	}
	err = client.LoginUsernamePassword(ctx, loginToken, creds.Username, creds.Password)
	if err != nil {
		return Result{}, err
	}
	logger.InfoContext(ctx, "logged in", "username", creds.Username)

	page, err := client.FetchDownloadPage(ctx)
	if err != nil {
		return Result{}, err
	}
	result := Result{Identity: page.Identity}

	if records.Contains(page.Identity) {
		logger.InfoContext(ctx, "dump was already downloaded", "identity", page.Identity)
		result.Status = StatusDuplicate
		return result, nil
	}

	logger.InfoContext(ctx, "requesting dump", "identity", page.Identity)
	payload, err := client.TriggerDownload(ctx, page.Token)
	if err != nil {
		return result, err
	}
	defer payload.Close()

	finalizer := gcd.Finalizer{
		Dir:            s.opts.OutputDir,
		NoticeSelector: portal.NoticeSelector,
	}
	outcome, err := finalizer.Finalize(ctx, payload, page.Identity)
	if err != nil {
		return result, err
	}

	switch outcome := outcome.(type) {
	case gcd.Saved:
		err = s.history.Append(ctx, page.Identity)
		if err != nil {
			return result, err
		}
		result.Status = StatusSaved
		result.Path = outcome.Path
		result.Bytes = outcome.Bytes
		logger.InfoContext(ctx, "saved dump", "identity", page.Identity, "path", outcome.Path, "bytes", outcome.Bytes)
	case gcd.Notice:
		result.Status = StatusNotice
		result.Notice = outcome.Text
		logger.WarnContext(ctx, "portal answered with a notice", "identity", page.Identity, "notice", outcome.Text)
		if s.opts.FailOnNotice {
			return result, fmt.Errorf("%w: %s", ErrNotice, outcome.Text)
		}
	default:
		return result, fmt.Errorf("unknown download outcome %T", outcome)
	}

	return result, nil
}

func summarize(result Result, runErr error) notify.Message {
	if runErr != nil {
		return notify.Message{
			Subject: "gcdfetch: run failed",
			Body:    fmt.Sprintf("run %s failed: %s", result.RunId, runErr.Error()),
		}
	}
	switch result.Status {
	case StatusSaved:
		return notify.Message{
			Subject: fmt.Sprintf("gcdfetch: saved dump %s", result.Identity),
			Body:    fmt.Sprintf("run %s saved %d bytes to %s", result.RunId, result.Bytes, result.Path),
		}
	default:
		return notify.Message{
			Subject: fmt.Sprintf("gcdfetch: notice for dump %s", result.Identity),
			Body:    fmt.Sprintf("run %s got a notice instead of the dump:\n\n%s", result.RunId, result.Notice),
		}
	}
}

func (s Service) notify(ctx context.Context, logger *slog.Logger, result Result, runErr error) {
	err := s.notifier.Notify(ctx, summarize(result, runErr))
	if err != nil {
		logger.WarnContext(ctx, "failed to send notification", "err", err)
	}
}
