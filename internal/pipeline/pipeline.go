package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"majdl/internal/envelope"
	"majdl/internal/ledger"
	"majdl/internal/lobby"
	"majdl/internal/logging"
	"majdl/internal/recordstore"
	"majdl/internal/services"
)

// Session is the lobby surface the pipeline needs.
type Session interface {
	ListRecords(ctx context.Context, start, count int) ([]string, error)
	FetchRecord(ctx context.Context, id string) (lobby.GameRecord, error)
	Close() error
}

// Options wires a Pipeline.
type Options struct {
	Store  *recordstore.Store
	Ledger *ledger.Ledger
	Codec  *envelope.Codec
	// HTTP fetches detail blobs from dataUrl. Defaults to http.DefaultClient.
	HTTP     lobby.HTTPDoer
	Logger   *slog.Logger
	PageSize int
	Start    int
	// DisableLock skips the run lock on the output directory.
	DisableLock bool
}

// Pipeline runs batches of records through the stages.
type Pipeline struct {
	store    *recordstore.Store
	ledger   *ledger.Ledger
	codec    *envelope.Codec
	http     lobby.HTTPDoer
	logger   *slog.Logger
	pageSize int
	start    int
	lock     bool
	sampler  *logging.ProgressSampler
}

// New validates options and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "record store is required", nil)
	}
	if opts.PageSize <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init",
			fmt.Sprintf("page size must be positive, got %d", opts.PageSize), nil)
	}
	if opts.Start < 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init",
			fmt.Sprintf("start offset must not be negative, got %d", opts.Start), nil)
	}
	p := &Pipeline{
		store:    opts.Store,
		ledger:   opts.Ledger,
		codec:    opts.Codec,
		http:     opts.HTTP,
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
		pageSize: opts.PageSize,
		start:    opts.Start,
		lock:     !opts.DisableLock,
		sampler:  logging.NewProgressSampler(10),
	}
	if p.ledger == nil {
		p.ledger = ledger.New("", opts.Logger)
	}
	if p.codec == nil {
		p.codec = envelope.NewCodec(nil, opts.Logger)
	}
	if p.http == nil {
		p.http = http.DefaultClient
	}
	return p, nil
}

// Run performs a full batch: list every record, fetch the new ones, close the
// session, then fill in details and decode them. Record-level failures are
// returned joined after the batch completes; the Report is valid either way.
func (p *Pipeline) Run(ctx context.Context, session Session) (*Report, error) {
	report := &Report{}
	release, err := p.acquire()
	if err != nil {
		return report, err
	}
	defer release()

	ids, err := p.listAll(ctx, session, report)
	if err == nil {
		err = p.fetchAll(ctx, session, ids, report)
	}
	if closeErr := session.Close(); closeErr != nil {
		logging.WarnWithContext(p.logger, "lobby session close failed", "session_close_failed",
			logging.Error(closeErr),
			logging.String(logging.FieldImpact, "none; records are already stored"),
		)
	} else {
		p.logger.InfoContext(ctx, "lobby session closed", logging.String(logging.FieldEventType, "session_closed"))
	}
	if err != nil {
		return report, err
	}

	if err := p.finish(ctx, ids, report); err != nil {
		return report, err
	}
	return report, report.Err()
}

// DecodeExisting runs the detail and decode stages over every document
// already in the output directory. Nothing is fetched from the lobby.
func (p *Pipeline) DecodeExisting(ctx context.Context) (*Report, error) {
	report := &Report{}
	release, err := p.acquire()
	if err != nil {
		return report, err
	}
	defer release()

	ids, err := p.store.IDs()
	if err != nil {
		return report, services.Wrap(services.ErrConfiguration, "pipeline", "list local", p.store.Dir(), err)
	}
	report.Listed = len(ids)
	p.logger.InfoContext(ctx, "local records found",
		logging.String(logging.FieldEventType, "local_records_listed"),
		logging.Int("count", len(ids)),
	)

	if err := p.finish(ctx, ids, report); err != nil {
		return report, err
	}
	return report, report.Err()
}

func (p *Pipeline) finish(ctx context.Context, ids []string, report *Report) error {
	if err := p.detailAll(ctx, ids, report); err != nil {
		return err
	}
	return p.decodeAll(ctx, ids, report)
}

func (p *Pipeline) acquire() (func(), error) {
	if !p.lock {
		return func() {}, nil
	}
	lock, err := AcquireLock(p.store.Dir())
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(); err != nil {
			p.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}, nil
}

// recordFailed applies the failure disposition for one record. It returns
// nil when the batch may continue and the error when it must halt.
func (p *Pipeline) recordFailed(ctx context.Context, stage recordstore.Stage, id string, err error, report *Report) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger := logging.WithContext(ctx, p.logger)
	if services.DispositionFor(err) == services.DispositionHalt {
		logging.ErrorWithContext(logger, "batch halted", "batch_halted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return err
	}
	report.fail(id, stage, err)
	logging.WarnWithContext(logger, "record failed", "decode_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
	)
	return nil
}

func recordContext(ctx context.Context, stage recordstore.Stage, id string) context.Context {
	return services.WithRecordID(services.WithStage(ctx, stage.String()), id)
}

func progress(i, total int) logging.Attr {
	return logging.String(logging.FieldProgress, fmt.Sprintf("%d/%d", i+1, total))
}

func (p *Pipeline) logStageProgress(ctx context.Context, stage recordstore.Stage, done, total int) {
	if !p.sampler.ShouldLog(stage.String(), done, total) {
		return
	}
	logging.WithContext(services.WithStage(ctx, stage.String()), p.logger).Info("stage progress",
		logging.String(logging.FieldEventType, "stage_progress"),
		logging.String(logging.FieldProgress, fmt.Sprintf("%d/%d", done, total)),
	)
}
