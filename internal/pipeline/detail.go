package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"majdl/internal/lobby"
	"majdl/internal/logging"
	"majdl/internal/recordstore"
	"majdl/internal/services"
)

func (p *Pipeline) detailAll(ctx context.Context, ids []string, report *Report) error {
	p.sampler.Reset()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rctx := recordContext(ctx, recordstore.StageDetailed, id)
		if err := p.detailOne(rctx, id, i, len(ids), report); err != nil {
			if haltErr := p.recordFailed(rctx, recordstore.StageDetailed, id, err, report); haltErr != nil {
				return haltErr
			}
		}
		p.logStageProgress(ctx, recordstore.StageDetailed, i+1, len(ids))
	}
	return nil
}

// detailOne fills in data from dataUrl. A document that already has data is
// left alone, and dataUrl is never removed.
func (p *Pipeline) detailOne(ctx context.Context, id string, i, total int, report *Report) error {
	logger := logging.WithContext(ctx, p.logger)
	doc, ok, err := p.load(ctx, id)
	if err != nil || !ok {
		return err
	}
	if doc.Has(recordstore.FieldData) {
		logger.Debug("data already present",
			logging.String(logging.FieldEventType, "record_skipped"),
			logging.String("reason", "data_present"),
			progress(i, total),
		)
		return nil
	}
	url, ok := doc.DataURL()
	if !ok || url == "" {
		report.MissingSource++
		logging.WarnWithContext(logger, "record has neither data nor dataUrl", "detail_source_missing",
			logging.String(logging.FieldErrorHint, "refetch the record after removing its document"),
			logging.String(logging.FieldImpact, "record cannot be decoded"),
			progress(i, total),
		)
		return nil
	}

	logger.Info("fetching details", logging.String(logging.FieldEventType, "detail_fetch"), progress(i, total))
	blob, err := lobby.Get(ctx, p.http, url)
	if err != nil {
		return err
	}
	if err := doc.Set(recordstore.FieldData, base64.StdEncoding.EncodeToString(blob)); err != nil {
		return fmt.Errorf("set data for %s: %w", id, err)
	}
	if err := p.store.Write(id, doc); err != nil {
		return fmt.Errorf("save record %s: %w", id, err)
	}
	report.Detailed++
	logger.Info("details saved",
		logging.String(logging.FieldEventType, "detail_saved"),
		logging.Int("bytes", len(blob)),
		progress(i, total),
	)
	return nil
}

// load reads the document for id. A missing document that the ledger
// memoized is expected (the file was moved away) and reported as ok=false
// without an error.
func (p *Pipeline) load(ctx context.Context, id string) (*recordstore.Document, bool, error) {
	doc, err := p.store.Read(id)
	if err == nil {
		return doc, true, nil
	}
	if errors.Is(err, services.ErrNotFound) && p.ledger.Contains(id) {
		logging.WithContext(ctx, p.logger).Debug("memoized record has no local document",
			logging.String(logging.FieldEventType, "record_skipped"),
			logging.String("reason", "memoized_missing"),
		)
		return nil, false, nil
	}
	return nil, false, err
}
