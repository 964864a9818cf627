package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"

	"majdl/internal/logging"
	"majdl/internal/recordstore"
	"majdl/internal/services"
)

func (p *Pipeline) decodeAll(ctx context.Context, ids []string, report *Report) error {
	p.sampler.Reset()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rctx := recordContext(ctx, recordstore.StageDecoded, id)
		if err := p.decodeOne(rctx, id, i, len(ids), report); err != nil {
			if haltErr := p.recordFailed(rctx, recordstore.StageDecoded, id, err, report); haltErr != nil {
				return haltErr
			}
		}
		p.logStageProgress(ctx, recordstore.StageDecoded, i+1, len(ids))
	}
	return nil
}

// decodeOne unwraps data into details. Documents that already have details
// are not rewritten, so a second pass leaves every file byte-identical.
func (p *Pipeline) decodeOne(ctx context.Context, id string, i, total int, report *Report) error {
	logger := logging.WithContext(ctx, p.logger)
	doc, ok, err := p.load(ctx, id)
	if err != nil || !ok {
		return err
	}
	if doc.Has(recordstore.FieldDetails) {
		report.AlreadyDecoded++
		logger.Debug("details already decoded",
			logging.String(logging.FieldEventType, "record_skipped"),
			logging.String("reason", "details_present"),
			progress(i, total),
		)
		return nil
	}
	encoded, ok := doc.Data()
	if !ok {
		logger.Debug("no data to decode",
			logging.String(logging.FieldEventType, "record_skipped"),
			logging.String("reason", "data_missing"),
			progress(i, total),
		)
		return nil
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return services.Wrap(services.ErrValidation, "decode", "base64", fmt.Sprintf("data of %s is not valid base64", id), err)
	}

	entries, err := p.codec.DecodeDetails(ctx, blob)
	if err != nil {
		return err
	}
	if err := doc.Set(recordstore.FieldDetails, entries); err != nil {
		return fmt.Errorf("set details for %s: %w", id, err)
	}
	if err := p.store.Write(id, doc); err != nil {
		return fmt.Errorf("save record %s: %w", id, err)
	}
	report.Decoded++
	logger.Info("details decoded",
		logging.String(logging.FieldEventType, "record_decoded"),
		logging.Int("entries", len(entries)),
		progress(i, total),
	)
	return nil
}
