package pipeline

import (
	"context"
	"fmt"

	"majdl/internal/logging"
	"majdl/internal/recordstore"
	"majdl/internal/services"
)

// listAll pages through the record list. A page shorter than the page size
// ends the listing. Ids are returned in server order without duplicates.
// Ids that cannot name a document are reported once here and never reach the
// later stages.
func (p *Pipeline) listAll(ctx context.Context, session Session, report *Report) ([]string, error) {
	logger := logging.WithContext(services.WithStage(ctx, recordstore.StageListed.String()), p.logger)
	seen := make(map[string]struct{})
	var ids []string

	current := p.start
	for page := 1; ; page++ {
		logger.Info("fetching record ids",
			logging.String(logging.FieldEventType, "list_page"),
			logging.Int("page", page),
			logging.Int("start", current),
			logging.Int("count", p.pageSize),
		)
		batch, err := session.ListRecords(ctx, current, p.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list records from %d: %w", current, err)
		}
		for _, id := range batch {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if err := recordstore.ValidateID(id); err != nil {
				report.fail(id, recordstore.StageListed, err)
				logging.WarnWithContext(logger, "listed record id rejected", "record_id_invalid",
					logging.String(logging.FieldRecordID, id),
					logging.Error(err),
					logging.String(logging.FieldImpact, "record skipped in every stage"),
				)
				continue
			}
			ids = append(ids, id)
		}
		report.Pages++
		if len(batch) < p.pageSize {
			break
		}
		current += p.pageSize
	}

	report.Listed = len(ids)
	logger.Info("record listing complete",
		logging.String(logging.FieldEventType, "list_complete"),
		logging.Int("records", len(ids)),
		logging.Int("pages", report.Pages),
	)
	return ids, nil
}

func (p *Pipeline) fetchAll(ctx context.Context, session Session, ids []string, report *Report) error {
	p.sampler.Reset()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rctx := recordContext(ctx, recordstore.StageFetched, id)
		if err := p.fetchOne(rctx, session, id, i, len(ids), report); err != nil {
			if haltErr := p.recordFailed(rctx, recordstore.StageFetched, id, err, report); haltErr != nil {
				return haltErr
			}
		}
		p.logStageProgress(ctx, recordstore.StageFetched, i+1, len(ids))
	}
	return nil
}

// fetchOne downloads a record unless the ledger or the store already has it.
// The ledger entry is written last, after the document and raw dump.
func (p *Pipeline) fetchOne(ctx context.Context, session Session, id string, i, total int, report *Report) error {
	logger := logging.WithContext(ctx, p.logger)
	if err := recordstore.ValidateID(id); err != nil {
		return err
	}
	if p.ledger.Contains(id) {
		report.SkippedMemoized++
		logger.Debug("skipping memoized record",
			logging.String(logging.FieldEventType, "record_skipped"),
			logging.String("reason", "memoized"),
			progress(i, total),
		)
		return nil
	}
	if p.store.Exists(id) {
		report.SkippedExisting++
		logger.Debug("skipping existing record",
			logging.String(logging.FieldEventType, "record_skipped"),
			logging.String("reason", "exists"),
			progress(i, total),
		)
		return nil
	}

	logger.Info("fetching record", logging.String(logging.FieldEventType, "record_fetch"), progress(i, total))
	record, err := session.FetchRecord(ctx, id)
	if err != nil {
		return err
	}
	doc, err := recordstore.ParseDocument(record.JSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "fetch", "parse", fmt.Sprintf("response for %s is not a JSON object", id), err)
	}
	if err := p.store.Write(id, doc); err != nil {
		return fmt.Errorf("save record %s: %w", id, err)
	}
	if p.store.RawEnabled() {
		if err := p.store.WriteRaw(id, record.Raw); err != nil {
			return fmt.Errorf("save raw record %s: %w", id, err)
		}
	}
	if err := p.ledger.Add(id); err != nil {
		return fmt.Errorf("memoize %s: %w", id, err)
	}
	report.Fetched++
	logger.Info("record saved",
		logging.String(logging.FieldEventType, "record_saved"),
		logging.Bool("raw_dump", p.store.RawEnabled()),
		progress(i, total),
	)
	return nil
}
