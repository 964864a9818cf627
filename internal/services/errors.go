package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthentication     = errors.New("authentication failure")
	ErrEnvelopeMismatch   = errors.New("unexpected envelope type")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrTransport          = errors.New("transport error")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotFound           = errors.New("not found")
)

// Disposition tells the pipeline what to do with the rest of a batch after a
// record fails.
type Disposition int

const (
	// DispositionHalt stops the batch. Completed stages stay persisted.
	DispositionHalt Disposition = iota
	// DispositionSkip records the failure and moves on to the next record.
	DispositionSkip
)

func (d Disposition) String() string {
	switch d {
	case DispositionSkip:
		return "skip"
	default:
		return "halt"
	}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// DispositionFor maps a stage error to the batch behaviour. Problems confined
// to one record's data are skipped; anything touching the session or the
// network halts.
func DispositionFor(err error) Disposition {
	switch {
	case err == nil:
		return DispositionSkip
	case errors.Is(err, ErrTransport), errors.Is(err, ErrAuthentication), errors.Is(err, ErrConfiguration):
		return DispositionHalt
	case errors.Is(err, ErrEnvelopeMismatch), errors.Is(err, ErrUnknownMessageType),
		errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return DispositionSkip
	default:
		return DispositionHalt
	}
}

// Hint returns a short operator-facing next step for a classified error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "run `majdl login` to refresh the stored session"
	case errors.Is(err, ErrTransport):
		return "check network connectivity and rerun; completed records are kept"
	case errors.Is(err, ErrEnvelopeMismatch):
		return "the stored payload is not a detail record; refetch the record"
	case errors.Is(err, ErrUnknownMessageType):
		return "the message catalog is missing a type; run `majdl schema fetch`"
	case errors.Is(err, ErrConfiguration):
		return "run `majdl config validate`"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
