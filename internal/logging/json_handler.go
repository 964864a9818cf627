package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// jsonHandler writes one JSON object per line. Record, stage and run ids
// carried by the context are added to every line logged with a *Context
// method, unless the logger already has them bound.
type jsonHandler struct {
	slog.Handler
	bound   map[string]bool
	grouped bool
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			case FieldStage:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			}
			return attr
		},
	}
	return &jsonHandler{Handler: slog.NewJSONHandler(w, &opts)}
}

func (h *jsonHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.grouped {
		return h.Handler.Handle(ctx, r)
	}
	present := map[string]bool{}
	r.Attrs(func(attr slog.Attr) bool {
		present[attr.Key] = true
		return true
	})
	for _, attr := range ContextFields(ctx) {
		if !h.bound[attr.Key] && !present[attr.Key] {
			r.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for key := range h.bound {
		bound[key] = true
	}
	if !h.grouped {
		for _, attr := range attrs {
			bound[attr.Key] = true
		}
	}
	return &jsonHandler{Handler: h.Handler.WithAttrs(attrs), bound: bound, grouped: h.grouped}
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &jsonHandler{Handler: h.Handler.WithGroup(name), bound: h.bound, grouped: true}
}
