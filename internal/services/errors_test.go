package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"majdl/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "detail", "download", "dataUrl request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"detail", "download", "dataUrl request failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestDispositionFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Disposition
	}{
		{"mismatch", services.Wrap(services.ErrEnvelopeMismatch, "decode", "open", "", nil), services.DispositionSkip},
		{"unknown type", services.Wrap(services.ErrUnknownMessageType, "decode", "resolve", "", nil), services.DispositionSkip},
		{"validation", fmt.Errorf("outer: %w", services.ErrValidation), services.DispositionSkip},
		{"not found", services.ErrNotFound, services.DispositionSkip},
		{"transport", services.Wrap(services.ErrTransport, "fetch", "rpc", "", errors.New("eof")), services.DispositionHalt},
		{"auth", services.ErrAuthentication, services.DispositionHalt},
		{"unclassified", errors.New("disk full"), services.DispositionHalt},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.DispositionFor(tc.err); got != tc.want {
				t.Fatalf("DispositionFor(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestHintMentionsLoginForAuthFailures(t *testing.T) {
	hint := services.Hint(services.Wrap(services.ErrAuthentication, "login", "oauth2", "", nil))
	if !strings.Contains(hint, "majdl login") {
		t.Fatalf("unexpected hint %q", hint)
	}
	if services.Hint(errors.New("x")) != "check logs for details" {
		t.Fatal("expected generic hint")
	}
}
