package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"biomtype/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "validate", "fetch prep", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"validate", "fetch prep", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		want      string
		retryable bool
	}{
		{nil, "", false},
		{services.Wrap(services.ErrValidation, "validate", "load", "bad", nil), "validation", false},
		{services.Wrap(services.ErrConfiguration, "validate", "reconcile", "bad", nil), "configuration", false},
		{services.Wrap(services.ErrNotFound, "validate", "load", "gone", nil), "not_found", false},
		{fmt.Errorf("outer: %w", context.DeadlineExceeded), "timeout", true},
		{services.Wrap(services.ErrExternalTool, "qiita", "get", "500", nil), "external", true},
		{errors.New("plain"), "transient", true},
	}
	for _, tt := range tests {
		if got := services.Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
		if got := services.Retryable(tt.err); got != tt.retryable {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}
