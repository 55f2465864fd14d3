package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatusWithoutChecks(t *testing.T) {
	report := NewService().Status(context.Background())
	if !report.OK || report.Checks != nil {
		t.Fatalf("expected ok with no checks, got %+v", report)
	}
}

func TestStatusReportsFailures(t *testing.T) {
	svc := NewService()
	svc.Register("database", func(ctx context.Context) error { return nil })
	svc.Register("queue", func(ctx context.Context) error { return errors.New("unreachable") })
	svc.Register("ignored", nil)

	report := svc.Status(context.Background())
	if report.OK {
		t.Fatalf("expected failure, got %+v", report)
	}
	if report.Checks["database"] != "ok" || report.Checks["queue"] != "unreachable" {
		t.Fatalf("unexpected checks: %+v", report.Checks)
	}
	if _, ok := report.Checks["ignored"]; ok {
		t.Fatalf("nil check should not be registered")
	}
}

func TestStatusBoundsSlowChecks(t *testing.T) {
	svc := NewService()
	svc.Timeout = 10 * time.Millisecond
	svc.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	report := svc.Status(context.Background())
	if report.OK {
		t.Fatalf("expected timeout failure")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("check was not bounded by timeout")
	}
}
