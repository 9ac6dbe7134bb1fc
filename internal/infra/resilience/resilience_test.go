package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/infra/resilience"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
	}

	sentinel := errors.New("conflicting write")
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return resilience.Permanent(sentinel)
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the wrapped error back, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call for a permanent error, got %d", callCount)
	}
}

func TestRetryWithBackoff_CapsBackoff(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     4,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	}

	start := time.Now()
	_ = resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	// Uncapped the waits would be 10+20+40+80ms before jitter; capped they
	// stay under 4*(20+10)ms.
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("backoff not capped: took %v", elapsed)
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestBulkhead_TryAcquire(t *testing.T) {
	bh := resilience.NewBulkhead(1)

	if !bh.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}
	if bh.TryAcquire() {
		t.Fatal("expected second TryAcquire to fail when saturated")
	}

	bh.Release()

	if !bh.TryAcquire() {
		t.Fatal("expected TryAcquire to succeed after release")
	}
}

func TestBulkhead_Execute(t *testing.T) {
	bh := resilience.NewBulkhead(1)

	ran := false
	err := bh.Execute(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected fn to run, ran=%v err=%v", ran, err)
	}

	// Slot must be released after Execute returns, even on error.
	wantErr := errors.New("boom")
	if err := bh.Execute(context.Background(), func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error surfaced, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected slot free after Execute, got %v", err)
	}
}
