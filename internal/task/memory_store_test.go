package task

import (
	"context"
	"errors"
	"testing"
)

func TestJobIDIsDeterministic(t *testing.T) {
	a := JobID(KindPaymentSettlement, "ws_CO_1")
	if a != JobID(KindPaymentSettlement, "ws_CO_1") {
		t.Fatalf("expected stable id")
	}
	if a == JobID(KindPaymentSettlement, "ws_CO_2") {
		t.Fatalf("different keys must not collide")
	}
	if a == JobID("other", "ws_CO_1") {
		t.Fatalf("different kinds must not collide")
	}
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &Job{ID: "j1", Kind: KindPaymentSettlement, Key: "ws_CO_1", Status: StatusPending, MaxAttempts: 2}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, job); !errors.Is(err, ErrJobConflict) {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	claimed, err := store.Claim(ctx, "j1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed job %+v", claimed)
	}
	if _, err := store.Claim(ctx, "j1"); !errors.Is(err, ErrJobConflict) {
		t.Fatalf("running job must not be claimed twice, got %v", err)
	}

	if err := store.MarkFailed(ctx, "j1", CodeJobProcessing, "boom", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ := store.Get(ctx, "j1")
	if got.Status != StatusFailed || got.LastError != "boom" || got.ErrorCode != string(CodeJobProcessing) {
		t.Fatalf("unexpected failed job %+v", got)
	}

	if _, err := store.Claim(ctx, "j1"); err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if err := store.MarkFailed(ctx, "j1", CodeJobProcessing, "boom again", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, err := store.Claim(ctx, "j1"); !errors.Is(err, ErrJobExhausted) {
		t.Fatalf("expected exhausted after max attempts, got %v", err)
	}
}

func TestMemoryStoreTerminalAndSuccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"done", "dead"} {
		if err := store.Create(ctx, &Job{ID: id, Kind: KindPaymentSettlement, Key: id, Status: StatusPending, MaxAttempts: 5}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if _, err := store.Claim(ctx, id); err != nil {
			t.Fatalf("claim %s: %v", id, err)
		}
	}

	if err := store.MarkSucceeded(ctx, "done"); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if _, err := store.Claim(ctx, "done"); !errors.Is(err, ErrJobCompleted) {
		t.Fatalf("expected completed, got %v", err)
	}

	if err := store.MarkFailed(ctx, "dead", CodeJobUnsupported, "no handler", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	job, err := store.Claim(ctx, "dead")
	if !errors.Is(err, ErrJobExhausted) {
		t.Fatalf("expected exhausted for abandoned job, got %v", err)
	}
	if job.Status != StatusAbandoned {
		t.Fatalf("expected abandoned, got %s", job.Status)
	}

	if err := store.MarkSucceeded(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Job{ID: "j", Status: StatusPending, MaxAttempts: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := store.Get(ctx, "j")
	got.Status = StatusSucceeded
	again, _ := store.Get(ctx, "j")
	if again.Status != StatusPending {
		t.Fatalf("store leaked internal state")
	}
}
