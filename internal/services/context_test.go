package services_test

import (
	"context"
	"testing"

	"convoy/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithEpoch(ctx, 7)
	ctx = services.WithJobID(ctx, "job-42")

	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-1" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if epoch, ok := services.EpochFromContext(ctx); !ok || epoch != 7 {
		t.Fatalf("unexpected epoch: %v %v", epoch, ok)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-42" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "")
	ctx = services.WithBatchID(ctx, "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
	if _, ok := services.BatchIDFromContext(ctx); ok {
		t.Fatal("expected no batch id value")
	}
	if _, ok := services.EpochFromContext(ctx); ok {
		t.Fatal("expected no epoch value")
	}
}
