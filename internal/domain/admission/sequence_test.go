package admission

import (
	"context"
	"testing"

	"github.com/ehr/inpatient/internal/platform/db"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		year int
		seq  int64
		want string
	}{
		{2025, 1, "ADM-2025-0001"},
		{2025, 42, "ADM-2025-0042"},
		{2025, 9999, "ADM-2025-9999"},
		{2025, 12345, "ADM-2025-12345"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.year, tt.seq); got != tt.want {
			t.Errorf("FormatNumber(%d, %d) = %s, want %s", tt.year, tt.seq, got, tt.want)
		}
	}
}

func TestSequenceGenerator_RollsBackWithUnit(t *testing.T) {
	repo := NewMemoryRepo()
	gen := NewSequenceGenerator(repo)
	tx := db.NewMemTxRunner()
	ctx := context.Background()

	first, err := gen.Next(ctx, 2025)
	if err != nil || first != "ADM-2025-0001" {
		t.Fatalf("unexpected first number %s %v", first, err)
	}

	_ = tx.InTx(ctx, func(ctx context.Context) error {
		if n, _ := gen.Next(ctx, 2025); n != "ADM-2025-0002" {
			t.Errorf("expected 0002 inside the unit, got %s", n)
		}
		return context.Canceled
	})

	if n, _ := gen.Next(ctx, 2025); n != "ADM-2025-0002" {
		t.Errorf("expected the rolled back number to be reused, got %s", n)
	}
	if n, _ := gen.Next(ctx, 2024); n != "ADM-2024-0001" {
		t.Errorf("expected an independent counter per year, got %s", n)
	}
}
