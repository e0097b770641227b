package admission

import (
	"context"
	"fmt"
)

// SequenceStore advances the per-year admission counter. It must run in the
// caller's transaction so a rolled back admission also rolls back its number.
type SequenceStore interface {
	NextSequence(ctx context.Context, year int) (int64, error)
}

// SequenceGenerator hands out admission numbers.
type SequenceGenerator struct {
	store SequenceStore
}

func NewSequenceGenerator(store SequenceStore) *SequenceGenerator {
	return &SequenceGenerator{store: store}
}

// Next returns the next number for year, e.g. ADM-2025-0042.
func (g *SequenceGenerator) Next(ctx context.Context, year int) (string, error) {
	n, err := g.store.NextSequence(ctx, year)
	if err != nil {
		return "", err
	}
	return FormatNumber(year, n), nil
}

// FormatNumber renders seq with a minimum width of four digits; values past
// 9999 keep growing rather than wrapping.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("ADM-%d-%04d", year, seq)
}
