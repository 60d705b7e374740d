// Package folio provides sequential receipt-number (folio) allocation.
//
// Folios are human-readable receipt numbers of the form PREFIX-YEAR-SEQ
// (e.g. S-2024-0007). Each (prefix, year) pair has its own gap-free sequence
// backed by an atomically incremented counter row, so concurrent allocations
// can never produce the same folio.
package folio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// padWidth is the zero-padded width of the sequence part (E-2024-0001).
const padWidth = 4

// Querier is the subset of database operations the allocator needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierProvider returns the querier for the current context.
// Wire it to TxManager.GetQuerier so that allocation participates in the
// caller's transaction: the counter row stays locked until commit, which
// serializes concurrent allocations for the same (prefix, year) and rolls
// the increment back if the surrounding operation aborts.
type QuerierProvider func(ctx context.Context) Querier

// Allocator allocates folio numbers.
type Allocator struct {
	querier QuerierProvider
}

// New creates an allocator backed by the given querier provider.
func New(provider QuerierProvider) *Allocator {
	return &Allocator{querier: provider}
}

// NewStatic creates an allocator over a fixed querier (tests, scripts).
func NewStatic(q Querier) *Allocator {
	return &Allocator{querier: func(context.Context) Querier { return q }}
}

// Next allocates the next folio for the given prefix in the period's year.
// The counter is incremented with a single UPSERT ... RETURNING statement,
// so two concurrent calls always observe distinct sequence values.
func (a *Allocator) Next(ctx context.Context, prefix string, period time.Time) (string, error) {
	if a == nil {
		return "", fmt.Errorf("folio allocator is not initialized")
	}
	if prefix == "" {
		return "", fmt.Errorf("folio prefix is required")
	}

	year := period.Year()

	var seq int64
	err := a.querier(ctx).QueryRow(ctx, `
		INSERT INTO folio_sequences (prefix, year, current_val)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year) DO UPDATE SET current_val = folio_sequences.current_val + 1
		RETURNING current_val
	`, prefix, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next folio: %w", err)
	}

	return Format(prefix, year, seq), nil
}

// Format renders a folio string from its parts.
func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, padWidth, seq)
}

// Sequence extracts the numeric part from a formatted folio.
// Returns -1 if parsing fails.
func Sequence(formatted string) int64 {
	i := strings.LastIndex(formatted, "-")
	if i < 0 {
		return -1
	}
	seq, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil || seq < 0 {
		return -1
	}
	return seq
}
