package sheets

import "context"

// TableWriter replaces the mirrored table for a data year.
type TableWriter interface {
	WriteTable(ctx context.Context, year int, rows [][]any) error
}
