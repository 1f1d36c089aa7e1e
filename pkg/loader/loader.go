// Package loader streams result rows into a local table with batched,
// parameterized INSERT statements.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/txn2/trino-materialize/pkg/pgexec"
)

// DefaultBatchSize is the number of rows per INSERT batch unless configured
// otherwise.
const DefaultBatchSize = 10

// RowSource is a one-pass, finite stream of rows. Next returns io.EOF after
// the last row. remote query handles satisfy this directly.
type RowSource interface {
	Next() ([]any, error)
}

// SliceSource adapts an in-memory row set to a RowSource.
type SliceSource struct {
	rows [][]any
	pos  int
}

// NewSliceSource creates a RowSource over rows already held in memory.
func NewSliceSource(rows [][]any) *SliceSource {
	return &SliceSource{rows: rows}
}

// Next returns the next row or io.EOF.
func (s *SliceSource) Next() ([]any, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// Load drains source into the table behind insertSQL. Full batches of
// batchSize rows reuse one prepared statement; a trailing partial batch gets
// its own statement sized exactly to the remainder. Preparing a multi-row
// INSERT has fixed cost, so reuse across full batches amortizes it.
//
// A statement failure aborts the load. Batches executed before the failure
// stay inserted; callers needing whole-table atomicity wrap the load in a
// transaction.
func Load(ctx context.Context, exec pgexec.Executor, insertSQL string, batchSize int, columnTypes []string, source RowSource) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var fullBatch pgexec.Stmt
	defer func() {
		if fullBatch != nil {
			_ = fullBatch.Close()
		}
	}()

	batch := make([][]any, 0, batchSize)
	for {
		row, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading source row: %w", err)
		}

		batch = append(batch, row)
		if len(batch) < batchSize {
			continue
		}

		if fullBatch == nil {
			fullBatch, err = prepareBatch(ctx, exec, insertSQL, columnTypes, batchSize)
			if err != nil {
				return err
			}
		}
		if err := fullBatch.Exec(ctx, flatten(batch)...); err != nil {
			return fmt.Errorf("inserting batch: %w", err)
		}
		batch = batch[:0]
	}

	if len(batch) > 0 {
		stmt, err := prepareBatch(ctx, exec, insertSQL, columnTypes, len(batch))
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		if err := stmt.Exec(ctx, flatten(batch)...); err != nil {
			return fmt.Errorf("inserting final batch: %w", err)
		}
	}
	return nil
}

// prepareBatch appends batchSize value tuples to the INSERT header, each
// placeholder cast to its column type and numbered by a 1-based index running
// across the whole statement.
func prepareBatch(ctx context.Context, exec pgexec.Executor, insertSQL string, columnTypes []string, batchSize int) (pgexec.Stmt, error) {
	var b strings.Builder
	b.WriteString(insertSQL)

	index := 1
	for i := 0; i < batchSize; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, columnType := range columnTypes {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$")
			b.WriteString(strconv.Itoa(index))
			b.WriteString("::")
			b.WriteString(columnType)
			index++
		}
		b.WriteString(")")
	}

	stmt, err := exec.Prepare(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("preparing %d-row insert: %w", batchSize, err)
	}
	return stmt, nil
}

func flatten(batch [][]any) []any {
	flat := make([]any, 0, len(batch)*len(batch[0]))
	for _, row := range batch {
		flat = append(flat, row...)
	}
	return flat
}
