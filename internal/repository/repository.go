// Package repository implements the idempotent, chunked upsert contract
// of spec.md §4.4 over any gorm model, grounded on the teacher's
// CreateInBatches usage and the context-based Save/GetHistory interface
// shape from other_examples/wyfcoding-financialTrading.
package repository

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leeksaver/internal/errkind"
)

// maxBindParams is the per-statement bind-parameter ceiling (P7) that
// chunk_size*columns must stay under.
const maxBindParams = 32767

// boundChunkSize caps requested against the widest chunk size T's column
// count allows within maxBindParams, so callers never have to hand-tune
// chunk size per table width.
func boundChunkSize[T any](requested int) int {
	columns := reflect.TypeOf(*new(T)).NumField()
	if columns < 1 {
		columns = 1
	}
	ceiling := maxBindParams / columns
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}

// ChunkError names the first chunk that failed to write; earlier chunks
// are NOT rolled back (each chunk is its own transaction), so the caller
// can resume from FailedChunkIndex+1 after investigating.
type ChunkError struct {
	FailedChunkIndex int
	Err              error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed: %v", e.FailedChunkIndex, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Repository is a generic idempotent-upsert store over model T, keyed on
// conflictColumns. T must be a gorm model (pointer receiver not required).
type Repository[T any] struct {
	db             *gorm.DB
	conflictCols   []clause.Column
	updateCols     []string
	chunkSize      int
}

// New builds a Repository for T, upserting on conflictColumns and
// refreshing updateColumns on conflict. updateColumns should list every
// non-key column; pass nil to update none (insert-if-absent semantics,
// useful for append-mostly tables with a few mutable columns).
func New[T any](db *gorm.DB, conflictColumns []string, updateColumns []string, chunkSize int) *Repository[T] {
	chunkSize = boundChunkSize[T](chunkSize)
	cols := make([]clause.Column, len(conflictColumns))
	for i, c := range conflictColumns {
		cols[i] = clause.Column{Name: c}
	}
	return &Repository[T]{db: db, conflictCols: cols, updateCols: updateColumns, chunkSize: chunkSize}
}

// Upsert writes rows idempotently on the configured primary key, chunked
// at chunkSize rows per transaction. A failing chunk surfaces as
// *ChunkError naming the first failed index; earlier chunks remain
// committed.
func (r *Repository[T]) Upsert(ctx context.Context, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	onConflict := clause.OnConflict{
		Columns:   r.conflictCols,
		DoUpdates: clause.AssignmentColumns(r.updateCols),
	}
	if len(r.updateCols) == 0 {
		onConflict.DoNothing = true
	}

	for i := 0; i < len(rows); i += r.chunkSize {
		end := i + r.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[i:end]
		err := r.db.WithContext(ctx).Clauses(onConflict).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&chunk).Error
		})
		if err != nil {
			return &ChunkError{FailedChunkIndex: i / r.chunkSize, Err: errkind.New(errkind.WriteConflict, "Repository.Upsert", err)}
		}
	}
	return nil
}

// BulkInsertIgnore appends rows, silently skipping any that collide with
// an existing unique key. Used for append-only datasets (news,
// dragon_tiger) where a "conflict" just means "already have it".
func (r *Repository[T]) BulkInsertIgnore(ctx context.Context, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	onConflict := clause.OnConflict{DoNothing: true}
	for i := 0; i < len(rows); i += r.chunkSize {
		end := i + r.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[i:end]
		err := r.db.WithContext(ctx).Clauses(onConflict).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&chunk).Error
		})
		if err != nil {
			return &ChunkError{FailedChunkIndex: i / r.chunkSize, Err: errkind.New(errkind.WriteConflict, "Repository.BulkInsertIgnore", err)}
		}
	}
	return nil
}

// DB exposes the underlying handle for range queries that need custom
// trade_date/timestamp filtering (partition pruning per spec.md §4.4).
func (r *Repository[T]) DB() *gorm.DB { return r.db }

// DistinctCodesSince returns the distinct `code` values with at least one
// row where dateColumn is on or after since — the generic form of the
// Data Doctor's per-dataset coverage check, usable against any model that
// carries a code column (valuation, financial, not just daily bars).
func (r *Repository[T]) DistinctCodesSince(ctx context.Context, dateColumn string, since time.Time) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(new(T)).
		Where(fmt.Sprintf("%s >= ?", dateColumn), since).
		Distinct("code").
		Pluck("code", &codes).Error
	return codes, err
}

// MaxColumnDate returns the latest value of dateColumn across all rows,
// or the zero time if the table is empty.
func (r *Repository[T]) MaxColumnDate(ctx context.Context, dateColumn string) (time.Time, error) {
	var max time.Time
	err := r.db.WithContext(ctx).
		Model(new(T)).
		Select(fmt.Sprintf("MAX(%s)", dateColumn)).
		Row().Scan(&max)
	return max, err
}

// CountWhere counts rows where dateColumn is on or after since and the
// extra condition (a raw SQL fragment with its own args) holds — the Data
// Doctor's generic quality-rule primitive.
func (r *Repository[T]) CountWhere(ctx context.Context, dateColumn string, since time.Time, condition string, args ...interface{}) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(new(T)).Where(fmt.Sprintf("%s >= ?", dateColumn), since)
	if condition != "" {
		q = q.Where(condition, args...)
	}
	err := q.Count(&count).Error
	return count, err
}
