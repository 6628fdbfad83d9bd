package store

import (
	"fmt"
	"sync"
)

// Batch buffers reports produced by concurrent workers so they can be
// written in a single transaction.
//
// Thread safety: Add may be called from any goroutine. Lookup is passed
// through to the underlying Store, which is safe for concurrent reads.
type Batch struct {
	store *Store
	mu    sync.Mutex

	Reports []Report
}

// Compile-time check: *Batch satisfies ReportCache.
var _ ReportCache = (*Batch)(nil)

// NewBatch creates a Batch backed by s for reads.
func NewBatch(s *Store) *Batch {
	return &Batch{store: s}
}

// Lookup checks the buffered reports first, then the database.
func (b *Batch) Lookup(path, hash string) (*Report, error) {
	b.mu.Lock()
	for i := len(b.Reports) - 1; i >= 0; i-- {
		if r := b.Reports[i]; r.Path == path && r.Hash == hash {
			b.mu.Unlock()
			return &r, nil
		}
	}
	b.mu.Unlock()
	return b.store.Lookup(path, hash)
}

// Save buffers r until CommitBatch.
func (b *Batch) Save(r *Report) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Reports = append(b.Reports, *r)
	return nil
}

// Len returns the number of buffered reports.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Reports)
}

// CommitBatch writes every buffered report within a single transaction and
// clears the buffer on success.
func (s *Store) CommitBatch(b *Batch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Reports) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for i := range b.Reports {
		if err := saveReport(tx, &b.Reports[i]); err != nil {
			return fmt.Errorf("commit batch: report %s: %w", b.Reports[i].Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	b.Reports = nil
	return nil
}
