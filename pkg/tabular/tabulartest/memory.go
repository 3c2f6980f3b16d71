// Package tabulartest provides an in-memory tabular store for tests.
package tabulartest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pidb/catalog-api/pkg/tabular"
)

// Store keeps tables in memory keyed by TableRef.String(). Failures can be
// injected per operation.
type Store struct {
	mu     sync.Mutex
	tables map[string][][]string

	LoadErr   error
	WriteErr  error
	AppendErr error

	Writes  []Write
	Appends []Append
}

// Write records one WriteCells call.
type Write struct {
	Ref     tabular.TableRef
	Key     tabular.RowKey
	Updates []tabular.CellUpdate
}

// Append records one AppendRow call.
type Append struct {
	Ref    tabular.TableRef
	Values []string
}

func New() *Store {
	return &Store{tables: map[string][][]string{}}
}

// Put replaces a table. records[0] is the header row.
func (s *Store) Put(ref tabular.TableRef, records [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([][]string, len(records))
	for i, r := range records {
		copied[i] = append([]string(nil), r...)
	}
	s.tables[ref.String()] = copied
}

// Records returns a copy of the stored table.
func (s *Store) Records(ref tabular.TableRef) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.tables[ref.String()]))
	for _, r := range s.tables[ref.String()] {
		out = append(out, append([]string(nil), r...))
	}
	return out
}

func (s *Store) LoadTable(ctx context.Context, ref tabular.TableRef) (*tabular.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return &tabular.Snapshot{}, fmt.Errorf("%w: %v", tabular.ErrConnection, s.LoadErr)
	}
	records, ok := s.tables[ref.String()]
	if !ok {
		return &tabular.Snapshot{}, fmt.Errorf("%w: %s not found", tabular.ErrConnection, ref)
	}
	return snapshotOf(records), nil
}

func (s *Store) WriteCell(ctx context.Context, ref tabular.TableRef, key tabular.RowKey, column, value string) error {
	return s.WriteCells(ctx, ref, key, []tabular.CellUpdate{{Column: column, Value: value}})
}

func (s *Store) WriteCells(ctx context.Context, ref tabular.TableRef, key tabular.RowKey, updates []tabular.CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return fmt.Errorf("%w: %v", tabular.ErrWrite, s.WriteErr)
	}
	records := s.tables[ref.String()]
	snap := snapshotOf(records)
	row, ok := snap.Find(key)
	if !ok {
		return fmt.Errorf("%w: %s", tabular.ErrRowNotFound, key.Value)
	}
	cols := make([]int, len(updates))
	for i, u := range updates {
		col, _, ok := snap.Column(u.Column)
		if !ok {
			return fmt.Errorf("%w: %s", tabular.ErrColumnNotFound, u.Column)
		}
		cols[i] = col
	}
	record := records[row.Number-1]
	for i, u := range updates {
		for len(record) <= cols[i] {
			record = append(record, "")
		}
		record[cols[i]] = u.Value
	}
	records[row.Number-1] = record
	s.Writes = append(s.Writes, Write{Ref: ref, Key: key, Updates: append([]tabular.CellUpdate(nil), updates...)})
	return nil
}

func (s *Store) AppendRow(ctx context.Context, ref tabular.TableRef, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return fmt.Errorf("%w: %v", tabular.ErrWrite, s.AppendErr)
	}
	row := append([]string(nil), values...)
	s.tables[ref.String()] = append(s.tables[ref.String()], row)
	s.Appends = append(s.Appends, Append{Ref: ref, Values: row})
	return nil
}

func snapshotOf(records [][]string) *tabular.Snapshot {
	return tabular.FromRecords(records)
}
