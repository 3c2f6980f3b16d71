// Package tabular gives uniform bulk-read and cell-write access to remote
// spreadsheet tables addressed by row key and column header.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pidb/catalog-api/pkg/textnorm"
)

var (
	ErrConnection     = errors.New("tabular: table unreachable")
	ErrRowNotFound    = errors.New("tabular: row not found")
	ErrColumnNotFound = errors.New("tabular: column not found")
	ErrWrite          = errors.New("tabular: write failed")
	ErrReadOnly       = errors.New("tabular: store is read-only")
)

// TableRef identifies one worksheet of a remote spreadsheet. Published
// exports address the worksheet by GID, the Sheets API by title.
type TableRef struct {
	SpreadsheetID string
	Sheet         string
	GID           string
}

func (r TableRef) String() string {
	name := r.Sheet
	if name == "" {
		name = "gid:" + r.GID
	}
	return r.SpreadsheetID + "/" + name
}

// Row is one data row. Number is the 1-based sheet row, so the first data
// row below the header is 2.
type Row struct {
	Number int
	Values map[string]string
}

// Get returns the trimmed cell under header, or "" when absent.
func (r Row) Get(header string) string {
	return strings.TrimSpace(r.Values[header])
}

// Snapshot is a full read of a table at one point in time.
type Snapshot struct {
	Header []string
	Rows   []Row
}

// Empty reports whether the snapshot carries no data rows.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Rows) == 0
}

// Column resolves a header name, tolerating case and accent differences.
// It returns the 0-based column index and the header as stored.
func (s *Snapshot) Column(name string) (int, string, bool) {
	if s == nil {
		return -1, "", false
	}
	for i, h := range s.Header {
		if h == name {
			return i, h, true
		}
	}
	want := textnorm.Normalize(name)
	for i, h := range s.Header {
		if textnorm.Normalize(h) == want {
			return i, h, true
		}
	}
	return -1, "", false
}

// Find returns the first row whose key column equals key.Value.
func (s *Snapshot) Find(key RowKey) (Row, bool) {
	_, header, ok := s.Column(key.Column)
	if !ok {
		return Row{}, false
	}
	want := strings.TrimSpace(key.Value)
	for _, row := range s.Rows {
		if row.Get(header) == want {
			return row, true
		}
	}
	return Row{}, false
}

// RowKey locates a row by the value of a key column.
type RowKey struct {
	Column string
	Value  string
}

// CellUpdate is one value to write into the located row. Values are stored
// verbatim; Numeric sends an integer value as a number instead of text.
type CellUpdate struct {
	Column  string
	Value   string
	Numeric bool
}

// Reader loads whole tables. Implementations never panic; on failure they
// return an empty snapshot together with an error wrapping ErrConnection.
type Reader interface {
	LoadTable(ctx context.Context, ref TableRef) (*Snapshot, error)
}

// Writer mutates remote tables.
type Writer interface {
	WriteCell(ctx context.Context, ref TableRef, key RowKey, column, value string) error
	WriteCells(ctx context.Context, ref TableRef, key RowKey, updates []CellUpdate) error
	AppendRow(ctx context.Context, ref TableRef, values []string) error
}

// Store reads and writes.
type Store interface {
	Reader
	Writer
}

// Observer receives the latency and outcome of every remote call.
type Observer func(operation, table string, elapsed time.Duration, err error)

// Option configures a reader or store.
type Option func(*options)

type options struct {
	observer Observer
	timeout  time.Duration
}

// WithObserver reports each remote call to fn.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// WithTimeout bounds each remote call. Zero leaves the caller's deadline alone.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) observe(operation string, ref TableRef, start time.Time, err error) {
	if o.observer != nil {
		o.observer(operation, ref.String(), time.Since(start), err)
	}
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.timeout)
}

// FromRecords builds a snapshot from raw records where records[0] is the
// header. Blank rows keep their sheet numbering but are dropped.
func FromRecords(records [][]string) *Snapshot {
	if len(records) == 0 {
		return &Snapshot{}
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	snap := &Snapshot{Header: header, Rows: make([]Row, 0, len(records)-1)}
	for i, record := range records[1:] {
		values := make(map[string]string, len(header))
		blank := true
		for j, h := range header {
			if h == "" {
				continue
			}
			if j < len(record) {
				values[h] = record[j]
				if strings.TrimSpace(record[j]) != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		snap.Rows = append(snap.Rows, Row{Number: i + 2, Values: values})
	}
	return snap
}

func connectionError(ref TableRef, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrConnection, ref, err)
}
