package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultExportBaseURL is where published spreadsheets expose CSV exports.
const DefaultExportBaseURL = "https://docs.google.com/spreadsheets/d"

// PublishedReader reads link-shared spreadsheets through their CSV export.
// It needs no credential and cannot write.
type PublishedReader struct {
	baseURL string
	client  *http.Client
	opts    options
}

// NewPublishedReader builds a reader. A nil client uses a 30s-timeout default.
func NewPublishedReader(baseURL string, client *http.Client, opts ...Option) *PublishedReader {
	if baseURL == "" {
		baseURL = DefaultExportBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PublishedReader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		opts:    buildOptions(opts),
	}
}

// ExportURL returns the CSV export address of ref.
func (r *PublishedReader) ExportURL(ref TableRef) string {
	gid := ref.GID
	if gid == "" {
		gid = "0"
	}
	return fmt.Sprintf("%s/%s/export?format=csv&gid=%s", r.baseURL, url.PathEscape(ref.SpreadsheetID), url.QueryEscape(gid))
}

// LoadTable downloads and parses the whole table.
func (r *PublishedReader) LoadTable(ctx context.Context, ref TableRef) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() { r.opts.observe("load_published", ref, start, err) }()

	ctx, cancel := r.opts.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ExportURL(ref), nil)
	if err != nil {
		return &Snapshot{}, connectionError(ref, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return &Snapshot{}, connectionError(ref, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &Snapshot{}, connectionError(ref, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return &Snapshot{}, connectionError(ref, fmt.Errorf("parse csv: %w", err))
	}
	return FromRecords(records), nil
}

// ReadOnly adapts a Reader to Store. Every write fails with ErrReadOnly.
func ReadOnly(reader Reader) Store {
	return readOnlyStore{Reader: reader}
}

type readOnlyStore struct {
	Reader
}

func (readOnlyStore) WriteCell(context.Context, TableRef, RowKey, string, string) error {
	return ErrReadOnly
}

func (readOnlyStore) WriteCells(context.Context, TableRef, RowKey, []CellUpdate) error {
	return ErrReadOnly
}

func (readOnlyStore) AppendRow(context.Context, TableRef, []string) error {
	return ErrReadOnly
}
