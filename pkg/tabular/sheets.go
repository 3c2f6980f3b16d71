package tabular

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore reads and writes worksheets through the Sheets API v4 using a
// service credential.
type SheetsStore struct {
	svc  *sheets.Service
	opts options
}

// NewSheetsStore authenticates with a service-account JSON key.
func NewSheetsStore(ctx context.Context, credentialsJSON []byte, opts ...Option) (*SheetsStore, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return NewSheetsStoreWithService(svc, opts...), nil
}

// NewSheetsStoreWithService wraps an already configured client.
func NewSheetsStoreWithService(svc *sheets.Service, opts ...Option) *SheetsStore {
	return &SheetsStore{svc: svc, opts: buildOptions(opts)}
}

// LoadTable reads the formatted values of the whole worksheet.
func (s *SheetsStore) LoadTable(ctx context.Context, ref TableRef) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() { s.opts.observe("load", ref, start, err) }()

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	snap, _, err = s.load(ctx, ref)
	if err != nil {
		return &Snapshot{}, connectionError(ref, err)
	}
	return snap, nil
}

// WriteCell writes a single cell of the row located by key.
func (s *SheetsStore) WriteCell(ctx context.Context, ref TableRef, key RowKey, column, value string) error {
	return s.WriteCells(ctx, ref, key, []CellUpdate{{Column: column, Value: value}})
}

// WriteCells locates the row by key and writes every update in one batch
// request, so either all cells land or none do.
func (s *SheetsStore) WriteCells(ctx context.Context, ref TableRef, key RowKey, updates []CellUpdate) (err error) {
	start := time.Now()
	defer func() { s.opts.observe("write", ref, start, err) }()

	if len(updates) == 0 {
		return nil
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	snap, sheet, err := s.load(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: locate row in %s: %v", ErrWrite, ref, err)
	}
	row, ok := snap.Find(key)
	if !ok {
		return fmt.Errorf("%w: %s = %q in %s", ErrRowNotFound, key.Column, key.Value, ref)
	}

	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		col, _, ok := snap.Column(u.Column)
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrColumnNotFound, u.Column, ref)
		}
		data = append(data, &sheets.ValueRange{
			Range:  cellRange(sheet, col, row.Number),
			Values: [][]interface{}{{cellValue(u)}},
		})
	}

	// RAW keeps user text such as "=1+1" or "0012" from being parsed.
	_, err = s.svc.Spreadsheets.Values.BatchUpdate(ref.SpreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: %s row %d: %v", ErrWrite, ref, row.Number, err)
	}
	return nil
}

// AppendRow adds values as a new row after the last data row.
func (s *SheetsStore) AppendRow(ctx context.Context, ref TableRef, values []string) (err error) {
	start := time.Now()
	defer func() { s.opts.observe("append", ref, start, err) }()

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	sheet, err := s.sheetTitle(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, ref, err)
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	_, err = s.svc.Spreadsheets.Values.Append(ref.SpreadsheetID, quoteSheet(sheet)+"!A1", &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: append to %s: %v", ErrWrite, ref, err)
	}
	return nil
}

func (s *SheetsStore) load(ctx context.Context, ref TableRef) (*Snapshot, string, error) {
	sheet, err := s.sheetTitle(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.svc.Spreadsheets.Values.Get(ref.SpreadsheetID, quoteSheet(sheet)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, "", err
	}
	records := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		record := make([]string, len(raw))
		for j, cell := range raw {
			if cell != nil {
				record[j] = fmt.Sprint(cell)
			}
		}
		records[i] = record
	}
	return FromRecords(records), sheet, nil
}

// sheetTitle returns ref.Sheet, or resolves the title of the worksheet with ref.GID.
func (s *SheetsStore) sheetTitle(ctx context.Context, ref TableRef) (string, error) {
	if ref.Sheet != "" {
		return ref.Sheet, nil
	}
	meta, err := s.svc.Spreadsheets.Get(ref.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	for _, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		if ref.GID == "" || fmt.Sprint(sh.Properties.SheetId) == ref.GID {
			return sh.Properties.Title, nil
		}
	}
	return "", fmt.Errorf("no worksheet with gid %s", ref.GID)
}

func cellValue(u CellUpdate) interface{} {
	if u.Numeric {
		if n, err := strconv.ParseInt(u.Value, 10, 64); err == nil {
			return n
		}
	}
	return u.Value
}
