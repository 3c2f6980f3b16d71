package tabular

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type fakeSheetsAPI struct {
	mu         sync.Mutex
	values     [][]interface{}
	batches    []sheets.BatchUpdateValuesRequest
	appends    []sheets.ValueRange
	failWrites bool
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "values:batchUpdate"):
		if f.failWrites {
			http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
			return
		}
		var req sheets.BatchUpdateValuesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.batches = append(f.batches, req)
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateValuesResponse{})
	case strings.HasSuffix(path, ":append"):
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appends = append(f.appends, vr)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
	case strings.Contains(path, "/values/"):
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: f.values})
	default:
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{SheetId: 0, Title: "Cursos"}},
			{Properties: &sheets.SheetProperties{SheetId: 7, Title: "Bitacora"}},
		}})
	}
}

func newFakeStore(t *testing.T, api *fakeSheetsAPI) *SheetsStore {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return NewSheetsStoreWithService(svc)
}

func catalogValues() [][]interface{} {
	return [][]interface{}{
		{"Codificación", "Descripción", "ModificadoPor", "FechaModificación"},
		{"FARM 7101", "Intro", "", ""},
		{"FARM 7102", "Avanzado"},
	}
}

func TestSheetsStoreLoadTable(t *testing.T) {
	store := newFakeStore(t, &fakeSheetsAPI{values: catalogValues()})

	snap, err := store.LoadTable(context.Background(), TableRef{SpreadsheetID: "s1", Sheet: "Cursos"})
	require.NoError(t, err)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "Avanzado", snap.Rows[1].Get("Descripción"))
	assert.Equal(t, "", snap.Rows[1].Get("ModificadoPor"))
	assert.Equal(t, 3, snap.Rows[1].Number)
}

func TestSheetsStoreWriteCellsSendsOneBatch(t *testing.T) {
	api := &fakeSheetsAPI{values: catalogValues()}
	store := newFakeStore(t, api)

	err := store.WriteCells(context.Background(), TableRef{SpreadsheetID: "s1", Sheet: "Cursos"},
		RowKey{Column: "Codificación", Value: "FARM 7102"},
		[]CellUpdate{
			{Column: "Descripción", Value: "=1+1"},
			{Column: "ModificadoPor", Value: "ana"},
			{Column: "FechaModificación", Value: "2024-05-01 10:00:00"},
		})
	require.NoError(t, err)

	require.Len(t, api.batches, 1)
	data := api.batches[0].Data
	require.Len(t, data, 3)
	assert.Equal(t, "'Cursos'!B3", data[0].Range)
	assert.Equal(t, "'Cursos'!C3", data[1].Range)
	assert.Equal(t, "'Cursos'!D3", data[2].Range)
	assert.Equal(t, "RAW", api.batches[0].ValueInputOption, "text is stored verbatim")
	assert.Equal(t, "=1+1", data[0].Values[0][0])
}

func TestCellValueSendsNumbersOnlyWhenNumeric(t *testing.T) {
	assert.Equal(t, int64(4), cellValue(CellUpdate{Value: "4", Numeric: true}))
	assert.Equal(t, "3-4", cellValue(CellUpdate{Value: "3-4", Numeric: true}))
	assert.Equal(t, "0012", cellValue(CellUpdate{Value: "0012"}))
	assert.Equal(t, "", cellValue(CellUpdate{Value: "", Numeric: true}))
}

func TestSheetsStoreWriteErrors(t *testing.T) {
	api := &fakeSheetsAPI{values: catalogValues()}
	store := newFakeStore(t, api)
	ref := TableRef{SpreadsheetID: "s1", Sheet: "Cursos"}

	err := store.WriteCell(context.Background(), ref, RowKey{Column: "Codificación", Value: "NOPE"}, "Descripción", "x")
	assert.True(t, errors.Is(err, ErrRowNotFound))

	err = store.WriteCell(context.Background(), ref, RowKey{Column: "Codificación", Value: "FARM 7101"}, "Inexistente", "x")
	assert.True(t, errors.Is(err, ErrColumnNotFound))

	api.failWrites = true
	err = store.WriteCell(context.Background(), ref, RowKey{Column: "Codificación", Value: "FARM 7101"}, "Descripción", "x")
	assert.True(t, errors.Is(err, ErrWrite))
	assert.Empty(t, api.batches)
}

func TestSheetsStoreAppendRowResolvesSheetByGID(t *testing.T) {
	api := &fakeSheetsAPI{}
	store := newFakeStore(t, api)

	err := store.AppendRow(context.Background(), TableRef{SpreadsheetID: "audit", GID: "7"},
		[]string{"2024-05-01 10:00:00", "ana", "login", "admin"})
	require.NoError(t, err)
	require.Len(t, api.appends, 1)
	assert.Equal(t, []interface{}{"2024-05-01 10:00:00", "ana", "login", "admin"}, api.appends[0].Values[0])
}
