package tabular

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogCSV = "\ufeffCodificación,TítuloCompletoEspañol,Créditos\n" +
	"FARM 7101,Farmacología Clínica,3\n" +
	",,\n" +
	"FARM 7102,\"Terapéutica, Avanzada\",4\n"

func TestPublishedReaderLoadTable(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(catalogCSV))
	}))
	defer srv.Close()

	var observed []string
	reader := NewPublishedReader(srv.URL, srv.Client(), WithObserver(func(op, table string, _ time.Duration, err error) {
		observed = append(observed, op+" "+table)
		assert.NoError(t, err)
	}))
	snap, err := reader.LoadTable(context.Background(), TableRef{SpreadsheetID: "sheet-1", GID: "42"})
	require.NoError(t, err)

	assert.Equal(t, "/sheet-1/export", gotPath)
	assert.Equal(t, "format=csv&gid=42", gotQuery)
	assert.Equal(t, []string{"Codificación", "TítuloCompletoEspañol", "Créditos"}, snap.Header)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, 2, snap.Rows[0].Number)
	assert.Equal(t, 4, snap.Rows[1].Number)
	assert.Equal(t, "Terapéutica, Avanzada", snap.Rows[1].Get("TítuloCompletoEspañol"))
	assert.Equal(t, []string{"load_published sheet-1/gid:42"}, observed)
}

func TestPublishedReaderNon200ReturnsEmptySnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	snap, err := NewPublishedReader(srv.URL, srv.Client()).LoadTable(context.Background(), TableRef{SpreadsheetID: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection))
	require.NotNil(t, snap)
	assert.True(t, snap.Empty())
}

func TestPublishedReaderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	snap, err := NewPublishedReader(url, nil).LoadTable(context.Background(), TableRef{SpreadsheetID: "x"})
	assert.ErrorIs(t, err, ErrConnection)
	assert.True(t, snap.Empty())
}

func TestSnapshotColumnToleratesAccents(t *testing.T) {
	snap := FromRecords([][]string{{"Codificacion", "Créditos"}, {"FARM 1", "3"}})
	idx, header, ok := snap.Column("Codificación")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "Codificacion", header)

	row, ok := snap.Find(RowKey{Column: "Codificación", Value: " FARM 1 "})
	require.True(t, ok)
	assert.Equal(t, "3", row.Get("Créditos"))

	_, ok = snap.Find(RowKey{Column: "Missing", Value: "FARM 1"})
	assert.False(t, ok)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "AZ", columnLetter(51))
	assert.Equal(t, "BA", columnLetter(52))
	assert.Equal(t, "'Cursos'!C5", cellRange("Cursos", 2, 5))
	assert.Equal(t, "'Dr''s'!A1", cellRange("Dr's", 0, 1))
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catalogCSV))
	}))
	defer srv.Close()

	store := ReadOnly(NewPublishedReader(srv.URL, srv.Client()))
	snap, err := store.LoadTable(context.Background(), TableRef{SpreadsheetID: "sheet-1"})
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 2)

	key := RowKey{Column: "Codificación", Value: "FARM 7101"}
	assert.ErrorIs(t, store.WriteCell(context.Background(), TableRef{}, key, "Créditos", "4"), ErrReadOnly)
	assert.ErrorIs(t, store.WriteCells(context.Background(), TableRef{}, key, nil), ErrReadOnly)
	assert.ErrorIs(t, store.AppendRow(context.Background(), TableRef{}, []string{"x"}), ErrReadOnly)
}
