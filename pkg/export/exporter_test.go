package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:    "Catálogo PharmD",
		Subtitle: "Generado 2024-05-01 10:00:00",
		Headers:  []string{"Codificación", "TítuloCompletoEspañol", "Créditos"},
		Rows: []map[string]string{
			{"Codificación": "FARM 101", "TítuloCompletoEspañol": "Introducción a la Farmacia", "Créditos": "3"},
			{"Codificación": "FARM 205", "TítuloCompletoEspañol": "Farmacología, parte \"A\"", "Créditos": "4"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))

	lines := strings.Split(strings.TrimSpace(string(out[len(utf8BOM):])), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Codificación,TítuloCompletoEspañol,Créditos", lines[0])
	assert.Equal(t, `FARM 205,"Farmacología, parte ""A""",4`, lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(sampleDataset())
	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, pageWidth, total, 0.01)
	assert.Greater(t, widths[1], widths[2])
}
