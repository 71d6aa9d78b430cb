package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Archived cases",
		Headers: []string{"ID", "Subject", "Days Remaining"},
		Rows: []map[string]string{
			{"ID": "case-1", "Subject": "Dela Cruz, Juan", "Days Remaining": "12"},
			{"ID": "case-2", "Subject": "Santos, Maria", "Days Remaining": "0"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "ID,Subject,Days Remaining\ncase-1,\"Dela Cruz, Juan\",12\ncase-2,\"Santos, Maria\",0\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", RendererFor(f).ContentType())

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}
