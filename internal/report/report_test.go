package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wb-sppmon/internal/models"
)

func TestComposeChanges(t *testing.T) {
	text := ComposeChanges([]Entry{
		{Descr: "product 12345", Line: "12345: boots, spp 20 -> 27"},
		{Descr: "slot [0, 100)", Line: "slot [0, 100) of subcategory 7: discount 25 -> 27"},
	})
	assert.Contains(t, text, "changes detected")
	assert.Contains(t, text, "12345: boots, spp 20 -> 27")
	assert.Contains(t, text, "discount 25 -> 27")
}

func TestComposeFailures(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	text := ComposeFailures([]Failure{{Descr: "article 999", Message: "no products found", At: at}})
	assert.Contains(t, text, "article 999")
	assert.Contains(t, text, "no products found")
	assert.Contains(t, text, "2024-03-01T12:00:00Z")
}

func TestExportWorkbook(t *testing.T) {
	dir := t.TempDir()
	path, err := ExportWorkbook(dir, "test-run",
		[]models.RunSummary{{Pass: "products", StartedAt: time.Now(), New: 1, Updated: 2, Unchanged: 3, Disappeared: 0}},
		[]Entry{{Descr: "product 1", Line: "spp 10 -> 12"}},
		[]Failure{NewFailure("article 2", assert.AnError)},
	)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
