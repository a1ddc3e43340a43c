package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromEmailRaw(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "order_confirmation.eml"))
	require.NoError(t, err)

	order, err := testExtractor().ExtractFromEmailRaw(raw, receipt())
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, int64(-83240), order.Amount)
	assert.Equal(t, []string{
		"Anker 735 Charger (Nano II 65W), USB C Fast Compact..",
		"Cable Matters USB-C Braided Cable..",
	}, order.Items)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local), order.Date)
}

func TestExtractFromEmailRawUnrelatedMessage(t *testing.T) {
	raw := []byte("From: alerts@example.com\r\n" +
		"Subject: Your statement is ready\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		"Nothing to see here.\r\n")

	order, err := testExtractor().ExtractFromEmailRaw(raw, receipt())
	require.NoError(t, err)
	assert.Nil(t, order)
}
