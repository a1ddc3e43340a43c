package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal/logging"
)

const orderSubject = `Your Amazon.com order of "Widget..." has been placed`

func orderHTML(total string, titles ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	b.WriteString(`<table id="costBreakdownRight"><tr><td>` + total + `</td></tr></table>`)
	b.WriteString(`<table id="itemDetails">`)
	for _, title := range titles {
		b.WriteString(`<tr><td><font>` + title + `</font></td></tr>`)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func testExtractor() *Extractor {
	return NewExtractor(logging.NewWithWriter(&strings.Builder{}))
}

func receipt() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.Local)
}

func TestExtractQualifyingOrder(t *testing.T) {
	order := testExtractor().Extract(RawMessage{
		Subject:    orderSubject,
		HTML:       orderHTML("$54.25", "Widget", "Gadget"),
		ReceivedAt: receipt(),
	})
	require.NotNil(t, order)

	assert.Equal(t, int64(-54250), order.Amount)
	assert.Equal(t, []string{"Widget", "Gadget"}, order.Items)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local), order.Date)
}

func TestExtractRejectsShipmentAndCancellation(t *testing.T) {
	body := orderHTML("$54.25", "Widget")
	for _, subject := range []string{
		`Your Amazon.com order of "Widget" has shipped!`,
		`Your Amazon.com order of "Widget" has been canceled`,
		"Password reset request",
	} {
		order := testExtractor().Extract(RawMessage{Subject: subject, HTML: body, ReceivedAt: receipt()})
		assert.Nil(t, order, "subject %q", subject)
	}
}

func TestExtractRejectsZeroTotal(t *testing.T) {
	order := testExtractor().Extract(RawMessage{
		Subject:    orderSubject,
		HTML:       orderHTML("$0.00", "Promo credit"),
		ReceivedAt: receipt(),
	})
	assert.Nil(t, order)
}

func TestExtractRejectsEmptyItemList(t *testing.T) {
	order := testExtractor().Extract(RawMessage{
		Subject:    orderSubject,
		HTML:       orderHTML("$12.00"),
		ReceivedAt: receipt(),
	})
	assert.Nil(t, order)
}

func TestExtractSkipsEmptyTitleRows(t *testing.T) {
	order := testExtractor().Extract(RawMessage{
		Subject:    orderSubject,
		HTML:       orderHTML("$12.00", "  ", "Widget", ""),
		ReceivedAt: receipt(),
	})
	require.NotNil(t, order)
	assert.Equal(t, []string{"Widget"}, order.Items)
}

func TestExtractRejectsUnparseableTotal(t *testing.T) {
	order := testExtractor().Extract(RawMessage{
		Subject:    orderSubject,
		HTML:       orderHTML("see invoice", "Widget"),
		ReceivedAt: receipt(),
	})
	assert.Nil(t, order)
}

func TestExtractStripsForwardingPrefix(t *testing.T) {
	html := `<html><body>
<table id="x_costBreakdownRight"><tr><td>$19.99</td></tr></table>
<table id="x_itemDetails"><tr><td><font>Forwarded widget</font></td></tr></table>
</body></html>`
	order := testExtractor().Extract(RawMessage{Subject: orderSubject, HTML: html, ReceivedAt: receipt()})
	require.NotNil(t, order)
	assert.Equal(t, int64(-19990), order.Amount)
	assert.Equal(t, []string{"Forwarded widget"}, order.Items)
}

func TestExtractMatchesIdentifierSuffix(t *testing.T) {
	// Relays may prepend a namespace to ids; lookups are suffix-based.
	html := `<html><body>
<table id="ns123_costBreakdownRight"><tr><td>$8.50</td></tr></table>
<table id="ns123_itemDetails"><tr><td><font>Prefixed widget</font></td></tr></table>
</body></html>`
	order := testExtractor().Extract(RawMessage{Subject: orderSubject, HTML: html, ReceivedAt: receipt()})
	require.NotNil(t, order)
	assert.Equal(t, int64(-8500), order.Amount)
}

func TestRepairTruncatedTitle(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain truncation", input: "Stainless Steel Water Bottle with Str...", want: "Stainless Steel Water Bottle with.."},
		{name: "comma before cut", input: "USB-C Cable, 6ft, Braid...", want: "USB-C Cable, 6ft.."},
		{name: "untouched", input: "Complete Title", want: "Complete Title"},
		{name: "ellipsis only word", input: "Widget...", want: ".."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := repairTruncatedTitle(tc.input)
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			if strings.HasSuffix(got, "...") || strings.HasSuffix(got, ",..") {
				t.Fatalf("ragged ending: %q", got)
			}
		})
	}
}

func TestExtractAppliesTruncationRepair(t *testing.T) {
	order := testExtractor().Extract(RawMessage{
		Subject:    orderSubject,
		HTML:       orderHTML("$12.00", "Long Product Name, Variant Blu..."),
		ReceivedAt: receipt(),
	})
	require.NotNil(t, order)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Long Product Name, Variant..", order.Items[0])
	assert.True(t, strings.HasSuffix(order.Items[0], ".."))
	assert.False(t, strings.HasSuffix(order.Items[0], "..."))
}
