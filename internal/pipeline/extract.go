package pipeline

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/util"
)

// RawMessage is one fully buffered order-confirmation candidate. The
// transport layer assembles it before extraction runs; the extractor
// never touches the wire.
type RawMessage struct {
	Subject     string
	HTML        string
	ReceivedAt  time.Time
	PDFInvoices [][]byte
}

type Extractor struct {
	log zerolog.Logger
}

func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// ExtractFromEmailRaw parses a raw RFC822 message and runs extraction
// on its HTML body. Envelope-level parse failures are returned so the
// caller can mark the stored email as failed; everything past that
// degrades to a nil order.
func (e *Extractor) ExtractFromEmailRaw(raw []byte, receivedAt time.Time) (*internal.Order, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	msg := RawMessage{
		Subject:    env.GetHeader("Subject"),
		HTML:       env.HTML,
		ReceivedAt: receivedAt,
	}
	for _, att := range env.Attachments {
		if strings.HasSuffix(strings.ToLower(att.FileName), ".pdf") {
			msg.PDFInvoices = append(msg.PDFInvoices, att.Content)
		}
	}

	return e.Extract(msg), nil
}

// Extract turns one message into an Order, or nil when the message is
// not a qualifying order. A malformed body never propagates an error:
// it logs the offending subject and yields nil, so one bad message
// cannot take down a batch.
func (e *Extractor) Extract(msg RawMessage) *internal.Order {
	if !IsOrderConfirmation(msg.Subject) {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(normalizeForwardedBody(msg.HTML)))
	if err != nil {
		e.log.Warn().Err(err).Str("subject", msg.Subject).Msg("order email body failed to parse")
		return nil
	}

	amount, ok := extractTotalMilli(doc)
	if !ok {
		amount, ok = invoicePDFTotalMilli(msg.PDFInvoices)
	}
	if !ok {
		e.log.Warn().Str("subject", msg.Subject).Msg("order email has no parseable total")
		return nil
	}
	if amount == 0 {
		// Zero-total confirmations (promo credits, digital gifts) have
		// no ledger counterpart.
		return nil
	}

	items := extractItemTitles(doc)
	if len(items) == 0 {
		e.log.Warn().Str("subject", msg.Subject).Msg("order email has no item rows")
		return nil
	}

	order := &internal.Order{
		Date:   atMidnight(msg.ReceivedAt),
		Amount: -amount,
		Items:  items,
	}

	e.log.Info().
		Time("date", order.Date).
		Int64("amount", order.Amount).
		Int("items", len(order.Items)).
		Msg("extracted order")

	return order
}

// Mail forwarding prefixes id/class attributes with "x_", which breaks
// every selector below; strip the prefix before structural parsing.
func normalizeForwardedBody(html string) string {
	return strings.ReplaceAll(html, `"x_`, `"`)
}

// extractTotalMilli reads the order total cell. Relays prepend
// arbitrary namespace prefixes to element ids, so the lookup matches on
// the id suffix rather than the exact value.
func extractTotalMilli(doc *goquery.Document) (int64, bool) {
	text := strings.TrimSpace(doc.Find(`table[id$="costBreakdownRight"] td`).Text())
	if text == "" {
		return 0, false
	}
	return util.ParseCurrencyMilli(text)
}

func extractItemTitles(doc *goquery.Document) []string {
	var items []string
	doc.Find(`table[id$="itemDetails"] tr`).Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find("font").Text())
		if title == "" {
			return
		}
		items = append(items, repairTruncatedTitle(title))
	})
	return items
}

// repairTruncatedTitle normalizes the template's ragged title
// truncation: the trailing partial word is dropped along with any comma
// left dangling before it, and a stable two-character marker is
// re-appended. The full title does not exist anywhere in the message,
// so this is a deterministic shortening, not a recovery.
func repairTruncatedTitle(title string) string {
	if !strings.HasSuffix(title, "...") {
		return title
	}
	words := strings.Split(title, " ")
	title = strings.Join(words[:len(words)-1], " ")
	title = strings.TrimSuffix(title, ",")
	return title + ".."
}

// invoicePDFTotalMilli is the fallback for bodies whose cost table is
// missing: some confirmations attach a PDF invoice whose text carries
// the same total on an "Order Total" line.
func invoicePDFTotalMilli(invoices [][]byte) (int64, bool) {
	for _, blob := range invoices {
		r, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
		if err != nil {
			continue
		}
		for i := 1; i <= r.NumPage(); i++ {
			p := r.Page(i)
			if p.V.IsNull() {
				continue
			}
			text, err := p.GetPlainText(nil)
			if err != nil {
				continue
			}
			for _, line := range strings.Split(text, "\n") {
				lower := strings.ToLower(line)
				idx := strings.Index(lower, "order total")
				if idx < 0 {
					idx = strings.Index(lower, "grand total")
				}
				if idx < 0 {
					continue
				}
				rest := strings.TrimLeft(line[idx+len("order total"):], " :")
				if amount, ok := util.ParseCurrencyMilli(rest); ok {
					return amount, true
				}
			}
		}
	}
	return 0, false
}

func atMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
