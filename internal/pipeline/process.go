package pipeline

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/config"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/storage"
)

// ProcessingService turns stored emails into orders for the in-memory
// order cache. Extraction fans out across a bounded worker set; each
// message is isolated, so one malformed body never stops a batch.
type ProcessingService struct {
	db        *storage.DB
	cfg       config.Config
	extractor *Extractor
	log       zerolog.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, log zerolog.Logger) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, extractor: NewExtractor(log), log: log}
}

type ProcessResult struct {
	Scanned int
	Skipped int
	Failed  int
	Orders  []internal.Order
}

type extractOutcome struct {
	email internal.EmailRow
	order *internal.Order
	err   error
}

// ProcessPending extracts all newly fetched emails and records each
// one's fate: "order" for qualifying purchases, "skipped" for noise,
// "failed" for unreadable envelopes.
func (s *ProcessingService) ProcessPending(limit int, provider string) (ProcessResult, error) {
	pending, err := s.db.ListEmailsByStatus([]string{"fetched"}, limit)
	if err != nil {
		return ProcessResult{}, err
	}

	rows := pending[:0:0]
	for _, row := range pending {
		if provider != "" && row.Provider != provider {
			continue
		}
		rows = append(rows, row)
	}

	result := ProcessResult{Scanned: len(rows)}
	for _, outcome := range s.extractBatch(rows) {
		switch {
		case outcome.err != nil:
			s.log.Warn().Err(outcome.err).Str("subject", outcome.email.Subject).Msg("email envelope unreadable")
			result.Failed++
			_ = s.db.UpdateEmailStatus(outcome.email.ID, "failed")
		case outcome.order == nil:
			result.Skipped++
			_ = s.db.UpdateEmailStatus(outcome.email.ID, "skipped")
		default:
			result.Orders = append(result.Orders, *outcome.order)
			_ = s.db.UpdateEmailStatus(outcome.email.ID, "order")
		}
	}
	return result, nil
}

// RebuildOrders re-extracts previously qualifying emails after a
// restart, since the order cache lives only in memory. Transactions
// that were already annotated are excluded from matching anyway, so
// re-seen orders are harmless.
func (s *ProcessingService) RebuildOrders(limit int) ([]internal.Order, error) {
	rows, err := s.db.ListEmailsByStatus([]string{"order"}, limit)
	if err != nil {
		return nil, err
	}

	var orders []internal.Order
	for _, outcome := range s.extractBatch(rows) {
		if outcome.err == nil && outcome.order != nil {
			orders = append(orders, *outcome.order)
		}
	}
	return orders, nil
}

func (s *ProcessingService) extractBatch(rows []internal.EmailRow) []extractOutcome {
	outcomes := make([]extractOutcome, len(rows))

	workers := s.cfg.ExtractConcurrency
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range rows {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = s.extractOne(rows[i])
		}(i)
	}
	wg.Wait()

	return outcomes
}

func (s *ProcessingService) extractOne(email internal.EmailRow) extractOutcome {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return extractOutcome{email: email, err: err}
	}

	receivedAt := time.Now()
	if parsed, err := time.Parse(time.RFC3339, email.ReceivedAt); err == nil {
		receivedAt = parsed.Local()
	}

	order, err := s.extractor.ExtractFromEmailRaw(raw, receivedAt)
	return extractOutcome{email: email, order: order, err: err}
}
