package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/config"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/connectors"
	gmailconnector "github.com/GraysonCAdams/amazon-ynab-sync/internal/connectors/gmail"
	imapconnector "github.com/GraysonCAdams/amazon-ynab-sync/internal/connectors/imap"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/ledger"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/pipeline"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/storage"
)

const serverKnowledgeKey = "ledger.server_knowledge"

// Service runs the reconcile loop: poll the mailbox, extract orders,
// delta-sync the ledger, match, and write memos. The order and
// transaction caches live here and only here; the matcher reads
// snapshots of them each cycle.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	log       zerolog.Logger
	client    *ledger.Client
	cache     *ledger.Cache
	matcher   *pipeline.Matcher
	processor *pipeline.ProcessingService

	orders          []internal.Order
	serverKnowledge *int64
}

func NewService(db *storage.DB, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		db:        db,
		cfg:       cfg,
		log:       log,
		client:    ledger.NewClient(cfg),
		cache:     ledger.NewCache(cfg.YNABPayeeFilter),
		matcher:   pipeline.NewMatcher(cfg),
		processor: pipeline.NewProcessingService(db, cfg, log),
	}
}

func (s *Service) Run(ctx context.Context) error {
	budget, err := s.client.GetBudget(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Str("budget", budget.Name).Msg("connected to ledger")

	if err := s.restoreState(); err != nil {
		return err
	}

	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error().Err(err).Msg("reconcile cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

// RunOnce performs a single reconcile cycle, for the CLI.
func (s *Service) RunOnce(ctx context.Context) error {
	if _, err := s.client.GetBudget(ctx); err != nil {
		return err
	}
	if err := s.restoreState(); err != nil {
		return err
	}
	return s.runCycle(ctx)
}

// restoreState rebuilds the in-memory order cache from previously
// qualifying emails and resumes delta sync where the last run stopped.
func (s *Service) restoreState() error {
	orders, err := s.processor.RebuildOrders(10000)
	if err != nil {
		return err
	}
	s.orders = orders

	stored, err := s.db.GetMetadata(serverKnowledgeKey)
	if err != nil {
		return err
	}
	if stored != nil {
		if parsed, err := strconv.ParseInt(*stored, 10, 64); err == nil {
			s.serverKnowledge = &parsed
		}
	}

	s.log.Info().Int("orders", len(s.orders)).Msg("restored order cache")
	return nil
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processed, err := s.processor.ProcessPending(s.cfg.MailListenerFetchMax, provider)
	if err != nil {
		return err
	}
	s.orders = append(s.orders, processed.Orders...)

	transactions, knowledge, err := s.client.GetTransactions(ctx, nil, s.serverKnowledge)
	if err != nil {
		return err
	}
	added := s.cache.Absorb(transactions)
	s.serverKnowledge = &knowledge
	_ = s.db.SetMetadata(serverKnowledgeKey, strconv.FormatInt(knowledge, 10))

	matches := s.matcher.Match(s.orders, s.cache.Snapshot())
	applied, err := s.applyMatches(ctx, matches)
	if err != nil {
		return err
	}

	s.log.Info().
		Str("provider", provider).
		Int("fetched", fetchResult.Fetched).
		Int("stored", fetchResult.Stored).
		Int("newOrders", len(processed.Orders)).
		Int("newTransactions", added).
		Int("cachedTransactions", s.cache.Len()).
		Int("matches", len(matches)).
		Int("applied", len(applied)).
		Msg("reconcile cycle done")

	if s.cfg.MailListenerAutoExport && len(applied) > 0 {
		outputPath := filepath.Join(s.cfg.OutputDir, "reconcile", fmt.Sprintf("applied_%d.xlsx", time.Now().Unix()))
		if err := pipeline.ExportRowsToXLSX(applied, outputPath); err != nil {
			return err
		}
	}

	return nil
}

// applyMatches writes memos in one bulk update. Cache and audit state
// only move after the ledger write succeeds, so a failed write leaves
// every pair eligible to match again next cycle.
func (s *Service) applyMatches(ctx context.Context, matches []internal.Match) ([]internal.ReconcileExportRow, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	updates := make([]ledger.MemoUpdate, 0, len(matches))
	for _, m := range matches {
		updates = append(updates, ledger.MemoUpdate{
			ID:       m.TransactionID,
			Memo:     m.Order.Memo(),
			Approved: s.cfg.ApproveOnMemoUpdate,
		})
	}

	if err := s.client.UpdateTransactions(ctx, updates); err != nil {
		return nil, err
	}

	snapshot := s.cache.Snapshot()
	applied := make([]internal.ReconcileExportRow, 0, len(matches))
	for _, m := range matches {
		memo := m.Order.Memo()
		s.cache.MarkAnnotated(m.TransactionID, memo)

		row := internal.ReconcileExportRow{
			TransactionID: m.TransactionID,
			Date:          m.Order.Date.Format("2006-01-02"),
			AmountMilli:   m.Order.Amount,
			Memo:          memo,
			ItemCount:     len(m.Order.Items),
		}
		if txn, ok := snapshot[m.TransactionID]; ok {
			row.Payee = txn.PayeeName
		}
		if err := s.db.InsertAppliedMemo(row); err != nil {
			return applied, err
		}
		applied = append(applied, row)
	}

	return applied, nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
