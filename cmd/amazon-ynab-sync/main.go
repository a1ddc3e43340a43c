package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal/config"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/connectors"
	gmailconnector "github.com/GraysonCAdams/amazon-ynab-sync/internal/connectors/gmail"
	imapconnector "github.com/GraysonCAdams/amazon-ynab-sync/internal/connectors/imap"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/ledger"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/listener"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/logging"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/pipeline"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logging.New()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "imap|gmail")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", cfg.MailListenerFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "imap|gmail")
		batch := fs.Int("batch", 100, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg, log)
		result, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed emails=%d orders=%d skipped=%d failed=%d\n", result.Scanned, len(result.Orders), result.Skipped, result.Failed)
	case "ledger:sync":
		client := ledger.NewClient(cfg)
		budget, err := client.GetBudget(context.Background())
		must(err)

		var knowledge *int64
		if stored, err := db.GetMetadata("ledger.server_knowledge"); err == nil && stored != nil {
			if parsed, err := strconv.ParseInt(*stored, 10, 64); err == nil {
				knowledge = &parsed
			}
		}

		transactions, next, err := client.GetTransactions(context.Background(), nil, knowledge)
		must(err)
		cache := ledger.NewCache(cfg.YNABPayeeFilter)
		added := cache.Absorb(transactions)
		must(db.SetMetadata("ledger.server_knowledge", strconv.FormatInt(next, 10)))
		fmt.Printf("ledger sync done budget=%q fetched=%d candidates=%d\n", budget.Name, len(transactions), added)
	case "reconcile":
		svc := listener.NewService(db, cfg, log)
		must(svc.RunOnce(context.Background()))
	case "listen":
		svc := listener.NewService(db, cfg, log)
		must(svc.Run(context.Background()))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		limit := fs.Int("limit", 500, "max rows")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		rows, err := db.ListAppliedMemos(*limit)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no applied memos to export"))
		}
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: amazon-ynab-sync <command>")
	fmt.Println("commands:")
	fmt.Println("  mail:fetch --provider=imap|gmail --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=imap|gmail [--batch=100]")
	fmt.Println("  ledger:sync")
	fmt.Println("  reconcile")
	fmt.Println("  listen")
	fmt.Println("  export:xlsx --out=./out/applied.xlsx [--limit=500]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
