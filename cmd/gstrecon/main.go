package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gstrecon/internal"
	"gstrecon/internal/config"
	"gstrecon/internal/connectors"
	gmailconnector "gstrecon/internal/connectors/gmail"
	imapconnector "gstrecon/internal/connectors/imap"
	"gstrecon/internal/export"
	"gstrecon/internal/extract"
	"gstrecon/internal/gstr2b"
	"gstrecon/internal/listener"
	"gstrecon/internal/recon"
	"gstrecon/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "reconcile":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		books := fs.String("books", "", "purchase register or extracted invoices (xlsx)")
		statement := fs.String("gstr2b", "", "GSTR2B statement (xlsx)")
		out := fs.String("out", "", "optional report xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*books) == "" || strings.TrimSpace(*statement) == "" {
			must(fmt.Errorf("--books and --gstr2b are required"))
		}

		extracted, err := extract.FromFile(*books)
		must(err)
		reported, err := gstr2b.ParseWorkbook(*statement)
		must(err)

		card := recon.Run(reconConfig(cfg), config.Logger(), extracted, reported)
		printJSON(card.Summary)
		if strings.TrimSpace(*out) != "" {
			must(export.ReportToXLSX(card, *out))
			fmt.Printf("report written to %s\n", *out)
		}
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		_ = fs.Parse(os.Args[2:])
		files := fs.Args()
		if len(files) == 0 {
			must(fmt.Errorf("at least one document path is required"))
		}

		records := make([]internal.InvoiceRecord, 0, len(files))
		for _, file := range files {
			extracted, err := extract.FromFile(file)
			must(err)
			records = append(records, extracted...)
		}
		printJSON(recon.NormalizeAll(records))
	case "gstr2b:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		gstin := fs.String("gstin", "", "taxpayer GSTIN")
		period := fs.String("period", "", "return period MMYYYY")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*gstin) == "" || strings.TrimSpace(*period) == "" {
			must(fmt.Errorf("--gstin and --period are required"))
		}

		client := gstr2b.NewClient(cfg)
		records, err := client.FetchB2B(context.Background(), *gstin, *period)
		must(err)
		printJSON(recon.NormalizeAll(records))
	case "session:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "session id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		extracted, err := db.LoadInvoices(*id, internal.OriginExtracted)
		must(err)
		reported, err := db.LoadInvoices(*id, internal.OriginGSTR2B)
		must(err)
		report, err := db.LoadReport(*id)
		must(err)
		if extracted == nil && reported == nil && report == nil {
			must(fmt.Errorf("no stored data for session %s", *id))
		}

		printJSON(map[string]any{
			"session_id": *id,
			"extracted":  extracted,
			"gstr2b":     reported,
			"report":     report,
		})
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.InboxProvider, "gmail|imap")
		label := fs.String("label", cfg.InboxLabel, "mailbox/label")
		max := fs.Int("max", cfg.InboxFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.UploadDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d documents=%d\n", *provider, result.Fetched, result.Documents)
	case "mail:listen":
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		s := listener.NewService(db, cfg, config.Logger())
		must(s.Run(context.Background()))
	default:
		usage()
		os.Exit(1)
	}
}

func reconConfig(cfg config.Config) recon.Config {
	return recon.Config{
		MatchMinScore:      cfg.MatchMinScore,
		DateToleranceDays:  cfg.DateToleranceDays,
		AmountTolerancePct: cfg.AmountTolerancePct,
		AmountToleranceAbs: cfg.AmountToleranceAbs,
		MinorIssueLimit:    cfg.MinorIssueLimit,
		MatchedRatioFloor:  cfg.MatchedRatioFloor,
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

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Println("usage: gstrecon <command>")
	fmt.Println("commands:")
	fmt.Println("  reconcile --books=./register.xlsx --gstr2b=./gstr2b.xlsx [--out=./report.xlsx]")
	fmt.Println("  extract <file.pdf|file.html|file.txt|file.xlsx> [...]")
	fmt.Println("  gstr2b:fetch --gstin=27AAAAA0000A1Z5 --period=042025")
	fmt.Println("  session:show --id=<session-id>")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=20")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
