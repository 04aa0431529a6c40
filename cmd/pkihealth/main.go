// Command pkihealth runs one full PKI health pass and prints a per-category
// summary plus the tail of the results log. Failed probes are findings and
// land in the summary; the exit code is nonzero only when the probing
// machinery itself broke, or when summary-only mode cannot read the log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkiops/pkihealth/internal/config"
	"github.com/pkiops/pkihealth/internal/csvlog"
	"github.com/pkiops/pkihealth/internal/domain"
	"github.com/pkiops/pkihealth/internal/logging"
	"github.com/pkiops/pkihealth/internal/monitor"
	"github.com/pkiops/pkihealth/internal/notify"
	"github.com/pkiops/pkihealth/internal/repo/memory"
)

func main() {
	cfg := config.FromEnv()

	artifacts := flag.String("artifacts", cfg.ArtifactsDir, "artifact download directory")
	logCSV := flag.String("log", cfg.LogCSV, "append-only CSV results log")
	lines := flag.Int("lines", 20, "result log lines to print after the pass")
	summaryOnly := flag.Bool("summary-only", false, "summarize the existing results log without probing")
	flag.Parse()

	cfg.ArtifactsDir = *artifacts
	cfg.LogCSV = *logCSV

	if *summaryOnly {
		recs, err := csvlog.ReadAll(cfg.LogCSV)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read results log %s: %v\n", cfg.LogCSV, err)
			os.Exit(1)
		}
		printSummary(domain.Summarize(recs))
		return
	}

	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	csvw, err := csvlog.Open(cfg.LogCSV)
	if err != nil {
		log.Fatal(err)
	}
	defer csvw.Close()

	var notifiers []notify.Notifier
	if wh := notify.NewWebhook(cfg.WebhookURL); wh != nil {
		notifiers = append(notifiers, wh)
	}

	m := monitor.New(cfg, logger, csvw, memory.New(), notifiers...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clean := m.RunAll(ctx)
	printSummary(m.Summary())
	printTail(cfg.LogCSV, *lines)

	if !clean {
		os.Exit(1)
	}
}

func printSummary(s domain.Summary) {
	fmt.Printf("PDF:  %s OK\n", s.PDF)
	fmt.Printf("CRT:  %s OK\n", s.CRT)
	fmt.Printf("CRL:  %s OK\n", s.CRL)
	fmt.Printf("OCSP: %s OK\n", s.OCSP)
	fmt.Printf("LDAP: %d/%d searches OK, %d/%d ports OK\n",
		s.LDAPSearch.OK, s.LDAPSearch.Total, s.LDAPPort.OK, s.LDAPPort.Total)
}

func printTail(path string, n int) {
	lines, err := csvlog.Tail(path, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot tail results log: %v\n", err)
		return
	}
	if len(lines) == 0 {
		return
	}
	fmt.Printf("\nlast %d result(s):\n", len(lines))
	for _, l := range lines {
		fmt.Println(l)
	}
}
