package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pkiops/pkihealth/internal/config"
	"github.com/pkiops/pkihealth/internal/csvlog"
	"github.com/pkiops/pkihealth/internal/domain"
	"github.com/pkiops/pkihealth/internal/repo/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		ArtifactsDir:       filepath.Join(dir, "artifacts"),
		LogCSV:             filepath.Join(dir, "results.csv"),
		CACertFile:         "issuer.crt",
		OCSPSerial:         "0xAAA",
		ConnectTimeout:     2 * time.Second,
		DownloadTimeout:    5 * time.Second,
		OCSPConnectTimeout: 2 * time.Second,
		OCSPTimeout:        2 * time.Second,
		LDAPTimeout:        time.Second,
	}
}

func TestRunCategory_PanicIsolated(t *testing.T) {
	m := New(testConfig(t), zap.NewNop(), nil, nil)

	err := m.runCategory(context.Background(), "boom", func(context.Context) {
		panic("probe exploded")
	})
	if err == nil {
		t.Fatalf("expected error from panicking category")
	}
	if !strings.Contains(err.Error(), "boom") || !strings.Contains(err.Error(), "probe exploded") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunAll_HealthyArtifactPass(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 payload"))
	}))
	defer s.Close()

	cfg := testConfig(t)
	cfg.PDFURLs = []string{s.URL + "/cp.pdf"}

	log, err := csvlog.Open(cfg.LogCSV)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer log.Close()
	store := memory.New()

	m := New(cfg, zap.NewNop(), log, store)
	if !m.RunAll(context.Background()) {
		t.Fatalf("want healthy pass, records: %+v", m.Records())
	}

	recs := m.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want check + download", len(recs))
	}
	if recs[0].Kind != domain.KindPDFCheck || !recs[0].OK() {
		t.Fatalf("check record: %+v", recs[0])
	}
	if recs[1].Kind != domain.KindPDFDownload || recs[1].ContentHash == "" {
		t.Fatalf("download record: %+v", recs[1])
	}

	stored, err := store.List(context.Background())
	if err != nil || len(stored) != 2 {
		t.Fatalf("store: %d records, err %v", len(stored), err)
	}
	persisted, err := csvlog.ReadAll(cfg.LogCSV)
	if err != nil || len(persisted) != 2 {
		t.Fatalf("csv: %d records, err %v", len(persisted), err)
	}

	sum := m.Summary()
	if sum.PDF.OK != 2 || sum.PDF.Total != 2 || sum.Failures() != 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

// A dead endpoint yields a failed check plus a skipped-download record. The
// pass itself still ran cleanly: target failures are findings, not faults.
func TestRunAll_DeadEndpointSkipsDownload(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	s.Close()

	cfg := testConfig(t)
	cfg.CRLURLs = []string{s.URL + "/x.crl"}

	m := New(cfg, zap.NewNop(), nil, memory.New())
	if !m.RunAll(context.Background()) {
		t.Fatalf("failed probes must not read as machinery faults")
	}

	recs := m.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want failed check + skipped download", len(recs))
	}
	if recs[0].Kind != domain.KindCRLCheck || recs[0].OK() || recs[0].CodeOrPort != "000" {
		t.Fatalf("check record: %+v", recs[0])
	}
	if recs[1].Kind != domain.KindCRLDownload || recs[1].Note != "URL not accessible" {
		t.Fatalf("skip record: %+v", recs[1])
	}

	sum := m.Summary()
	if sum.CRL.OK != 0 || sum.CRL.Total != 2 || sum.Failures() != 2 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestRunAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t)
	cfg.PDFURLs = []string{"http://127.0.0.1:1/never.pdf"}

	m := New(cfg, zap.NewNop(), nil, nil)
	if m.RunAll(ctx) {
		t.Fatalf("canceled pass must not report healthy")
	}
	if len(m.Records()) != 0 {
		t.Fatalf("no probes should run after cancellation, got %+v", m.Records())
	}
}

// Consecutive passes must not accumulate records across runs.
func TestRunAll_ResetsBetweenPasses(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer s.Close()

	cfg := testConfig(t)
	cfg.CRTURLs = []string{s.URL + "/ca.crt"}

	m := New(cfg, zap.NewNop(), nil, nil)
	m.RunAll(context.Background())
	first := len(m.Records())
	m.RunAll(context.Background())
	if got := len(m.Records()); got != first {
		t.Fatalf("second pass has %d records, first had %d", got, first)
	}
}
