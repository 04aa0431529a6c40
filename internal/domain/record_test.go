package domain

import (
	"testing"
	"time"
)

func TestRecord_Validate(t *testing.T) {
	good := Record{
		Timestamp:  Timestamp(time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)),
		Kind:       KindPDFCheck,
		Target:     "https://example.com/a.pdf",
		Status:     StatusOK,
		CodeOrPort: "200",
		DurationMS: 42,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	bad := good
	bad.Timestamp = ""
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for empty timestamp")
	}

	bad = good
	bad.Kind = ""
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for empty kind")
	}

	bad = good
	bad.Status = "maybe"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for bogus status")
	}

	bad = good
	bad.DurationMS = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for negative duration")
	}
}

func TestTimestamp_Format(t *testing.T) {
	ts := Timestamp(time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC))
	if ts != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected timestamp format: %q", ts)
	}
}

func TestKindHelpers(t *testing.T) {
	if CheckKind("pdf") != KindPDFCheck {
		t.Fatalf("CheckKind(pdf) = %q", CheckKind("pdf"))
	}
	if DownloadKind("crl") != KindCRLDownload {
		t.Fatalf("DownloadKind(crl) = %q", DownloadKind("crl"))
	}
}

func TestSummarize_PartitionsAndCounts(t *testing.T) {
	recs := []Record{
		{Kind: KindPDFCheck, Status: StatusOK},
		{Kind: KindPDFDownload, Status: StatusFail},
		{Kind: KindCRTCheck, Status: StatusOK},
		{Kind: KindCRTDownload, Status: StatusOK},
		{Kind: KindCRLCheck, Status: StatusFail},
		{Kind: KindOCSPHTTPCheck, Status: StatusOK},
		{Kind: KindOCSPStatus, Status: StatusOK},
		{Kind: KindOCSPStatusBySerial, Status: StatusFail},
		{Kind: KindLDAPPort, Status: StatusOK},
		{Kind: KindLDAPPort, Status: StatusFail},
		{Kind: KindLDAPSearch, Status: StatusOK},
	}

	s := Summarize(recs)

	if s.PDF != (Tally{OK: 1, Total: 2}) {
		t.Fatalf("pdf tally: %+v", s.PDF)
	}
	if s.CRT != (Tally{OK: 2, Total: 2}) {
		t.Fatalf("crt tally: %+v", s.CRT)
	}
	if s.CRL != (Tally{OK: 0, Total: 1}) {
		t.Fatalf("crl tally: %+v", s.CRL)
	}
	if s.OCSP != (Tally{OK: 2, Total: 3}) {
		t.Fatalf("ocsp tally: %+v", s.OCSP)
	}
	if s.LDAPPort != (Tally{OK: 1, Total: 2}) {
		t.Fatalf("ldap port tally: %+v", s.LDAPPort)
	}
	if s.LDAPSearch != (Tally{OK: 1, Total: 1}) {
		t.Fatalf("ldap search tally: %+v", s.LDAPSearch)
	}
	if s.Failures() != 4 {
		t.Fatalf("failures = %d, want 4", s.Failures())
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	recs := []Record{
		{Kind: KindPDFCheck, Status: StatusOK},
		{Kind: KindLDAPSearch, Status: StatusFail},
	}
	first := Summarize(recs)
	second := Summarize(recs)
	if first != second {
		t.Fatalf("summaries differ: %+v vs %+v", first, second)
	}
}
