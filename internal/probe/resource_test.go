package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func newTestResourceChecker() *ResourceChecker {
	return NewResourceChecker(2*time.Second, 5*time.Second)
}

func TestCheckAvailability_OK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()

	rec := newTestResourceChecker().CheckAvailability(context.Background(), s.URL, "pdf")
	if !rec.OK() {
		t.Fatalf("want ok, got %+v", rec)
	}
	if rec.Kind != "pdf_check" {
		t.Fatalf("kind = %q", rec.Kind)
	}
	if rec.CodeOrPort != "200" {
		t.Fatalf("code = %q", rec.CodeOrPort)
	}
	if rec.Note != "Content-Type: application/pdf" {
		t.Fatalf("note = %q", rec.Note)
	}
	if rec.DurationMS < 0 {
		t.Fatalf("duration negative: %d", rec.DurationMS)
	}
	if rec.Timestamp == "" {
		t.Fatalf("timestamp empty")
	}
}

// A server that rejects HEAD with 405 but honors a ranged GET must count as
// reachable with the ranged status code.
func TestCheckAvailability_HeadRejectedFallsBackToRangedGet(t *testing.T) {
	var sawRange string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer s.Close()

	rec := newTestResourceChecker().CheckAvailability(context.Background(), s.URL, "crt")
	if !rec.OK() {
		t.Fatalf("want ok, got %+v", rec)
	}
	if rec.CodeOrPort != "206" {
		t.Fatalf("code = %q, want 206", rec.CodeOrPort)
	}
	if sawRange != "bytes=0-0" {
		t.Fatalf("fallback GET range = %q", sawRange)
	}
}

func TestCheckAvailability_ForbiddenAlsoTriggersFallback(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()

	rec := newTestResourceChecker().CheckAvailability(context.Background(), s.URL, "crl")
	if !rec.OK() || rec.CodeOrPort != "200" {
		t.Fatalf("want ok/200 after 403 fallback, got %+v", rec)
	}
}

// A server that answers, but wrongly, keeps its numeric code in the record.
func TestCheckAvailability_BadStatusKeepsCode(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer s.Close()

	rec := newTestResourceChecker().CheckAvailability(context.Background(), s.URL, "pdf")
	if rec.OK() {
		t.Fatalf("want fail, got %+v", rec)
	}
	if rec.CodeOrPort != "404" {
		t.Fatalf("code = %q, want 404", rec.CodeOrPort)
	}
}

func TestCheckAvailability_TransportError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	s.Close() // guaranteed refused

	rec := newTestResourceChecker().CheckAvailability(context.Background(), s.URL, "pdf")
	if rec.OK() {
		t.Fatalf("want fail, got %+v", rec)
	}
	if rec.CodeOrPort != "000" {
		t.Fatalf("code = %q, want 000", rec.CodeOrPort)
	}
	if rec.Note == "" {
		t.Fatalf("expected error text in note")
	}
}

func TestDownloadAndHash_StoresAndHashes(t *testing.T) {
	body := []byte("pki artifact payload")
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer s.Close()

	dir := t.TempDir()
	rec := newTestResourceChecker().DownloadAndHash(context.Background(), s.URL+"/EEGovCA2025.crt", "crt", dir)
	if !rec.OK() {
		t.Fatalf("want ok, got %+v", rec)
	}
	if rec.Kind != "crt_download" || rec.CodeOrPort != "200" {
		t.Fatalf("record shape: %+v", rec)
	}

	sum := sha256.Sum256(body)
	if rec.ContentHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("hash = %q", rec.ContentHash)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected exactly one stored file, got %v (%v)", entries, err)
	}
	name := entries[0].Name()
	if !strings.HasSuffix(name, "-EEGovCA2025.crt") {
		t.Fatalf("stored name = %q", name)
	}
	if strings.HasSuffix(name, ".part") {
		t.Fatalf("temp file leaked: %q", name)
	}
	stored, err := os.ReadFile(dir + "/" + name)
	if err != nil || string(stored) != string(body) {
		t.Fatalf("stored content mismatch: %q (%v)", stored, err)
	}
}

// A download cut short must not leave anything that looks like a complete
// artifact.
func TestDownloadAndHash_TruncatedBodyLeavesNoFile(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Write([]byte("short"))
	}))
	defer s.Close()

	dir := t.TempDir()
	rec := newTestResourceChecker().DownloadAndHash(context.Background(), s.URL+"/doc.pdf", "pdf", dir)
	if rec.OK() {
		t.Fatalf("want fail on truncated body, got %+v", rec)
	}
	if rec.ContentHash != "" {
		t.Fatalf("no hash expected on failure, got %q", rec.ContentHash)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".part") {
			t.Fatalf("truncated download left file %q", e.Name())
		}
		t.Fatalf("temp file not cleaned up: %q", e.Name())
	}
}

func TestDownloadAndHash_UnexpectedStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer s.Close()

	rec := newTestResourceChecker().DownloadAndHash(context.Background(), s.URL, "pdf", t.TempDir())
	if rec.OK() {
		t.Fatalf("want fail, got %+v", rec)
	}
	if rec.CodeOrPort != "500" {
		t.Fatalf("code = %q, want 500", rec.CodeOrPort)
	}
}

func TestSkippedDownload(t *testing.T) {
	rec := SkippedDownload("https://example.com/a.pdf", "pdf")
	if rec.OK() {
		t.Fatalf("want fail")
	}
	if rec.Kind != "pdf_download" || rec.CodeOrPort != "000" {
		t.Fatalf("record shape: %+v", rec)
	}
	if rec.Note != "URL not accessible" {
		t.Fatalf("note = %q", rec.Note)
	}
	if rec.DurationMS != 0 {
		t.Fatalf("no download happened; duration = %d", rec.DurationMS)
	}
}

func TestDownloadBasename(t *testing.T) {
	cases := []struct{ url, category, want string }{
		{"https://crt.eidpki.ee/ESTEID2025.crt", "crt", "ESTEID2025.crt"},
		{"https://repository.eidpki.ee/static/Root%20CP.pdf", "pdf", "Root CP.pdf"},
		{"https://ocsp.eidpki.ee/", "crl", "crl_file"},
		{"https://ocsp.eidpki.ee", "crl", "crl_file"},
	}
	for _, c := range cases {
		if got := downloadBasename(c.url, c.category); got != c.want {
			t.Fatalf("downloadBasename(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}
