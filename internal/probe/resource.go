package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkiops/pkihealth/internal/domain"
)

// downloadStamp prefixes every stored artifact filename.
const downloadStamp = "20060102T150405Z"

// ResourceChecker probes published PKI artifacts (policy PDFs, issuer
// certificates, CRLs) over HTTP(S) and, when reachable, downloads and
// fingerprints them.
type ResourceChecker struct {
	headClient *http.Client // availability probes, short timeout
	getClient  *http.Client // full downloads, long timeout
}

func NewResourceChecker(connectTimeout, downloadTimeout time.Duration) *ResourceChecker {
	return &ResourceChecker{
		headClient: &http.Client{Timeout: connectTimeout},
		getClient:  &http.Client{Timeout: downloadTimeout},
	}
}

// CheckAvailability verifies that url answers HTTP without transferring the
// body: HEAD first, ranged GET when the server rejects HEAD with 403/405.
// The probe succeeds iff the final code is 200 or 206. A non-{200,206}
// answer keeps the numeric code in the record, distinguishing "answered
// wrongly" from "unreachable" (code 000).
func (c *ResourceChecker) CheckAvailability(ctx context.Context, rawURL, category string) domain.Record {
	rec := domain.Record{
		Timestamp:  domain.Now(),
		Kind:       domain.CheckKind(category),
		Target:     rawURL,
		Status:     domain.StatusFail,
		CodeOrPort: domain.CodeUnknown,
	}

	res, err := probeWithFallback(ctx, c.headClient, rawURL)
	rec.DurationMS = res.elapsed.Milliseconds()
	if err != nil {
		rec.Note = err.Error()
		return rec
	}

	rec.CodeOrPort = strconv.Itoa(res.code)
	rec.Note = "Content-Type: " + res.contentType
	if reachableCode(res.code) {
		rec.Status = domain.StatusOK
	}
	return rec
}

// DownloadAndHash fetches the full resource, stores it under outDir as
// <UTC-stamp>-<basename> and records the SHA-256 of the stored bytes.
// The body is hashed while it streams to disk, so arbitrarily large
// artifacts never sit in memory. The file is written to a .part name and
// renamed only after a clean copy, so a truncated download can never be
// mistaken for a complete artifact.
func (c *ResourceChecker) DownloadAndHash(ctx context.Context, rawURL, category, outDir string) domain.Record {
	start := time.Now()
	rec := domain.Record{
		Timestamp:  domain.Now(),
		Kind:       domain.DownloadKind(category),
		Target:     rawURL,
		Status:     domain.StatusFail,
		CodeOrPort: domain.CodeUnknown,
	}
	fail := func(note string) domain.Record {
		rec.DurationMS = time.Since(start).Milliseconds()
		rec.Note = note
		return rec
	}

	resp, err := doProbe(ctx, c.getClient, http.MethodGet, rawURL, "")
	if err != nil {
		return fail(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rec.CodeOrPort = strconv.Itoa(resp.StatusCode)
		return fail(fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode))
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fail(err.Error())
	}

	name := time.Now().UTC().Format(downloadStamp) + "-" + downloadBasename(rawURL, category)
	final := filepath.Join(outDir, name)
	part := final + ".part"

	f, err := os.Create(part)
	if err != nil {
		return fail(err.Error())
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		f.Close()
		os.Remove(part)
		return fail(err.Error())
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return fail(err.Error())
	}
	if err := os.Rename(part, final); err != nil {
		os.Remove(part)
		return fail(err.Error())
	}

	rec.Status = domain.StatusOK
	rec.CodeOrPort = strconv.Itoa(http.StatusOK)
	rec.DurationMS = time.Since(start).Milliseconds()
	rec.ContentHash = hex.EncodeToString(h.Sum(nil))
	return rec
}

// SkippedDownload is the synthetic record the orchestrator emits instead of
// calling DownloadAndHash when the preceding availability check failed.
func SkippedDownload(rawURL, category string) domain.Record {
	return domain.Record{
		Timestamp:  domain.Now(),
		Kind:       domain.DownloadKind(category),
		Target:     rawURL,
		Status:     domain.StatusFail,
		CodeOrPort: domain.CodeUnknown,
		Note:       "URL not accessible",
	}
}

func downloadBasename(rawURL, category string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return category + "_file"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return category + "_file"
	}
	return base
}
