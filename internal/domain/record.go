// Package domain holds the shared data model: the uniform Record every
// probe produces and the per-category summary computed over a run.
package domain

import (
	"errors"
	"time"
)

// Status is the outcome of a single probe.
type Status string

const (
	StatusOK   Status = "ok"
	StatusFail Status = "fail"
)

// Kind identifies the probe that produced a record.
type Kind string

const (
	KindPDFCheck    Kind = "pdf_check"
	KindPDFDownload Kind = "pdf_download"
	KindCRTCheck    Kind = "crt_check"
	KindCRTDownload Kind = "crt_download"
	KindCRLCheck    Kind = "crl_check"
	KindCRLDownload Kind = "crl_download"

	KindOCSPHTTPCheck      Kind = "ocsp_http_check"
	KindOCSPStatus         Kind = "ocsp_status"
	KindOCSPStatusBySerial Kind = "ocsp_status_by_serial"

	KindLDAPPort   Kind = "ldap_port"
	KindLDAPSearch Kind = "ldap_search"
)

// CheckKind returns the availability-check kind for an artifact category
// ("pdf", "crt", "crl").
func CheckKind(category string) Kind { return Kind(category + "_check") }

// DownloadKind returns the download kind for an artifact category.
func DownloadKind(category string) Kind { return Kind(category + "_download") }

// CodeUnknown is recorded in CodeOrPort when no numeric HTTP code or port
// was obtained before the probe failed.
const CodeUnknown = "000"

// TimeLayout is the timestamp format carried by every record: UTC, second
// precision, ISO-8601 with a literal Z suffix.
const TimeLayout = "2006-01-02T15:04:05Z"

// Timestamp formats t as a record timestamp.
func Timestamp(t time.Time) string { return t.UTC().Format(TimeLayout) }

// Now returns the current time as a record timestamp.
func Now() string { return Timestamp(time.Now()) }

// Record is the uniform result of one probe. A record is created by exactly
// one checker call, is immutable once returned, and is appended once to the
// result log. Timestamp is stored pre-formatted so the log round-trips
// string-for-string.
type Record struct {
	Timestamp   string `json:"timestamp"`
	Kind        Kind   `json:"kind"`
	Target      string `json:"target"`
	Status      Status `json:"status"`
	CodeOrPort  string `json:"code_or_port"`
	DurationMS  int64  `json:"duration_ms"`
	ContentHash string `json:"content_hash,omitempty"`
	Note        string `json:"note,omitempty"`
}

// OK reports whether the probe succeeded.
func (r Record) OK() bool { return r.Status == StatusOK }

var (
	errNoTimestamp = errors.New("record: empty timestamp")
	errNoKind      = errors.New("record: empty kind")
	errBadStatus   = errors.New("record: status must be ok or fail")
	errBadDuration = errors.New("record: negative duration")
)

// Validate checks the construction invariants. It is enforced at the log
// boundary so a malformed record never reaches the on-disk log.
func (r Record) Validate() error {
	if r.Timestamp == "" {
		return errNoTimestamp
	}
	if r.Kind == "" {
		return errNoKind
	}
	if r.Status != StatusOK && r.Status != StatusFail {
		return errBadStatus
	}
	if r.DurationMS < 0 {
		return errBadDuration
	}
	return nil
}
