package probe

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/pkiops/pkihealth/internal/domain"
)

const (
	ocspRequestType  = "application/ocsp-request"
	ocspResponseType = "application/ocsp-response"

	// generalizedTime renders revocation instants the way OCSP responders
	// print them (RFC 5280 GeneralizedTime).
	generalizedTime = "20060102150405Z"

	// maxOCSPResponse bounds the body read; real responses are a few KB.
	maxOCSPResponse = 1 << 20
)

// OCSPChecker verifies that an OCSP responder is reachable and answers
// certificate-status queries correctly.
//
// The status exchange deliberately skips server-certificate verification:
// these probes measure responder reachability and protocol correctness, not
// transport trust. Callers must not rely on this path for trust decisions.
type OCSPChecker struct {
	httpClient *http.Client // endpoint reachability probe
	exchClient *http.Client // OCSP request/response exchange
}

func NewOCSPChecker(connectTimeout, exchangeTimeout time.Duration) *OCSPChecker {
	return &OCSPChecker{
		httpClient: &http.Client{Timeout: connectTimeout},
		exchClient: &http.Client{
			Timeout: exchangeTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// CheckEndpointReachable probes the responder URL over plain HTTP with the
// same HEAD-then-ranged-GET fallback as the artifact availability check.
func (c *OCSPChecker) CheckEndpointReachable(ctx context.Context, rawURL string) domain.Record {
	rec := domain.Record{
		Timestamp:  domain.Now(),
		Kind:       domain.KindOCSPHTTPCheck,
		Target:     rawURL,
		Status:     domain.StatusFail,
		CodeOrPort: domain.CodeUnknown,
	}

	res, err := probeWithFallback(ctx, c.httpClient, rawURL)
	rec.DurationMS = res.elapsed.Milliseconds()
	if err != nil {
		rec.Note = err.Error()
		return rec
	}

	rec.CodeOrPort = strconv.Itoa(res.code)
	if reachableCode(res.code) {
		rec.Status = domain.StatusOK
	}
	return rec
}

// SelfCheck queries the responder for a sentinel serial against the
// deployment's own CA. The sentinel is never issued, so a live responder
// answers "unknown"; the point is exercising the full request path without
// a caller-supplied serial.
func (c *OCSPChecker) SelfCheck(ctx context.Context, rawURL, issuerPath, sentinelSerial string) domain.Record {
	return c.statusBySerial(ctx, rawURL, issuerPath, sentinelSerial, domain.KindOCSPStatus)
}

// CheckStatusBySerial queries the revocation status of the certificate with
// the given serial (hex, 0x-prefixed, or decimal) issued by the certificate
// at issuerPath.
func (c *OCSPChecker) CheckStatusBySerial(ctx context.Context, rawURL, issuerPath, serial string) domain.Record {
	return c.statusBySerial(ctx, rawURL, issuerPath, serial, domain.KindOCSPStatusBySerial)
}

func (c *OCSPChecker) statusBySerial(ctx context.Context, rawURL, issuerPath, serial string, kind domain.Kind) domain.Record {
	start := time.Now()
	rec := domain.Record{
		Timestamp:  domain.Now(),
		Kind:       kind,
		Target:     rawURL,
		Status:     domain.StatusFail,
		CodeOrPort: domain.CodeUnknown,
	}
	fail := func(note string) domain.Record {
		rec.DurationMS = time.Since(start).Milliseconds()
		rec.Note = note
		return rec
	}

	// A missing issuer file is a local configuration problem; classify it
	// before touching the network so it never reads as a responder outage.
	if _, err := os.Stat(issuerPath); err != nil {
		rec.Note = "issuer certificate not found: " + issuerPath
		return rec
	}

	issuer, err := loadCertificate(issuerPath)
	if err != nil {
		return fail("issuer certificate unreadable: " + err.Error())
	}

	serialNum, err := parseSerial(serial)
	if err != nil {
		return fail(err.Error())
	}

	reqDER, err := buildRequest(issuer, serialNum)
	if err != nil {
		return fail("building OCSP request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(reqDER))
	if err != nil {
		return fail(err.Error())
	}
	req.Header.Set("Content-Type", ocspRequestType)
	req.Header.Set("Accept", ocspResponseType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.exchClient.Do(req)
	if err != nil {
		return fail(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponse))
	if err != nil {
		return fail(err.Error())
	}
	rec.CodeOrPort = strconv.Itoa(resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode))
	}

	parsed, err := ocsp.ParseResponse(body, nil)
	if err != nil {
		return fail("OCSP response error: " + err.Error())
	}

	text := renderResponseText(parsed)
	sum := sha256.Sum256([]byte(text))

	rec.Status = domain.StatusOK
	rec.DurationMS = time.Since(start).Milliseconds()
	rec.ContentHash = hex.EncodeToString(sum[:])
	rec.Note = fmt.Sprintf("%s (serial: %s)", ParseResponseText(text), serial)
	return rec
}

// loadCertificate reads a PEM or DER encoded X.509 certificate.
func loadCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if block, _ := pem.Decode(raw); block != nil {
		raw = block.Bytes
	}
	return x509.ParseCertificate(raw)
}

func parseSerial(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
		base = 16
	}
	n, ok := new(big.Int).SetString(trimmed, base)
	if !ok {
		return nil, fmt.Errorf("invalid serial number %q", s)
	}
	return n, nil
}

// buildRequest marshals an OCSP request identifying the CA by SHA-1 hashes
// of the issuer name and key (the CertID convention responders index on)
// and the subject certificate by serial alone, so no leaf certificate is
// needed on disk.
func buildRequest(issuer *x509.Certificate, serial *big.Int) ([]byte, error) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(issuer.RawSubjectPublicKeyInfo, &spki); err != nil {
		return nil, err
	}

	nameHash := sha1.Sum(issuer.RawSubject)
	keyHasher := sha1.New()
	keyHasher.Write(spki.PublicKey.RightAlign())

	req := &ocsp.Request{
		HashAlgorithm:  crypto.SHA1,
		IssuerNameHash: nameHash[:],
		IssuerKeyHash:  keyHasher.Sum(nil),
		SerialNumber:   serial,
	}
	return req.Marshal()
}

var certStatusNames = map[int]string{
	ocsp.Good:    "good",
	ocsp.Revoked: "revoked",
	ocsp.Unknown: "unknown",
}

// RFC 5280 CRLReason names, as responders print them.
var revocationReasonNames = map[int]string{
	ocsp.Unspecified:          "unspecified",
	ocsp.KeyCompromise:        "keyCompromise",
	ocsp.CACompromise:         "cACompromise",
	ocsp.AffiliationChanged:   "affiliationChanged",
	ocsp.Superseded:           "superseded",
	ocsp.CessationOfOperation: "cessationOfOperation",
	ocsp.CertificateHold:      "certificateHold",
	ocsp.RemoveFromCRL:        "removeFromCRL",
	ocsp.PrivilegeWithdrawn:   "privilegeWithdrawn",
	ocsp.AACompromise:         "aACompromise",
}

// renderResponseText produces the textual form of a parsed response that
// the rest of the pipeline consumes: the status summary is extracted from
// it and the record's content hash fingerprints it.
func renderResponseText(r *ocsp.Response) string {
	var b strings.Builder
	b.WriteString("OCSP Response Data:\n")
	status, ok := certStatusNames[r.Status]
	if !ok {
		status = "unknown"
	}
	fmt.Fprintf(&b, "    Cert Status: %s\n", status)
	if r.Status == ocsp.Revoked {
		fmt.Fprintf(&b, "    Revocation Time: %s\n", r.RevokedAt.UTC().Format(generalizedTime))
		if reason, ok := revocationReasonNames[r.RevocationReason]; ok {
			fmt.Fprintf(&b, "    Revocation Reason: %s\n", reason)
		}
	}
	if !r.ThisUpdate.IsZero() {
		fmt.Fprintf(&b, "    This Update: %s\n", r.ThisUpdate.UTC().Format(generalizedTime))
	}
	if !r.NextUpdate.IsZero() {
		fmt.Fprintf(&b, "    Next Update: %s\n", r.NextUpdate.UTC().Format(generalizedTime))
	}
	return b.String()
}

// ParseResponseText extracts the certificate status from the textual form
// of an OCSP response, line by line. It recognizes the labels
// "Cert Status:", "Revocation Time:" and "Revocation Reason:"; a text with
// no status line yields "unknown". Extraction is best-effort and never
// fails.
func ParseResponseText(text string) string {
	var status, revTime, revReason string
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.Contains(line, "Cert Status:"):
			status = afterLabel(line, "Cert Status:")
		case strings.Contains(line, "Revocation Time:"):
			revTime = afterLabel(line, "Revocation Time:")
		case strings.Contains(line, "Revocation Reason:"):
			revReason = afterLabel(line, "Revocation Reason:")
		}
	}

	if status == "" {
		return "unknown"
	}
	if revTime != "" {
		out := status + ", Revocation Time: " + revTime
		if revReason != "" {
			out += ", Reason: " + revReason
		}
		return out
	}
	return status
}

func afterLabel(line, label string) string {
	_, rest, _ := strings.Cut(line, label)
	return strings.TrimSpace(rest)
}
