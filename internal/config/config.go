// Package config supplies the run-time configuration for the PKI health
// checks. Every value has a documented default matching the production
// deployment; any of them can be overridden through PKI_*/API_* environment
// variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Default probe targets of the eID PKI repository.
var (
	defaultPDFURLs = []string{
		"https://repository.eidpki.ee/static/Root%20CP_V%201.1%20-%20signed%2030.05.2025.pdf",
		"https://repository.eidpki.ee/static/Root%20CP_V%201.1%20-%20signed%2030.05.2025.pdf",
		"https://repository.eidpki.ee/static/2025%2010%2003%20-%20ZE%20CPS-ID1-ROOT-CA%20v1.3%20-%20Approved.pdf",
		"https://repository.eidpki.ee/static/2025%2010%2001%20-%20ZE%20CPS-ID1-EID-CA%20v1.3%20-%20Approved.pdf",
		"https://repository.eidpki.ee/static/2025%2010%2003%20-%20ZE%20TSPS-ID1%20v1.3%20-%20Approved.pdf",
		"https://repository.eidpki.ee/static/2025%2010%2003%20-%20ZE%20TC-ID1%20v1.3%20-%20Approved.pdf",
		"https://repository.eidpki.ee/static/2025%2010%2003%20-%20ZE%20TC-ID1-SUB%20v1.3%20-%20Approved.pdf",
		"https://repository.eidpki.ee/static/2025-10-03-ze-tc-id1-sub-v1.3_PBGB_Estonian%20Approved.pdf",
		"https://repository.eidpki.ee/static/Technical%20profile%20of%20certificates%20OCSP%20responses%20and%20CRLs_20251001_withoutUAT.pdf",
	}
	defaultCRTURLs = []string{
		"https://crt.eidpki.ee/EEGovCA2025.crt",
		"https://crt.eidpki.ee/ESTEID2025.crt",
	}
	defaultCRLURLs = []string{
		"https://crl.eidpki.ee/EEGovCA2025.crl",
		"https://crl.eidpki.ee/ESTEID2025.crl",
	}
	defaultOCSPURLs = []string{
		"https://ocsp.eidpki.ee",
	}
)

type Config struct {
	ArtifactsDir string // root of the pdf/ crt/ crl/ download tree
	LogCSV       string // append-only result record log
	LogDir       string // operational (zap) logs directory

	PDFURLs  []string
	CRTURLs  []string
	CRLURLs  []string
	OCSPURLs []string

	LDAPHost   string
	LDAPBaseDN string
	LDAPFilter string

	// CACertFile is the well-known issuer certificate filename the OCSP
	// self-check expects under <ArtifactsDir>/crt/.
	CACertFile string
	// OCSPSerial is the sentinel serial queried by the OCSP self-check.
	// It is never issued, so a live responder answers "unknown".
	OCSPSerial string

	ConnectTimeout     time.Duration // HEAD / ranged-GET availability probes
	DownloadTimeout    time.Duration // full artifact downloads
	OCSPConnectTimeout time.Duration // OCSP endpoint reachability probe
	OCSPTimeout        time.Duration // whole OCSP request/response exchange
	LDAPTimeout        time.Duration // LDAP dial, bind and search

	Addr        string        // API bind address
	APIKeys     []string      // empty means auth disabled (local dev)
	RateRPM     int           // API requests per minute per client IP
	RateBurst   int           // API rate-limit burst
	RunInterval time.Duration // periodic run interval for API mode, 0 = off
	WebhookURL  string        // failure notification webhook, empty = off
}

func FromEnv() Config {
	return Config{
		ArtifactsDir: envStr("PKI_ARTIFACTS_DIR", "./artifacts"),
		LogCSV:       envStr("PKI_LOG_CSV", "./results.csv"),
		LogDir:       envStr("LOG_DIR", "logs"),

		PDFURLs:  envList("PKI_PDF_URLS", defaultPDFURLs),
		CRTURLs:  envList("PKI_CRT_URLS", defaultCRTURLs),
		CRLURLs:  envList("PKI_CRL_URLS", defaultCRLURLs),
		OCSPURLs: envList("PKI_OCSP_URLS", defaultOCSPURLs),

		LDAPHost:   envStr("PKI_LDAP_HOST", "ldap.eidpki.ee"),
		LDAPBaseDN: envStr("PKI_LDAP_BASE", "dc=ldap,dc=eidpki,dc=ee"),
		LDAPFilter: envStr("PKI_LDAP_FILTER", "(objectClass=*)"),

		CACertFile: envStr("PKI_CA_CERT", "ESTEID2025.crt"),
		OCSPSerial: envStr("PKI_OCSP_SERIAL", "0xAAA"),

		ConnectTimeout:     envMS("PKI_CONNECT_TIMEOUT_MS", 10*time.Second),
		DownloadTimeout:    envMS("PKI_DOWNLOAD_TIMEOUT_MS", 60*time.Second),
		OCSPConnectTimeout: envMS("PKI_OCSP_CONNECT_TIMEOUT_MS", 5*time.Second),
		OCSPTimeout:        envMS("PKI_OCSP_TIMEOUT_MS", 15*time.Second),
		LDAPTimeout:        envMS("PKI_LDAP_TIMEOUT_MS", 10*time.Second),

		Addr:        envStr("API_ADDR", "127.0.0.1:8080"),
		APIKeys:     envList("API_KEYS", nil),
		RateRPM:     envInt("API_RATE_RPM", 120),
		RateBurst:   envInt("API_RATE_BURST", 60),
		RunInterval: envMS("PKI_RUN_INTERVAL_MS", 0),
		WebhookURL:  envStr("PKI_WEBHOOK_URL", ""),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envMS(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

// envList reads a comma-separated list; blank items are dropped.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
