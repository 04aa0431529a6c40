package probe

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/pkiops/pkihealth/internal/domain"
)

// LDAPProtocol selects plain or TLS transport for a directory search.
type LDAPProtocol string

const (
	LDAPPlain LDAPProtocol = "ldap"
	LDAPTLS   LDAPProtocol = "ldaps"
)

// LDAPChecker verifies that the PKI directory mirror answers on its
// standard ports and serves a basic one-level search.
//
// The LDAPS variant skips server-certificate verification: like the OCSP
// exchange, this probe measures reachability, not transport trust.
type LDAPChecker struct {
	host    string
	baseDN  string
	filter  string
	timeout time.Duration
}

func NewLDAPChecker(host, baseDN, filter string, timeout time.Duration) *LDAPChecker {
	return &LDAPChecker{host: host, baseDN: baseDN, filter: filter, timeout: timeout}
}

// Host returns the configured directory host.
func (c *LDAPChecker) Host() string { return c.host }

// CheckPort attempts a TCP connect to host:port. A refused or timed-out
// connect reports duration 0: the latency of a failed handshake is
// meaningless and recording it would mislead.
func (c *LDAPChecker) CheckPort(host string, port int) domain.Record {
	rec := domain.Record{
		Timestamp:  domain.Now(),
		Kind:       domain.KindLDAPPort,
		Target:     host,
		Status:     domain.StatusFail,
		CodeOrPort: strconv.Itoa(port),
	}

	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), c.timeout)
	if err != nil {
		return rec
	}
	conn.Close()

	rec.Status = domain.StatusOK
	rec.DurationMS = time.Since(start).Milliseconds()
	return rec
}

// CheckSearch connects over the given protocol, binds anonymously and runs
// a one-level search under the configured base DN requesting only cn.
// A well-formed empty result set is a successful probe of a healthy but
// empty directory ("empty"), distinct from a search that could not complete.
// It returns the record plus the first entry's DN as evidence when one was
// found.
func (c *LDAPChecker) CheckSearch(protocol LDAPProtocol) (domain.Record, string) {
	target := fmt.Sprintf("%s://%s", protocol, c.host)
	rec := domain.Record{
		Timestamp:  domain.Now(),
		Kind:       domain.KindLDAPSearch,
		Target:     target,
		Status:     domain.StatusFail,
		CodeOrPort: strings.ToUpper(string(protocol)),
	}

	start := time.Now()
	done := func() { rec.DurationMS = time.Since(start).Milliseconds() }

	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: c.timeout})}
	if protocol == LDAPTLS {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}

	conn, err := ldap.DialURL(target, opts...)
	if err != nil {
		done()
		rec.Note = noteForSearchErr("connect", err)
		return rec, ""
	}
	defer conn.Close()
	conn.SetTimeout(c.timeout)

	if err := conn.UnauthenticatedBind(""); err != nil {
		done()
		rec.Note = noteForSearchErr("bind", err)
		return rec, ""
	}

	req := ldap.NewSearchRequest(
		c.baseDN,
		ldap.ScopeSingleLevel,
		ldap.NeverDerefAliases,
		0,                            // no size limit
		int(c.timeout.Seconds()),     // server-side time limit
		false,                        // types only
		c.filter,
		[]string{"cn"},
		nil,
	)

	sr, err := conn.Search(req)
	done()

	status, note, evidence := classifySearch(sr, err)
	rec.Status = status
	rec.Note = note
	return rec, evidence
}

// classifySearch maps a search outcome onto the three-way result split:
// entries found, well-formed empty answer, or a search that failed.
func classifySearch(sr *ldap.SearchResult, err error) (domain.Status, string, string) {
	if err != nil {
		return domain.StatusFail, noteForSearchErr("search", err), ""
	}
	if sr == nil {
		return domain.StatusFail, "operation failed", ""
	}
	if len(sr.Entries) > 0 {
		return domain.StatusOK, "found", sr.Entries[0].DN
	}
	return domain.StatusOK, "empty", ""
}

func noteForSearchErr(op string, err error) string {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return "query timeout"
	}
	return op + " error: " + err.Error()
}
