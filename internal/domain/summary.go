package domain

import (
	"fmt"
	"strings"
)

// Tally counts successful probes against the total in one partition.
type Tally struct {
	OK    int `json:"ok"`
	Total int `json:"total"`
}

func (t Tally) String() string { return fmt.Sprintf("%d/%d", t.OK, t.Total) }

// Summary holds per-category tallies for one monitoring run. Records are
// partitioned by kind prefix (pdf_, crt_, crl_, ocsp_) or by exact kind
// (ldap_search, ldap_port).
type Summary struct {
	PDF        Tally `json:"pdf"`
	CRT        Tally `json:"crt"`
	CRL        Tally `json:"crl"`
	OCSP       Tally `json:"ocsp"`
	LDAPSearch Tally `json:"ldap_search"`
	LDAPPort   Tally `json:"ldap_port"`
}

// Failures returns the number of probes that did not succeed.
func (s Summary) Failures() int {
	n := 0
	for _, t := range []Tally{s.PDF, s.CRT, s.CRL, s.OCSP, s.LDAPSearch, s.LDAPPort} {
		n += t.Total - t.OK
	}
	return n
}

// Summarize computes the per-category tallies. It is a pure function over
// the record sequence: running it twice over the same records yields the
// same summary.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		var t *Tally
		switch {
		case strings.HasPrefix(string(r.Kind), "pdf_"):
			t = &s.PDF
		case strings.HasPrefix(string(r.Kind), "crt_"):
			t = &s.CRT
		case strings.HasPrefix(string(r.Kind), "crl_"):
			t = &s.CRL
		case strings.HasPrefix(string(r.Kind), "ocsp_"):
			t = &s.OCSP
		case r.Kind == KindLDAPSearch:
			t = &s.LDAPSearch
		case r.Kind == KindLDAPPort:
			t = &s.LDAPPort
		default:
			continue
		}
		t.Total++
		if r.OK() {
			t.OK++
		}
	}
	return s
}
