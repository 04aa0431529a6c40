package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classification labels logged when an availability probe fails at the
// transport level. They tell the operator whether a dead endpoint is a name
// problem or a service problem; they never enter the result records.
const (
	DNSResolves          = "resolves"
	DNSNXDomain          = "nxdomain"
	DNSNoAddressRecord   = "no_address_record"
	DNSServfailOrTimeout = "servfail_or_timeout"
	DNSInvalidName       = "invalid_name"
)

var dnsLookupTimeout = 3 * time.Second

// DNSDiagnosis summarizes what the OS resolver knows about a host.
type DNSDiagnosis struct {
	Host  string
	Class string
	Addrs []net.IP
	CNAME string
	Err   string
}

// DiagnoseDNS classifies why a hostname may be unreachable.
func DiagnoseDNS(ctx context.Context, host string) DNSDiagnosis {
	d := DNSDiagnosis{Host: strings.TrimSpace(host)}
	if d.Host == "" || strings.Contains(d.Host, "://") {
		d.Class = DNSInvalidName
		return d
	}

	ctx, cancel := context.WithTimeout(ctx, dnsLookupTimeout)
	defer cancel()
	r := &net.Resolver{}

	ips, err := r.LookupIP(ctx, "ip", d.Host)
	switch {
	case err == nil && len(ips) > 0:
		d.Addrs = ips
		d.Class = DNSResolves
	case err != nil:
		d.Err = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) && de.IsNotFound {
			d.Class = DNSNXDomain
		} else {
			d.Class = DNSServfailOrTimeout
		}
	default:
		d.Class = DNSNoAddressRecord
	}

	if cname, err := r.LookupCNAME(ctx, d.Host); err == nil && !strings.EqualFold(cname, d.Host+".") {
		d.CNAME = strings.TrimSuffix(cname, ".")
	}
	return d
}

// HostOf extracts the hostname from a URL, or returns the input unchanged
// when it is not parseable as one.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
