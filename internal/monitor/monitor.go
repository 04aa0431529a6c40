// Package monitor orchestrates one full PKI health pass: artifact
// availability and downloads, OCSP responder checks and LDAP directory
// checks, in that order. Categories are fault-isolated: a panic or error in
// one never stops the others.
package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pkiops/pkihealth/internal/config"
	"github.com/pkiops/pkihealth/internal/csvlog"
	"github.com/pkiops/pkihealth/internal/domain"
	"github.com/pkiops/pkihealth/internal/notify"
	"github.com/pkiops/pkihealth/internal/probe"
	"github.com/pkiops/pkihealth/internal/repo"
)

const (
	ldapPortPlain = 389
	ldapPortTLS   = 636
)

type Monitor struct {
	cfg    config.Config
	logger *zap.Logger

	log   *csvlog.Writer
	store repo.RecordStore

	resources *probe.ResourceChecker
	ocsp      *probe.OCSPChecker
	ldap      *probe.LDAPChecker

	notifiers notify.Multi

	mu      sync.Mutex
	records []domain.Record
}

func New(cfg config.Config, logger *zap.Logger, log *csvlog.Writer, store repo.RecordStore, notifiers ...notify.Notifier) *Monitor {
	return &Monitor{
		cfg:       cfg,
		logger:    logger,
		log:       log,
		store:     store,
		resources: probe.NewResourceChecker(cfg.ConnectTimeout, cfg.DownloadTimeout),
		ocsp:      probe.NewOCSPChecker(cfg.OCSPConnectTimeout, cfg.OCSPTimeout),
		ldap:      probe.NewLDAPChecker(cfg.LDAPHost, cfg.LDAPBaseDN, cfg.LDAPFilter, cfg.LDAPTimeout),
		notifiers: notify.Multi(notifiers),
	}
}

// RunAll executes one complete pass and reports whether the probing
// machinery itself ran cleanly. Individual fail records are findings, not
// faults: they land in the log and the summary but never flip the return
// value. Only a panicking category or a canceled context does, and neither
// stops the remaining categories from running (cancellation excepted).
func (m *Monitor) RunAll(ctx context.Context) bool {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()

	categories := []struct {
		name string
		run  func(context.Context)
	}{
		{"artifacts", m.runArtifacts},
		{"ocsp", m.runOCSP},
		{"ldap", m.runLDAP},
	}

	var errs error
	for _, cat := range categories {
		if ctx.Err() != nil {
			m.logger.Warn("pass interrupted", zap.String("category", cat.name), zap.Error(ctx.Err()))
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if err := m.runCategory(ctx, cat.name, cat.run); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	summary := m.Summary()
	m.logger.Info("pass complete",
		zap.String("pdf", summary.PDF.String()),
		zap.String("crt", summary.CRT.String()),
		zap.String("crl", summary.CRL.String()),
		zap.String("ocsp", summary.OCSP.String()),
		zap.String("ldap_search", summary.LDAPSearch.String()),
		zap.String("ldap_port", summary.LDAPPort.String()),
		zap.Int("failures", summary.Failures()),
	)

	if summary.Failures() > 0 && len(m.notifiers) > 0 {
		text := fmt.Sprintf("PDF: %s, CRT: %s, CRL: %s, OCSP: %s, LDAP search: %s, LDAP port: %s",
			summary.PDF, summary.CRT, summary.CRL, summary.OCSP, summary.LDAPSearch, summary.LDAPPort)
		if err := m.notifiers.Send(ctx, "PKI health check failures", text); err != nil {
			m.logger.Warn("failure notification not delivered", zap.Error(err))
		}
	}

	return errs == nil
}

// runCategory shields the pass from a misbehaving category.
func (m *Monitor) runCategory(ctx context.Context, name string, run func(context.Context)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("category %s panicked: %v", name, r)
			m.logger.Error("category panicked", zap.String("category", name), zap.Any("panic", r))
		}
	}()
	m.logger.Info("category start", zap.String("category", name))
	run(ctx)
	return nil
}

func (m *Monitor) runArtifacts(ctx context.Context) {
	groups := []struct {
		category string
		urls     []string
	}{
		{"pdf", m.cfg.PDFURLs},
		{"crt", m.cfg.CRTURLs},
		{"crl", m.cfg.CRLURLs},
	}

	for _, g := range groups {
		destDir := filepath.Join(m.cfg.ArtifactsDir, g.category)
		for _, url := range g.urls {
			if ctx.Err() != nil {
				return
			}
			avail := m.resources.CheckAvailability(ctx, url, g.category)
			m.emit(ctx, avail)

			if !avail.OK() {
				if avail.CodeOrPort == domain.CodeUnknown {
					m.diagnoseDNS(ctx, url)
				}
				m.emit(ctx, probe.SkippedDownload(url, g.category))
				continue
			}
			m.emit(ctx, m.resources.DownloadAndHash(ctx, url, g.category, destDir))
		}
	}
}

func (m *Monitor) runOCSP(ctx context.Context) {
	issuer := filepath.Join(m.cfg.ArtifactsDir, "crt", m.cfg.CACertFile)
	for _, url := range m.cfg.OCSPURLs {
		if ctx.Err() != nil {
			return
		}
		reach := m.ocsp.CheckEndpointReachable(ctx, url)
		m.emit(ctx, reach)
		if !reach.OK() && reach.CodeOrPort == domain.CodeUnknown {
			m.diagnoseDNS(ctx, url)
		}
		m.emit(ctx, m.ocsp.SelfCheck(ctx, url, issuer, m.cfg.OCSPSerial))
	}
}

func (m *Monitor) runLDAP(ctx context.Context) {
	host := m.ldap.Host()
	if host == "" {
		m.logger.Info("ldap checks disabled, no host configured")
		return
	}

	m.emit(ctx, m.ldap.CheckPort(host, ldapPortPlain))
	m.emit(ctx, m.ldap.CheckPort(host, ldapPortTLS))

	for _, proto := range []probe.LDAPProtocol{probe.LDAPPlain, probe.LDAPTLS} {
		if ctx.Err() != nil {
			return
		}
		rec, evidence := m.ldap.CheckSearch(proto)
		if evidence != "" {
			m.logger.Info("ldap entry found",
				zap.String("protocol", string(proto)), zap.String("dn", evidence))
		}
		m.emit(ctx, rec)
	}
}

// emit records one probe outcome everywhere it belongs: the CSV log, the
// store, the in-memory pass buffer and the operational log.
func (m *Monitor) emit(ctx context.Context, rec domain.Record) {
	if m.log != nil {
		if err := m.log.Append(rec); err != nil {
			m.logger.Error("csv append failed", zap.Error(err), zap.String("kind", string(rec.Kind)))
		}
	}
	if m.store != nil {
		if err := m.store.Append(ctx, rec); err != nil {
			m.logger.Error("store append failed", zap.Error(err), zap.String("kind", string(rec.Kind)))
		}
	}

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()

	m.logger.Info("probe result",
		zap.String("kind", string(rec.Kind)),
		zap.String("target", rec.Target),
		zap.String("status", string(rec.Status)),
		zap.String("code_or_port", rec.CodeOrPort),
		zap.Int64("duration_ms", rec.DurationMS),
		zap.String("note", rec.Note),
	)
}

func (m *Monitor) diagnoseDNS(ctx context.Context, url string) {
	d := probe.DiagnoseDNS(ctx, probe.HostOf(url))
	m.logger.Warn("transport failure diagnosis",
		zap.String("host", d.Host),
		zap.String("dns", d.Class),
		zap.String("cname", d.CNAME),
		zap.String("err", d.Err),
	)
}

// Records returns the records of the most recent pass.
func (m *Monitor) Records() []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Summary tallies the most recent pass per category.
func (m *Monitor) Summary() domain.Summary {
	return domain.Summarize(m.Records())
}
