// Command api serves the monitoring results over HTTP and, when
// PKI_RUN_INTERVAL_MS is set, runs periodic passes in the background.
package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/pkiops/pkihealth/internal/config"
	"github.com/pkiops/pkihealth/internal/csvlog"
	"github.com/pkiops/pkihealth/internal/httpapi"
	"github.com/pkiops/pkihealth/internal/logging"
	"github.com/pkiops/pkihealth/internal/monitor"
	"github.com/pkiops/pkihealth/internal/notify"
	"github.com/pkiops/pkihealth/internal/repo/memory"
	"github.com/pkiops/pkihealth/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	csvw, err := csvlog.Open(cfg.LogCSV)
	if err != nil {
		log.Fatal(err)
	}
	defer csvw.Close()

	store := memory.New()

	var notifiers []notify.Notifier
	if wh := notify.NewWebhook(cfg.WebhookURL); wh != nil {
		notifiers = append(notifiers, wh)
	}

	m := monitor.New(cfg, logger, csvw, store, notifiers...)

	runner := &scheduler.Runner{Logger: logger, Monitor: m, Interval: cfg.RunInterval}
	go runner.Run(context.Background())

	api := httpapi.NewServer(logger, store, m)
	api.APIKeys = cfg.APIKeys
	api.RateRPM = cfg.RateRPM
	api.RateBurst = cfg.RateBurst

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, api.Router()); err != nil {
		log.Fatal(err)
	}
}
