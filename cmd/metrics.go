package cmd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hetmem/hetmem/core"
)

// serveMetrics exposes the client's counters for prometheus scraping.
// Scrapes only read atomic usage counters and single-writer totals, so
// serving while training runs is safe.
func serveMetrics(addr string, client *core.Client) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(core.NewCollector(client))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.Warnf("metrics server stopped: %v", err)
		}
	}()
	logrus.Infof("serving metrics on %s", addr)
}
