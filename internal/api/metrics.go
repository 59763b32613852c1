package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/hydro.report/internal/monitoring"
)

// RunCounter reports how many runs were recorded with each status.
type RunCounter interface {
	RunCounts() (map[string]int, error)
}

// historyCollector turns the run history into gauges at scrape time.
type historyCollector struct {
	src  RunCounter
	runs *prometheus.Desc
	up   *prometheus.Desc
}

func newHistoryCollector(src RunCounter) *historyCollector {
	return &historyCollector{
		src: src,
		runs: prometheus.NewDesc("hydro_recorded_runs",
			"Runs in the history database by outcome.", []string{"status"}, nil),
		up: prometheus.NewDesc("hydro_history_up",
			"Whether the history database answered the last scrape.", nil, nil),
	}
}

func (c *historyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runs
	ch <- c.up
}

func (c *historyCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.src.RunCounts()
	if err != nil {
		monitoring.Logf("count recorded runs: %v", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.runs, prometheus.GaugeValue, float64(n), status)
	}
}
