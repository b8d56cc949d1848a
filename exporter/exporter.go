// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package exporter sinks probe results into Prometheus metrics: a fixed
// CounterVec/HistogramVec registered up front for process-level monitoring
// (probes_total, probe_duration_seconds), and a dynamic metric set keyed by
// whatever label names the script's rendered output happens to contain,
// since those are only known once a probe has actually run.
package exporter

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/probed/common"
	"github.com/packetd/probed/internal/metricstorage"
	"github.com/packetd/probed/probe"
)

// Config is the exporter's own persisted configuration child.
type Config struct {
	// Expired bounds how long a dynamic label series survives without a
	// fresh probe result before internal/metricstorage garbage-collects it.
	Expired time.Duration `config:"expired"`
}

var (
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "probes_total",
			Help:      "total probes run, partitioned by monitored server and outcome",
		},
		[]string{"server", "result"},
	)
	probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: common.App,
			Name:      "probe_duration_seconds",
			Help:      "probe round-trip duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server"},
	)
	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "build_info",
			Help:      "build metadata, value is always 1",
		},
		[]string{"version", "git_hash"},
	)
)

// Exporter owns the dynamic metric Storage a probe's rendered label
// fragment is recorded into, alongside the fixed process-level metrics
// above.
type Exporter struct {
	storage *metricstorage.Storage
}

// New creates an Exporter and stamps the build_info gauge once.
func New(cfg Config) *Exporter {
	if cfg.Expired <= 0 {
		cfg.Expired = 5 * time.Minute
	}
	info := common.GetBuildInfo()
	buildInfo.WithLabelValues(info.Version, info.GitHash).Set(1)

	return &Exporter{storage: metricstorage.New(metricstorage.Config{Expired: cfg.Expired})}
}

// Record folds one probe Result into both the fixed and dynamic metric
// sets: probes_total/probe_duration_seconds always record, and the
// script's rendered label fragment backs a dynamic probe_result gauge
// carrying whatever key=value pairs the script author chose, with a
// trailing 1/0 supplied by the probe's own success flag, exactly as spec
// §6 describes the outer monitoring system's framing of the label string.
func (e *Exporter) Record(res *probe.Result) {
	resultLabel := "success"
	value := 1.0
	if !res.Success {
		resultLabel = "failure"
		value = 0.0
	}

	probesTotal.WithLabelValues(res.Server, resultLabel).Inc()
	probeDuration.WithLabelValues(res.Server).Observe(float64(res.ElapsedMS) / 1000)

	lbs := parseLabelFragment(res.Label)
	lbs = append(lbs, labelPair("server", res.Server))
	e.storage.Update(metricstorage.NewGaugeConstMetric("probe_result", value, lbs))
}

// WritePrometheus writes every dynamic, script-labeled series the exporter
// has recorded. The fixed probesTotal/probeDuration/buildInfo series are
// exposed separately through the default promauto registry via promhttp.
func (e *Exporter) WritePrometheus(w io.Writer) {
	e.storage.WritePrometheus(w)
}

// Close releases the dynamic metric storage's background GC goroutine.
func (e *Exporter) Close() {
	e.storage.Close()
}
