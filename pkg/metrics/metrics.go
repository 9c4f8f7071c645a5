/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics exports refresh results and per-application frame data as
// Prometheus metrics.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/rtss-shm/pkg/layout"
	"github.com/srediag/rtss-shm/pkg/shm"
	"github.com/srediag/rtss-shm/pkg/snapshot"
)

const namespace = "rtss"

// Refresh results.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid_signature"
	ResultError    = "error"
)

// Collector observes snapshot refreshes and forwarded messages.
type Collector struct {
	refreshes    *prometheus.CounterVec
	outOfBounds  *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	entries      *prometheus.GaugeVec
	osdFrame     prometheus.Gauge
	appFrames    *prometheus.GaugeVec
	appFPS       *prometheus.GaugeVec
	messagesSent *prometheus.CounterVec
}

var _ snapshot.Observer = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Snapshot refreshes by result.",
		}, []string{"result"}),
		outOfBounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_out_of_bounds_total",
			Help:      "Record arrays left out because they exceeded the mapping.",
		}, []string{"section"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Single records that could not be read.",
		}, []string{"section"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Records decoded by the last refresh.",
		}, []string{"section"}),
		osdFrame: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "osd_frame",
			Help:      "OSD frame counter of the last valid header.",
		}),
		appFrames: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_frames",
			Help:      "Frames of the current sampling period per application.",
		}, []string{"name", "pid"}),
		appFPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_fps",
			Help:      "Frames per second reported by the statistics block per application.",
		}, []string{"name", "pid"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "OSC messages handed to the transport by result.",
		}, []string{"result"}),
	}
	for _, col := range []prometheus.Collector{
		c.refreshes, c.outOfBounds, c.skipped, c.entries,
		c.osdFrame, c.appFrames, c.appFPS, c.messagesSent,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveRefresh implements snapshot.Observer.
func (c *Collector) ObserveRefresh(snap snapshot.Snapshot, st snapshot.Stats) {
	c.refreshes.WithLabelValues(refreshResult(st.Err)).Inc()
	if st.OSDOutOfBounds {
		c.outOfBounds.WithLabelValues("osd").Inc()
	}
	if st.AppsOutOfBounds {
		c.outOfBounds.WithLabelValues("app").Inc()
	}
	if st.OSDSkipped > 0 {
		c.skipped.WithLabelValues("osd").Add(float64(st.OSDSkipped))
	}
	if st.AppsSkipped > 0 {
		c.skipped.WithLabelValues("app").Add(float64(st.AppsSkipped))
	}
	c.entries.WithLabelValues("osd").Set(float64(len(snap.OSD)))
	c.entries.WithLabelValues("app").Set(float64(len(snap.Apps)))
	if snap.Header != nil {
		c.osdFrame.Set(float64(snap.Header.OSDFrame))
	}

	// applications come and go; only the current ones are exported
	c.appFrames.Reset()
	c.appFPS.Reset()
	for _, app := range snap.Apps {
		if app.Name == "" {
			continue
		}
		name, pid := appLabels(app)
		c.appFrames.WithLabelValues(name, pid).Set(float64(app.Frames))
		c.appFPS.WithLabelValues(name, pid).Set(float64(app.FPS()))
	}
}

// ObserveSend counts one forwarded message.
func (c *Collector) ObserveSend(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.messagesSent.WithLabelValues(result).Inc()
}

func refreshResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, shm.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, layout.ErrInvalidSignature):
		return ResultInvalid
	default:
		return ResultError
	}
}

func appLabels(app layout.AppEntry) (string, string) {
	return app.Name, strconv.FormatUint(uint64(app.ProcessID), 10)
}
