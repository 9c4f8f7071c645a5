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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/srediag/rtss-shm/internal/logging"
	"github.com/srediag/rtss-shm/pkg/config"
	"github.com/srediag/rtss-shm/pkg/forward"
	"github.com/srediag/rtss-shm/pkg/health"
	"github.com/srediag/rtss-shm/pkg/metrics"
	"github.com/srediag/rtss-shm/pkg/poller"
	"github.com/srediag/rtss-shm/pkg/shm"
	"github.com/srediag/rtss-shm/pkg/snapshot"
	"github.com/srediag/rtss-shm/pkg/transport"
)

const (
	instrumentationName = "github.com/srediag/rtss-shm/cmd/rtss-osc"
	shutdownTimeout     = 5 * time.Second
)

// daemon wires the polling loop to the OSC sender and the HTTP endpoints.
type daemon struct {
	log       *logging.Logger
	poller    *poller.Poller
	forwarder *forward.Forwarder
	transport *transport.UDP
	server    *http.Server
}

func newDaemon(cfg *config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer, log *logging.Logger) (*daemon, error) {
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	region := shm.NewRegion(shm.Options{
		Name:   cfg.MapName,
		Meter:  otel.GetMeterProvider().Meter(instrumentationName),
		Tracer: otel.Tracer(instrumentationName),
	})
	udp := transport.NewUDP(cfg.OSC.Targets, cfg.Forward.Workers, log)
	fwd := forward.New(forward.Options{
		TargetApp:         cfg.TargetApp,
		Prefix:            cfg.MessagePrefix,
		Address:           cfg.OSC.Address,
		Immediate:         cfg.OSC.SendImmediately,
		Notify:            cfg.OSC.Notify,
		QueueSize:         cfg.Forward.QueueSize,
		SkipDeadProcesses: cfg.Forward.SkipDeadProcesses,
		Transport:         udp,
		Observer:          collector,
		Log:               log,
	})
	state := health.NewState(3 * max(cfg.PollInterval, cfg.Retry.MaxInterval))
	reader := snapshot.NewReader(region, log, collector, fwd)
	p := poller.New(reader, poller.Options{
		Interval:     cfg.PollInterval,
		RetryInitial: cfg.Retry.InitialInterval,
		RetryMax:     cfg.Retry.MaxInterval,
		Tracer:       otel.Tracer(instrumentationName),
		Reporter:     state,
		Log:          log,
	})

	d := &daemon{log: log.Named("daemon"), poller: p, forwarder: fwd, transport: udp}
	if cfg.HTTP.Listen != "" {
		d.server = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           newMux(gatherer, health.NewHandler(state), fwd),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return d, nil
}

func newMux(gatherer prometheus.Gatherer, hc http.Handler, fwd *forward.Forwarder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/live", hc)
	mux.Handle("/ready", hc)
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Apps    []forward.AppStatus `json:"apps"`
			Pending int                 `json:"pending"`
			Dropped uint64              `json:"dropped"`
		}{fwd.LatestApps(), fwd.Pending(), fwd.Dropped()})
	})
	return mux
}

// run blocks until ctx is done.
func (d *daemon) run(ctx context.Context) error {
	if err := d.transport.Start(); err != nil {
		return err
	}
	defer func() {
		if err := d.transport.Stop(); err != nil {
			d.log.Warnf("stop transport: %v", err)
		}
	}()
	if err := d.forwarder.Start(); err != nil {
		return err
	}
	defer d.forwarder.Stop()

	if d.server != nil {
		go func() {
			d.log.Infof("serving /metrics /live /ready /status on %s", d.server.Addr)
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.Errorf("http: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := d.server.Shutdown(sctx); err != nil {
				d.log.Warnf("http shutdown: %v", err)
			}
		}()
	}

	err := d.poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runDaemon(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	d, err := newDaemon(cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, log)
	if err != nil {
		return err
	}
	return d.run(ctx)
}
