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

// Package poller refreshes a snapshot reader on a fixed cadence and backs off
// while RTSS is not publishing.
package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/rtss-shm/internal/logging"
	"github.com/srediag/rtss-shm/pkg/snapshot"
)

const instrumentationName = "github.com/srediag/rtss-shm/pkg/poller"

// ErrNoData is reported to the health reporter while refreshes come back empty.
var ErrNoData = errors.New("poller: no RTSS data")

// Reporter receives the outcome of every cycle.
type Reporter interface {
	Heartbeat()
	ReportReady(err error)
}

// Options configures a Poller.
type Options struct {
	// Interval is the delay between refreshes that produced data.
	Interval time.Duration
	// RetryInitial and RetryMax bound the exponential delay used while the
	// refresh is empty. Zero RetryInitial means Interval.
	RetryInitial time.Duration
	RetryMax     time.Duration
	Tracer       trace.Tracer
	Reporter     Reporter
	Log          *logging.Logger
}

// Poller drives one snapshot.Reader from one goroutine.
type Poller struct {
	reader  *snapshot.Reader
	opts    Options
	log     *logging.Logger
	backoff *backoff.ExponentialBackOff
	ready   atomic.Bool
	cycles  atomic.Uint64
}

// New returns a Poller for reader.
func New(reader *snapshot.Reader, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = opts.Interval
	}
	if opts.RetryMax < opts.RetryInitial {
		opts.RetryMax = opts.RetryInitial
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	return &Poller{
		reader: reader,
		opts:   opts,
		log:    opts.Log.Named("poller"),
		backoff: backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(opts.RetryInitial),
			backoff.WithMaxInterval(opts.RetryMax),
			backoff.WithMaxElapsedTime(0),
		),
	}
}

// Run refreshes until ctx is done, then releases the mapping and returns
// ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	defer func() {
		if err := p.reader.Close(); err != nil {
			p.log.Warnf("close reader: %v", err)
		}
	}()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		timer.Reset(p.Once(ctx))
	}
}

// Once runs a single cycle and returns the delay before the next one.
func (p *Poller) Once(ctx context.Context) time.Duration {
	ctx, span := p.opts.Tracer.Start(ctx, "poller.Refresh")
	defer span.End()

	snap := p.reader.Refresh(ctx)
	p.cycles.Add(1)
	span.SetAttributes(
		attribute.Int("rtss.osd_entries", len(snap.OSD)),
		attribute.Int("rtss.app_entries", len(snap.Apps)),
	)

	var delay time.Duration
	if snap.Empty() {
		span.SetStatus(codes.Error, ErrNoData.Error())
		// jitter may overshoot the cap
		delay = p.backoff.NextBackOff()
		if delay == backoff.Stop || delay > p.opts.RetryMax {
			delay = p.opts.RetryMax
		}
		if p.ready.Swap(false) {
			p.log.Warnf("RTSS data lost, retrying in %v", delay)
		} else {
			p.log.Debugf("no RTSS data, retrying in %v", delay)
		}
	} else {
		span.SetAttributes(attribute.Int64("rtss.osd_frame", int64(snap.Header.OSDFrame)))
		p.backoff.Reset()
		delay = p.opts.Interval
		if !p.ready.Swap(true) {
			p.log.Infof("RTSS data available, version %d.%d",
				snap.Header.VersionMajor(), snap.Header.VersionMinor())
		}
	}

	if r := p.opts.Reporter; r != nil {
		r.Heartbeat()
		if snap.Empty() {
			r.ReportReady(ErrNoData)
		} else {
			r.ReportReady(nil)
		}
	}
	return delay
}

// Ready reports whether the last cycle produced data.
func (p *Poller) Ready() bool { return p.ready.Load() }

// Cycles counts completed cycles.
func (p *Poller) Cycles() uint64 { return p.cycles.Load() }
