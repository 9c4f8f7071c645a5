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

package shm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultName is the segment RTSS publishes.
const DefaultName = "RTSSSharedMemoryV2"

const instrumentationName = "github.com/srediag/rtss-shm/pkg/shm"

var (
	// ErrNotFound is returned when the named segment does not exist, usually
	// because the publishing process is not running.
	ErrNotFound = errors.New("shm: segment not found")
	// ErrOutOfRange is returned when a read would go past the end of the mapping.
	ErrOutOfRange = errors.New("shm: read out of range")
	// ErrClosed is returned when reading from a region that is not open.
	ErrClosed = errors.New("shm: region not open")
)

// Options holds region parameters.
type Options struct {
	// Name is the segment name; DefaultName when empty.
	Name string
	// Mapper opens the segment; OSMapper when nil.
	Mapper Mapper
	// Writable requests a read-write view. Nothing in this module writes.
	Writable bool
	Meter    metric.Meter
	Tracer   trace.Tracer
}

// Region is a handle on one named segment. It starts closed, can be opened,
// closed and reopened any number of times, and holds at most one mapping.
//
// Region methods are safe for concurrent use, but the mapped memory itself is
// written by another process without synchronisation.
type Region struct {
	name     string
	mapper   Mapper
	writable bool
	tracer   trace.Tracer
	opens    metric.Int64Counter
	reads    metric.Int64Counter

	mu      sync.RWMutex
	mapping Mapping
	data    []byte
}

// NewRegion returns a closed Region.
func NewRegion(opts Options) *Region {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Mapper == nil {
		opts.Mapper = OSMapper{}
	}
	if opts.Meter == nil {
		opts.Meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	r := &Region{
		name:     opts.Name,
		mapper:   opts.Mapper,
		writable: opts.Writable,
		tracer:   opts.Tracer,
	}
	// instrument creation only fails on invalid names; fall back to noop
	var err error
	if r.opens, err = opts.Meter.Int64Counter("rtss.shm.opens",
		metric.WithDescription("Attempts to map the shared memory segment.")); err != nil {
		r.opens = metricnoop.Int64Counter{}
	}
	if r.reads, err = opts.Meter.Int64Counter("rtss.shm.rejected_reads",
		metric.WithDescription("Reads refused by the bounds check.")); err != nil {
		r.reads = metricnoop.Int64Counter{}
	}
	return r
}

// Name returns the segment name.
func (r *Region) Name() string { return r.name }

// Open maps the segment. An already open region is closed first so that the
// new mapping reflects the segment's current size.
func (r *Region) Open(ctx context.Context) (err error) {
	ctx, span := r.tracer.Start(ctx, "shm.Open", trace.WithAttributes(attribute.String("shm.name", r.name)))
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			if errors.Is(err, ErrNotFound) {
				result = "not_found"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.opens.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
		span.End()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.closeLocked(); err != nil {
		return err
	}
	m, err := r.mapper.Map(ctx, r.name, r.writable)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.name, err)
	}
	r.mapping = m
	r.data = m.Bytes()
	span.SetAttributes(attribute.Int("shm.size", len(r.data)))
	return nil
}

// IsOpen reports whether the region currently holds a mapping.
func (r *Region) IsOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mapping != nil
}

// Capacity returns the size of the current mapping, 0 when closed.
func (r *Region) Capacity() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.data))
}

// ReadBytes copies length bytes starting at offset out of the mapping.
func (r *Region) ReadBytes(offset, length uint64) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkLocked(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, r.data[offset:offset+length])
	return out, nil
}

// ReadInto fills dst with the bytes starting at offset.
func (r *Region) ReadInto(dst []byte, offset uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkLocked(offset, uint64(len(dst))); err != nil {
		return err
	}
	copy(dst, r.data[offset:])
	return nil
}

// checkLocked validates [offset, offset+length) against the mapping.
func (r *Region) checkLocked(offset, length uint64) error {
	if r.mapping == nil {
		return ErrClosed
	}
	size := uint64(len(r.data))
	// written to avoid overflow of offset+length
	if offset > size || length > size-offset {
		r.reads.Add(context.Background(), 1)
		return fmt.Errorf("read [%d, +%d) of %d bytes: %w", offset, length, size, ErrOutOfRange)
	}
	return nil
}

// Close releases the mapping. Closing a closed or never opened region is a no-op.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Region) closeLocked() error {
	if r.mapping == nil {
		return nil
	}
	m := r.mapping
	r.mapping, r.data = nil, nil
	if err := m.Unmap(); err != nil {
		return fmt.Errorf("close %s: %w", r.name, err)
	}
	return nil
}
