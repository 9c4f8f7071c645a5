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

package snapshot

import (
	"context"
	"errors"

	"github.com/srediag/rtss-shm/api"
	"github.com/srediag/rtss-shm/internal/logging"
	"github.com/srediag/rtss-shm/internal/records"
	"github.com/srediag/rtss-shm/pkg/layout"
	"github.com/srediag/rtss-shm/pkg/shm"
)

// maxPrealloc bounds slice preallocation by header-controlled counts.
const maxPrealloc = 256

// Reader produces snapshots from one region handle. A Reader is meant to be
// driven by a single polling loop.
type Reader struct {
	region    api.RegionHandle
	log       *logging.Logger
	observers []Observer
	scratch   []byte
}

// NewReader returns a Reader over region. log may be nil.
func NewReader(region api.RegionHandle, log *logging.Logger, observers ...Observer) *Reader {
	return &Reader{
		region:    region,
		log:       log.Named("snapshot"),
		observers: observers,
		scratch:   make([]byte, max(layout.OSDEntrySize, layout.AppEntrySize)),
	}
}

// Refresh decodes the region into a new Snapshot. It never fails: when the
// publisher is absent or the header is invalid the snapshot is empty, and
// sections or records that do not fit the mapping are left out.
func (r *Reader) Refresh(ctx context.Context) Snapshot {
	snap, stats := r.refresh(ctx)
	for _, o := range r.observers {
		o.ObserveRefresh(snap, stats)
	}
	return snap
}

// RefreshOnce refreshes and then releases the mapping.
func (r *Reader) RefreshOnce(ctx context.Context) Snapshot {
	snap := r.Refresh(ctx)
	if err := r.region.Close(); err != nil {
		r.log.Warnf("close region: %v", err)
	}
	return snap
}

// Close releases the mapping; the next Refresh reopens it.
func (r *Reader) Close() error {
	return r.region.Close()
}

func (r *Reader) refresh(ctx context.Context) (Snapshot, Stats) {
	var stats Stats
	if !r.region.IsOpen() {
		if err := r.region.Open(ctx); err != nil {
			if errors.Is(err, shm.ErrNotFound) {
				r.log.Debugf("publisher not available: %v", err)
			} else {
				r.log.Warnf("open region: %v", err)
			}
			stats.Err = err
			return Snapshot{}, stats
		}
	}

	h, err := records.Header(r.region)
	if err != nil {
		// a stale mapping of a restarted publisher never becomes valid again
		r.log.Debugf("no usable header, closing region: %v", err)
		if cerr := r.region.Close(); cerr != nil {
			r.log.Warnf("close region: %v", cerr)
		}
		stats.Err = err
		return Snapshot{}, stats
	}

	snap := Snapshot{Header: &h}
	capacity := r.region.Capacity()

	if _, end := h.OSDSpan(); sectionFits(capacity, end, h.OSDEntrySize, h.OSDArrSize) {
		snap.OSD = make([]layout.OSDEntry, 0, min(h.OSDArrSize, maxPrealloc))
		for i := uint32(0); i < h.OSDArrSize; i++ {
			e, err := records.OSD(r.region, h, i, r.scratch)
			if err != nil {
				r.log.Debugf("skip osd entry: %v", err)
				stats.OSDSkipped++
				continue
			}
			snap.OSD = append(snap.OSD, e)
		}
	} else {
		r.log.Debugf("osd array [%d, %d) exceeds capacity %d", h.OSDArrOffset, end, capacity)
		stats.OSDOutOfBounds = true
	}

	if _, end := h.AppSpan(); sectionFits(capacity, end, h.AppEntrySize, h.AppArrSize) {
		snap.Apps = make([]layout.AppEntry, 0, min(h.AppArrSize, maxPrealloc))
		for i := uint32(0); i < h.AppArrSize; i++ {
			e, err := records.App(r.region, h, i, r.scratch)
			if err != nil {
				r.log.Debugf("skip app entry: %v", err)
				stats.AppsSkipped++
				continue
			}
			snap.Apps = append(snap.Apps, e)
		}
	} else {
		r.log.Debugf("app array [%d, %d) exceeds capacity %d", h.AppArrOffset, end, capacity)
		stats.AppsOutOfBounds = true
	}

	r.log.Tracef("refresh frame=%d osd=%d apps=%d", h.OSDFrame, len(snap.OSD), len(snap.Apps))
	return snap, stats
}

// sectionFits is the array guard: the whole array must lie inside the mapping.
// A zero stride with a non-zero count cannot describe real records.
func sectionFits(capacity, end uint64, stride, count uint32) bool {
	if stride == 0 && count > 0 {
		return false
	}
	return capacity >= end
}
