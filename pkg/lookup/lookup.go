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

// Package lookup reads single OSD or App records by index, touching only the
// header and the target record.
package lookup

import (
	"context"
	"fmt"

	"github.com/srediag/rtss-shm/api"
	"github.com/srediag/rtss-shm/internal/logging"
	"github.com/srediag/rtss-shm/internal/records"
	"github.com/srediag/rtss-shm/pkg/layout"
	"github.com/srediag/rtss-shm/pkg/shm"
)

var _ api.PointLookup = (*Lookup)(nil)

// Lookup answers point queries against one region handle.
type Lookup struct {
	region api.RegionHandle
	log    *logging.Logger
}

// NewLookup returns a Lookup over region. log may be nil.
func NewLookup(region api.RegionHandle, log *logging.Logger) *Lookup {
	return &Lookup{region: region, log: log.Named("lookup")}
}

// FindOSDByIndex returns OSD record id, or false when the publisher is absent,
// the header is invalid or the record is not inside the mapping.
func (l *Lookup) FindOSDByIndex(ctx context.Context, id uint32) (layout.OSDEntry, bool) {
	h, ok := l.header(ctx)
	if !ok {
		return layout.OSDEntry{}, false
	}
	if err := l.guard(id, h.OSDArrSize, h.OSDEntryOffset(id), h.OSDEntrySize, layout.OSDEntrySize); err != nil {
		l.log.Debugf("osd %d: %v", id, err)
		return layout.OSDEntry{}, false
	}
	e, err := records.OSD(l.region, h, id, nil)
	if err != nil {
		l.log.Debugf("osd %d: %v", id, err)
		return layout.OSDEntry{}, false
	}
	return e, true
}

// FindAppByIndex returns App record id under the same rules as FindOSDByIndex.
func (l *Lookup) FindAppByIndex(ctx context.Context, id uint32) (layout.AppEntry, bool) {
	h, ok := l.header(ctx)
	if !ok {
		return layout.AppEntry{}, false
	}
	if err := l.guard(id, h.AppArrSize, h.AppEntryOffset(id), h.AppEntrySize, layout.AppEntrySize); err != nil {
		l.log.Debugf("app %d: %v", id, err)
		return layout.AppEntry{}, false
	}
	e, err := records.App(l.region, h, id, nil)
	if err != nil {
		l.log.Debugf("app %d: %v", id, err)
		return layout.AppEntry{}, false
	}
	return e, true
}

// Close releases the mapping.
func (l *Lookup) Close() error {
	return l.region.Close()
}

func (l *Lookup) header(ctx context.Context) (layout.Header, bool) {
	if !l.region.IsOpen() {
		if err := l.region.Open(ctx); err != nil {
			l.log.Debugf("open region: %v", err)
			return layout.Header{}, false
		}
	}
	h, err := records.Header(l.region)
	if err != nil {
		l.log.Debugf("no usable header, closing region: %v", err)
		if cerr := l.region.Close(); cerr != nil {
			l.log.Warnf("close region: %v", cerr)
		}
		return layout.Header{}, false
	}
	return h, true
}

// guard rejects the record before any read: the index must be below the
// header's count and both the writer's and the local record size must fit.
func (l *Lookup) guard(id, count uint32, offset uint64, stride uint32, local int) error {
	if id >= count {
		return fmt.Errorf("index %d of %d: %w", id, count, shm.ErrOutOfRange)
	}
	capacity := l.region.Capacity()
	if offset+uint64(stride) > capacity || offset+uint64(local) > capacity {
		return fmt.Errorf("record [%d, +%d) of %d bytes: %w", offset, max(int(stride), local), capacity, shm.ErrOutOfRange)
	}
	return nil
}
