/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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
	"fmt"
	"io"

	"github.com/srediag/rtss-shm/api"
	"github.com/srediag/rtss-shm/internal/records"
)

// DebugRegionDetail prints the header of the region and where its arrays sit
// relative to the mapped capacity. The region is opened if needed.
func DebugRegionDetail(ctx context.Context, w io.Writer, region api.RegionHandle) error {
	if !region.IsOpen() {
		if err := region.Open(ctx); err != nil {
			return err
		}
	}
	capacity := region.Capacity()
	h, err := records.Header(region)
	if err != nil {
		return fmt.Errorf("capacity:%d: %w", capacity, err)
	}
	if _, err := fmt.Fprint(w, h.String()); err != nil {
		return err
	}
	printFunc := func(name string, start, end uint64, stride, count uint32) error {
		_, err := fmt.Fprintf(w, "name:%s start:%d end:%d stride:%d count:%d capacity:%d fits:%t\n",
			name, start, end, stride, count, capacity, sectionFits(capacity, end, stride, count))
		return err
	}
	start, end := h.OSDSpan()
	if err := printFunc("osd", start, end, h.OSDEntrySize, h.OSDArrSize); err != nil {
		return err
	}
	start, end = h.AppSpan()
	return printFunc("app", start, end, h.AppEntrySize, h.AppArrSize)
}
