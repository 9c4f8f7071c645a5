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

// Package shm provides a read handle on a named shared memory segment owned by
// another process.
//
// A Region is created closed and opened on demand. Every read is bounds-checked
// against the size of the current mapping before memory is touched, because
// offsets usually come from fields the foreign writer controls. The writer does
// not coordinate with readers, so a read may observe a record mid-update.
//
// Mapping is pluggable through Mapper: OSMapper maps real segments (see
// internal/shm), MemMapper serves in-process byte slices for tests.
//
// Example usage:
//
//	region := shm.NewRegion(shm.Options{Name: "RTSSSharedMemoryV2"})
//	defer region.Close()
//	if err := region.Open(ctx); err != nil {
//	  // errors.Is(err, shm.ErrNotFound): publisher not running
//	}
//	hdr, err := region.ReadBytes(0, 36)
//
// The package is instrumented with OpenTelemetry metrics and tracing (OTel Go v1.30.0).
package shm
