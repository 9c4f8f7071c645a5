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

// Package api defines public API contracts for rtss-shm.
package api

import "context"

// RegionHandle is a reopenable, bounds-checked view of a named shared memory
// segment. *shm.Region implements it.
type RegionHandle interface {
	Open(ctx context.Context) error
	IsOpen() bool
	Capacity() uint64
	ReadBytes(offset, length uint64) ([]byte, error)
	ReadInto(dst []byte, offset uint64) error
	Close() error
}
