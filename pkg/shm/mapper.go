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

	internalshm "github.com/srediag/rtss-shm/internal/shm"
)

// Mapping is a live view of a segment.
type Mapping interface {
	// Bytes aliases the mapped memory. It must not be used after Unmap.
	Bytes() []byte
	Unmap() error
}

// Mapper opens named segments.
type Mapper interface {
	Map(ctx context.Context, name string, writable bool) (Mapping, error)
}

// OSMapper maps real operating system segments.
type OSMapper struct{}

// Map implements Mapper.
func (OSMapper) Map(ctx context.Context, name string, writable bool) (Mapping, error) {
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: name, Writable: writable})
	if err != nil {
		if errors.Is(err, internalshm.ErrNotExist) || errors.Is(err, internalshm.ErrEmpty) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return &osMapping{region: region}, nil
}

type osMapping struct {
	region *internalshm.MappedRegion
}

func (m *osMapping) Bytes() []byte { return m.region.Addr }

func (m *osMapping) Unmap() error {
	return internalshm.UnmapRegion(context.Background(), m.region)
}

// MemMapper is an in-process Mapper backed by byte slices, used to simulate a
// publisher in tests. Mappings alias the published slice, so Mutate is visible
// to open regions the way a foreign writer's updates are.
type MemMapper struct {
	mu       sync.Mutex
	segments map[string][]byte
	maps     int
	unmaps   int
}

// NewMemMapper returns an empty MemMapper.
func NewMemMapper() *MemMapper {
	return &MemMapper{segments: make(map[string][]byte)}
}

// Publish makes data available under name, replacing any earlier segment.
func (m *MemMapper) Publish(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[name] = data
}

// Remove withdraws name. Existing mappings keep their bytes.
func (m *MemMapper) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.segments, name)
}

// Mutate runs fn on the published bytes of name, if present.
func (m *MemMapper) Mutate(name string, fn func(b []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.segments[name]; ok {
		fn(b)
	}
}

// Stats returns how many times Map succeeded and Unmap was called.
func (m *MemMapper) Stats() (maps, unmaps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maps, m.unmaps
}

// Map implements Mapper.
func (m *MemMapper) Map(ctx context.Context, name string, _ bool) (Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.segments[name]
	if !ok || len(b) == 0 {
		return nil, fmt.Errorf("segment %q: %w", name, ErrNotFound)
	}
	m.maps++
	return &memMapping{owner: m, b: b}, nil
}

type memMapping struct {
	owner *MemMapper
	b     []byte
}

func (m *memMapping) Bytes() []byte { return m.b }

func (m *memMapping) Unmap() error {
	m.owner.mu.Lock()
	m.owner.unmaps++
	m.owner.mu.Unlock()
	m.b = nil
	return nil
}
