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

package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/rtss-shm/internal/rtsstest"
	"github.com/srediag/rtss-shm/pkg/layout"
	"github.com/srediag/rtss-shm/pkg/shm"
	"github.com/srediag/rtss-shm/pkg/snapshot"
)

type readSpan struct{ offset, length uint64 }

// spyRegion records every read issued against the wrapped region.
type spyRegion struct {
	*shm.Region
	reads []readSpan
}

func (s *spyRegion) ReadInto(dst []byte, offset uint64) error {
	s.reads = append(s.reads, readSpan{offset, uint64(len(dst))})
	return s.Region.ReadInto(dst, offset)
}

func (s *spyRegion) ReadBytes(offset, length uint64) ([]byte, error) {
	s.reads = append(s.reads, readSpan{offset, length})
	return s.Region.ReadBytes(offset, length)
}

func newSpy(t *testing.T, b *rtsstest.Builder) (*spyRegion, *shm.MemMapper) {
	t.Helper()
	m := shm.NewMemMapper()
	if b != nil {
		m.Publish(shm.DefaultName, b.Bytes())
	}
	r := &spyRegion{Region: shm.NewRegion(shm.Options{Mapper: m})}
	t.Cleanup(func() { _ = r.Close() })
	return r, m
}

func fixture() *rtsstest.Builder {
	return rtsstest.New().
		WithOSD(layout.OSDEntry{Text: "FPS OK", Owner: "RTSS"}).
		WithApps(
			layout.AppEntry{ProcessID: 77, Name: "VRChat.exe", Frames: 144},
			layout.AppEntry{ProcessID: 78, Name: "other.exe", Frames: 60},
		)
}

func TestFindAppByIndexMatchesRefresh(t *testing.T) {
	ctx := context.Background()
	region, _ := newSpy(t, fixture())

	snap := snapshot.NewReader(region, nil).Refresh(ctx)
	require.Len(t, snap.Apps, 2)

	l := NewLookup(region, nil)
	app, ok := l.FindAppByIndex(ctx, 0)
	require.True(t, ok)
	assert.Equal(t, snap.Apps[0], app)
	assert.Equal(t, "VRChat.exe", app.Name)
	assert.Equal(t, uint32(144), app.Frames)

	app, ok = l.FindAppByIndex(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, "other.exe", app.Name)

	osd, ok := l.FindOSDByIndex(ctx, 0)
	require.True(t, ok)
	assert.Equal(t, layout.OSDEntry{Text: "FPS OK", Owner: "RTSS"}, osd)
}

func TestReadsOnlyHeaderAndRecord(t *testing.T) {
	region, _ := newSpy(t, fixture())
	h := fixture().Layout()

	_, ok := NewLookup(region, nil).FindAppByIndex(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, []readSpan{
		{0, layout.HeaderSize},
		{h.AppEntryOffset(1), layout.AppEntrySize},
	}, region.reads)
}

func TestIndexBeyondCountNeverReadsPastCapacity(t *testing.T) {
	ctx := context.Background()
	region, _ := newSpy(t, fixture())
	l := NewLookup(region, nil)

	for _, id := range []uint32{2, 3, 1 << 20, ^uint32(0)} {
		_, ok := l.FindAppByIndex(ctx, id)
		assert.False(t, ok, "app %d", id)
		_, ok = l.FindOSDByIndex(ctx, id)
		assert.False(t, ok, "osd %d", id)
	}
	// only header reads happened
	for _, r := range region.reads {
		assert.Equal(t, readSpan{0, layout.HeaderSize}, r)
		assert.LessOrEqual(t, r.offset+r.length, region.Capacity())
	}
}

func TestRecordBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	// the header claims three apps but the image holds one
	region, _ := newSpy(t, rtsstest.New().
		WithApps(layout.AppEntry{Name: "a.exe"}).
		WithAppCount(3))
	l := NewLookup(region, nil)

	_, ok := l.FindAppByIndex(ctx, 0)
	assert.True(t, ok)
	_, ok = l.FindAppByIndex(ctx, 2)
	assert.False(t, ok)
	for _, r := range region.reads {
		assert.LessOrEqual(t, r.offset+r.length, region.Capacity())
	}
}

func TestNarrowWriterStride(t *testing.T) {
	// writer stride shorter than the local record: the local size must fit too
	const off, stride = 64, 344
	region, _ := newSpy(t, rtsstest.New().
		WithApps(layout.AppEntry{Name: "kept.exe"}, layout.AppEntry{Name: "lost.exe"}).
		WithAppLayout(off, stride).
		WithSize(off+2*stride))
	l := NewLookup(region, nil)

	app, ok := l.FindAppByIndex(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, "kept.exe", app.Name)
	_, ok = l.FindAppByIndex(context.Background(), 1)
	assert.False(t, ok)
	assert.Len(t, region.reads, 3)
}

func TestMissingPublisherAndInvalidHeader(t *testing.T) {
	ctx := context.Background()
	region, mapper := newSpy(t, nil)
	l := NewLookup(region, nil)

	_, ok := l.FindAppByIndex(ctx, 0)
	assert.False(t, ok)
	_, ok = l.FindOSDByIndex(ctx, 0)
	assert.False(t, ok)

	mapper.Publish(shm.DefaultName, fixture().WithSignature(0xdeadbeef).Bytes())
	_, ok = l.FindAppByIndex(ctx, 0)
	assert.False(t, ok)
	assert.False(t, region.IsOpen())

	mapper.Publish(shm.DefaultName, fixture().Bytes())
	app, ok := l.FindAppByIndex(ctx, 0)
	assert.True(t, ok)
	assert.Equal(t, "VRChat.exe", app.Name)
	require.NoError(t, l.Close())
}
