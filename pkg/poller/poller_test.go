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

package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/rtss-shm/internal/rtsstest"
	"github.com/srediag/rtss-shm/pkg/health"
	"github.com/srediag/rtss-shm/pkg/layout"
	"github.com/srediag/rtss-shm/pkg/shm"
	"github.com/srediag/rtss-shm/pkg/snapshot"
)

type PollerTestSuite struct {
	suite.Suite
	mapper  *shm.MemMapper
	region  *shm.Region
	state   *health.State
	refresh atomic.Int32
	poller  *Poller
}

func (s *PollerTestSuite) SetupTest() {
	s.mapper = shm.NewMemMapper()
	s.region = shm.NewRegion(shm.Options{Mapper: s.mapper})
	s.state = health.NewState(time.Minute)
	s.refresh.Store(0)
	reader := snapshot.NewReader(s.region, nil, snapshot.ObserverFunc(func(snapshot.Snapshot, snapshot.Stats) {
		s.refresh.Add(1)
	}))
	s.poller = New(reader, Options{
		Interval:     50 * time.Millisecond,
		RetryInitial: 100 * time.Millisecond,
		RetryMax:     400 * time.Millisecond,
		Reporter:     s.state,
	})
}

func (s *PollerTestSuite) publish() {
	s.mapper.Publish(shm.DefaultName, rtsstest.New().
		WithApps(layout.AppEntry{Name: "VRChat.exe", Frames: 144}).Bytes())
}

func (s *PollerTestSuite) TestBacksOffWhileAbsent() {
	first := s.poller.Once(context.Background())
	s.InDelta(float64(100*time.Millisecond), float64(first), float64(50*time.Millisecond))
	s.False(s.poller.Ready())
	s.NoError(s.state.Alive())
	s.ErrorIs(s.state.Ready(), ErrNoData)

	var last time.Duration
	for i := 0; i < 10; i++ {
		last = s.poller.Once(context.Background())
	}
	s.LessOrEqual(last, 400*time.Millisecond)
	s.GreaterOrEqual(last, 200*time.Millisecond)
	s.Equal(uint64(11), s.poller.Cycles())
}

func (s *PollerTestSuite) TestIntervalOnceDataArrives() {
	s.poller.Once(context.Background())
	s.publish()
	s.Equal(50*time.Millisecond, s.poller.Once(context.Background()))
	s.True(s.poller.Ready())
	s.NoError(s.state.Ready())

	// publisher goes away: backoff starts over from the initial interval
	s.mapper.Publish(shm.DefaultName, rtsstest.New().WithSignature(0).Bytes())
	s.Require().NoError(s.region.Close())
	d := s.poller.Once(context.Background())
	s.InDelta(float64(100*time.Millisecond), float64(d), float64(50*time.Millisecond))
	s.False(s.poller.Ready())
}

func (s *PollerTestSuite) TestRunStopsOnCancel() {
	s.publish()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.poller.Run(ctx) }()

	s.Eventually(func() bool { return s.refresh.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		s.True(errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		s.FailNow("Run did not return")
	}
	s.False(s.region.IsOpen())
}

func TestPollerTestSuite(t *testing.T) {
	suite.Run(t, new(PollerTestSuite))
}
