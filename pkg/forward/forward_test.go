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

package forward

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/rtss-shm/pkg/layout"
	"github.com/srediag/rtss-shm/pkg/osc"
	"github.com/srediag/rtss-shm/pkg/snapshot"
)

type fakeTransport struct {
	sent chan []byte
	err  error
}

func (t *fakeTransport) Start() error { return nil }
func (t *fakeTransport) Stop() error  { return nil }
func (t *fakeTransport) Send(data []byte) error {
	t.sent <- data
	return t.err
}

type sendCounter struct {
	mu   sync.Mutex
	ok   int
	errs int
}

func (c *sendCounter) ObserveSend(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errs++
	} else {
		c.ok++
	}
}

func (c *sendCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ok, c.errs
}

type ForwardTestSuite struct {
	suite.Suite
	transport *fakeTransport
	observer  *sendCounter
	fwd       *Forwarder
}

func (s *ForwardTestSuite) SetupTest() {
	s.transport = &fakeTransport{sent: make(chan []byte, 16)}
	s.observer = &sendCounter{}
	s.fwd = New(Options{
		TargetApp: "VRChat.exe",
		Prefix:    "FPS: ",
		Immediate: true,
		QueueSize: 4,
		Transport: s.transport,
		Observer:  s.observer,
	})
}

func (s *ForwardTestSuite) TearDownTest() {
	s.fwd.Stop()
}

func (s *ForwardTestSuite) next() osc.Message {
	select {
	case b := <-s.transport.sent:
		m, err := osc.Decode(b)
		s.Require().NoError(err)
		return m
	case <-time.After(2 * time.Second):
		s.FailNow("no message sent")
	}
	return osc.Message{}
}

func snap(apps ...layout.AppEntry) snapshot.Snapshot {
	return snapshot.Snapshot{Header: &layout.Header{Signature: layout.Magic}, Apps: apps}
}

func (s *ForwardTestSuite) TestSendsChatboxMessage() {
	s.Require().NoError(s.fwd.Start())
	s.fwd.ObserveRefresh(snap(
		layout.AppEntry{ProcessID: 1, Name: "explorer.exe", Frames: 30},
		layout.AppEntry{ProcessID: 2, Name: `C:\VRChat\VRChat.exe`, Frames: 144},
	), snapshot.Stats{})

	s.Equal(osc.ChatboxInput("FPS: 144", true, false), s.next())
	s.Eventually(func() bool {
		ok, _ := s.observer.counts()
		return ok == 1
	}, time.Second, 10*time.Millisecond)
}

func (s *ForwardTestSuite) TestTargetAbsent() {
	s.Require().NoError(s.fwd.Start())
	s.fwd.ObserveRefresh(snap(layout.AppEntry{Name: "game.exe"}), snapshot.Stats{})
	s.fwd.ObserveRefresh(snapshot.Snapshot{}, snapshot.Stats{})
	s.Never(func() bool { return len(s.transport.sent) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func (s *ForwardTestSuite) TestSendErrorsAreObserved() {
	s.transport.err = errors.New("refused")
	s.Require().NoError(s.fwd.Start())
	s.fwd.ObserveRefresh(snap(layout.AppEntry{Name: "VRChat.exe", Frames: 1}), snapshot.Stats{})
	s.next()
	s.Eventually(func() bool {
		_, errs := s.observer.counts()
		return errs == 1
	}, time.Second, 10*time.Millisecond)
}

func (s *ForwardTestSuite) TestFullQueueDropsOldest() {
	// not started: nothing drains
	for i := uint32(1); i <= 6; i++ {
		s.fwd.ObserveRefresh(snap(layout.AppEntry{Name: "VRChat.exe", Frames: i}), snapshot.Stats{})
	}
	s.Equal(4, s.fwd.Pending())
	s.Equal(uint64(2), s.fwd.Dropped())

	s.Require().NoError(s.fwd.Start())
	s.Equal("FPS: 3", s.next().Args[0])
	s.Equal("FPS: 4", s.next().Args[0])
	s.Equal("FPS: 5", s.next().Args[0])
	s.Equal("FPS: 6", s.next().Args[0])
}

func (s *ForwardTestSuite) TestStartTwice() {
	s.Require().NoError(s.fwd.Start())
	s.ErrorIs(s.fwd.Start(), ErrStarted)
}

func (s *ForwardTestSuite) TestStopDropsLaterRefreshes() {
	s.Require().NoError(s.fwd.Start())
	s.fwd.Stop()
	s.fwd.ObserveRefresh(snap(layout.AppEntry{Name: "VRChat.exe"}), snapshot.Stats{})
	s.Equal(0, len(s.transport.sent))
}

func (s *ForwardTestSuite) TestLatestApps() {
	now := time.Unix(1700000000, 0)
	s.fwd.now = func() time.Time { return now }
	s.fwd.ObserveRefresh(snap(
		layout.AppEntry{ProcessID: 9, Name: "b.exe", Frames: 60, StatFrames: 59},
		layout.AppEntry{ProcessID: 3, Name: "a.exe", Frames: 120},
		layout.AppEntry{},
	), snapshot.Stats{})

	s.Equal([]AppStatus{
		{Name: "a.exe", ProcessID: 3, Frames: 120, SeenAt: now},
		{Name: "b.exe", ProcessID: 9, Frames: 60, FPS: 59, SeenAt: now},
	}, s.fwd.LatestApps())

	s.fwd.ObserveRefresh(snap(layout.AppEntry{ProcessID: 3, Name: "a.exe", Frames: 121}), snapshot.Stats{})
	latest := s.fwd.LatestApps()
	s.Require().Len(latest, 1)
	s.Equal(uint32(121), latest[0].Frames)
}

func (s *ForwardTestSuite) TestSkipDeadProcesses() {
	fwd := New(Options{
		TargetApp:         "VRChat.exe",
		Prefix:            "FPS: ",
		QueueSize:         4,
		SkipDeadProcesses: true,
		Transport:         s.transport,
	})
	defer fwd.Stop()
	fwd.pidExists = func(pid int32) (bool, error) { return pid == 20, nil }
	s.Require().NoError(fwd.Start())

	fwd.ObserveRefresh(snap(
		layout.AppEntry{ProcessID: 10, Name: "VRChat.exe", Frames: 1},
		layout.AppEntry{ProcessID: 20, Name: "VRChat.exe", Frames: 2},
	), snapshot.Stats{})
	s.Equal("FPS: 2", s.next().Args[0])
	s.Len(fwd.LatestApps(), 1)
}

func TestForwardTestSuite(t *testing.T) {
	suite.Run(t, new(ForwardTestSuite))
}
