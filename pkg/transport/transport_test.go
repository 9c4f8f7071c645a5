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

package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type UDPTestSuite struct {
	suite.Suite
	listeners []*net.UDPConn
}

func (s *UDPTestSuite) SetupTest() {
	s.listeners = nil
	for i := 0; i < 3; i++ {
		l, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		s.Require().NoError(err)
		s.listeners = append(s.listeners, l)
	}
}

func (s *UDPTestSuite) TearDownTest() {
	for _, l := range s.listeners {
		_ = l.Close()
	}
}

func (s *UDPTestSuite) targets() []string {
	var out []string
	for _, l := range s.listeners {
		out = append(out, l.LocalAddr().String())
	}
	return out
}

func (s *UDPTestSuite) receive(l *net.UDPConn) []byte {
	buf := make([]byte, 1024)
	s.Require().NoError(l.SetReadDeadline(time.Now().Add(2 * time.Second)))
	n, _, err := l.ReadFromUDP(buf)
	s.Require().NoError(err)
	return buf[:n]
}

func (s *UDPTestSuite) TestFanOut() {
	u := NewUDP(s.targets(), 2, nil)
	s.Require().NoError(u.Start())
	defer func() { s.NoError(u.Stop()) }()

	s.Require().NoError(u.Send([]byte("FPS: 144")))
	for _, l := range s.listeners {
		s.Equal([]byte("FPS: 144"), s.receive(l))
	}
}

func (s *UDPTestSuite) TestLifecycle() {
	u := NewUDP(s.targets()[:1], 0, nil)
	s.ErrorIs(u.Send([]byte("x")), ErrNotStarted)
	s.NoError(u.Stop())

	s.Require().NoError(u.Start())
	s.ErrorIs(u.Start(), ErrAlreadyStarted)
	s.Require().NoError(u.Stop())
	s.ErrorIs(u.Send([]byte("x")), ErrNotStarted)

	// restartable
	s.Require().NoError(u.Start())
	s.Require().NoError(u.Send([]byte("again")))
	s.Equal([]byte("again"), s.receive(s.listeners[0]))
	s.NoError(u.Stop())
}

func (s *UDPTestSuite) TestBadTarget() {
	u := NewUDP([]string{s.targets()[0], "no-port"}, 1, nil)
	s.Error(u.Start())
	s.ErrorIs(u.Send([]byte("x")), ErrNotStarted)
}

func TestUDPTestSuite(t *testing.T) {
	suite.Run(t, new(UDPTestSuite))
}
