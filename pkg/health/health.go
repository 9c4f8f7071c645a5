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

// Package health tracks the heartbeat of the polling loop and serves it as
// liveness and readiness endpoints.
package health

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"

	"github.com/srediag/rtss-shm/api"
)

var (
	// ErrNoHeartbeat is reported by Alive before the first heartbeat.
	ErrNoHeartbeat = errors.New("health: no heartbeat yet")
	// ErrNotReady is reported by Ready before the first report.
	ErrNotReady = errors.New("health: not ready")
)

// maxGoroutines is the liveness ceiling for the goroutine count.
const maxGoroutines = 1000

var _ api.Health = (*State)(nil)

// State records heartbeats of one loop. The loop is alive while heartbeats are
// at most maxSilence apart, and ready while its last report carried no error.
type State struct {
	maxSilence time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	lastBeat time.Time
	readyErr error
}

// NewState returns a State that is neither alive nor ready.
func NewState(maxSilence time.Duration) *State {
	return &State{maxSilence: maxSilence, now: time.Now, readyErr: ErrNotReady}
}

// Heartbeat records that the loop completed a cycle.
func (s *State) Heartbeat() {
	s.mu.Lock()
	s.lastBeat = s.now()
	s.mu.Unlock()
}

// ReportReady sets the readiness result; nil means ready.
func (s *State) ReportReady(err error) {
	s.mu.Lock()
	s.readyErr = err
	s.mu.Unlock()
}

// Alive implements api.Health.
func (s *State) Alive() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastBeat.IsZero() {
		return ErrNoHeartbeat
	}
	if silence := s.now().Sub(s.lastBeat); silence > s.maxSilence {
		return fmt.Errorf("health: last heartbeat %v ago exceeds %v", silence.Round(time.Millisecond), s.maxSilence)
	}
	return nil
}

// Ready implements api.Health.
func (s *State) Ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readyErr
}

// NewHandler serves /live and /ready for h.
func NewHandler(h api.Health) healthcheck.Handler {
	hc := healthcheck.NewHandler()
	hc.AddLivenessCheck("poller", h.Alive)
	hc.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	hc.AddReadinessCheck("rtss-publisher", h.Ready)
	return hc
}
