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

// Package transport delivers encoded datagrams to downstream consumers.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/srediag/rtss-shm/api"
	"github.com/srediag/rtss-shm/internal/logging"
)

var (
	// ErrNotStarted is returned by Send before Start or after Stop.
	ErrNotStarted = errors.New("transport: not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("transport: already started")
)

var _ api.Transport = (*UDP)(nil)

// UDP sends every datagram to all of its targets. Writes to different targets
// run concurrently on a bounded worker pool.
type UDP struct {
	targets []string
	workers int
	log     *logging.Logger

	mu    sync.RWMutex
	conns []*net.UDPConn
	pool  *ants.Pool
}

// NewUDP returns a stopped transport for targets given as host:port.
// workers below 1 means one worker per target.
func NewUDP(targets []string, workers int, log *logging.Logger) *UDP {
	if workers < 1 {
		workers = len(targets)
	}
	return &UDP{
		targets: append([]string(nil), targets...),
		workers: max(workers, 1),
		log:     log.Named("transport"),
	}
}

// Start resolves and connects every target.
func (u *UDP) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pool != nil {
		return ErrAlreadyStarted
	}
	conns := make([]*net.UDPConn, 0, len(u.targets))
	for _, t := range u.targets {
		addr, err := net.ResolveUDPAddr("udp", t)
		if err != nil {
			closeAll(conns)
			return fmt.Errorf("resolve %s: %w", t, err)
		}
		c, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			closeAll(conns)
			return fmt.Errorf("dial %s: %w", t, err)
		}
		conns = append(conns, c)
	}
	pool, err := ants.NewPool(u.workers, ants.WithPanicHandler(func(p interface{}) {
		u.log.Errorf("send panic: %v", p)
	}))
	if err != nil {
		closeAll(conns)
		return fmt.Errorf("worker pool: %w", err)
	}
	u.conns, u.pool = conns, pool
	u.log.Infof("sending to %v", u.targets)
	return nil
}

// Send writes data to every target and joins the per-target errors.
func (u *UDP) Send(data []byte) error {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.pool == nil {
		return ErrNotStarted
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	record := func(err error) {
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}
	for _, c := range u.conns {
		c := c
		wg.Add(1)
		if err := u.pool.Submit(func() {
			defer wg.Done()
			if _, err := c.Write(data); err != nil {
				record(fmt.Errorf("send to %s: %w", c.RemoteAddr(), err))
			}
		}); err != nil {
			wg.Done()
			record(fmt.Errorf("submit send to %s: %w", c.RemoteAddr(), err))
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Stop releases the workers and closes the sockets. Stop on a stopped
// transport is a no-op.
func (u *UDP) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pool == nil {
		return nil
	}
	u.pool.Release()
	err := closeAll(u.conns)
	u.conns, u.pool = nil, nil
	return err
}

func closeAll(conns []*net.UDPConn) error {
	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
