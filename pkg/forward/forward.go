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

// Package forward turns snapshots into chatbox messages for the target
// application and hands them to a transport.
package forward

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/srediag/rtss-shm/api"
	"github.com/srediag/rtss-shm/internal/logging"
	"github.com/srediag/rtss-shm/pkg/layout"
	"github.com/srediag/rtss-shm/pkg/osc"
	"github.com/srediag/rtss-shm/pkg/snapshot"
)

// ErrStarted is returned by a second Start.
var ErrStarted = errors.New("forward: already started")

// SendObserver is told about every message handed to the transport.
type SendObserver interface {
	ObserveSend(err error)
}

// Options configures a Forwarder.
type Options struct {
	// TargetApp is matched as a substring of the application name.
	TargetApp string
	// Prefix is put in front of the frame count.
	Prefix    string
	Address   string
	Immediate bool
	Notify    bool
	QueueSize int
	// SkipDeadProcesses ignores entries whose process no longer exists.
	SkipDeadProcesses bool
	Transport         api.Transport
	Observer          SendObserver
	Log               *logging.Logger
}

// AppStatus is the last state seen for one application.
type AppStatus struct {
	Name      string    `json:"name"`
	ProcessID uint32    `json:"pid"`
	Frames    uint32    `json:"frames"`
	FPS       uint32    `json:"fps"`
	SeenAt    time.Time `json:"seen_at"`
}

// Forwarder is a snapshot.Observer. Refreshes enqueue messages; a single
// sender goroutine started by Start drains them to the transport.
type Forwarder struct {
	opts      Options
	log       *logging.Logger
	q         *queue
	latest    cmap.ConcurrentMap[string, AppStatus]
	seq       atomic.Uint64
	dropped   atomic.Uint64
	pidExists func(pid int32) (bool, error)
	now       func() time.Time

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
}

var _ snapshot.Observer = (*Forwarder)(nil)

// New returns a stopped Forwarder.
func New(opts Options) *Forwarder {
	if opts.Address == "" {
		opts.Address = osc.ChatboxAddress
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	return &Forwarder{
		opts:      opts,
		log:       opts.Log.Named("forward"),
		q:         newQueue(opts.QueueSize),
		latest:    cmap.New[AppStatus](),
		pidExists: process.PidExists,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start launches the sender goroutine.
func (f *Forwarder) Start() error {
	err := ErrStarted
	f.startOnce.Do(func() {
		err = nil
		f.started.Store(true)
		go f.drain()
	})
	return err
}

// Stop disposes the queue, dropping pending messages, and waits for the
// sender to exit.
func (f *Forwarder) Stop() {
	f.q.dispose()
	if f.started.Load() {
		<-f.done
	}
}

// ObserveRefresh implements snapshot.Observer.
func (f *Forwarder) ObserveRefresh(snap snapshot.Snapshot, _ snapshot.Stats) {
	if f.q.disposed() {
		return
	}
	apps := f.liveApps(snap.Apps)
	f.updateLatest(apps)

	target, ok := snapshot.Snapshot{Header: snap.Header, Apps: apps}.FindAppByName(f.opts.TargetApp)
	if !ok {
		f.log.Debugf("%s not running", f.opts.TargetApp)
		return
	}
	text := f.opts.Prefix + strconv.FormatUint(uint64(target.Frames), 10)
	payload, err := osc.Message{
		Address: f.opts.Address,
		Args:    []any{text, f.opts.Immediate, f.opts.Notify},
	}.Encode()
	if err != nil {
		f.log.Errorf("encode %q: %v", text, err)
		return
	}
	dropped, err := f.q.put(queueElement{seqID: f.seq.Add(1), app: target.Name, payload: payload})
	if err != nil {
		f.log.Debugf("enqueue: %v", err)
		return
	}
	if dropped {
		f.dropped.Add(1)
		f.log.Warnf("outbound queue full, dropped oldest message")
	}
	f.log.Tracef("queued %q for %s", text, target.Name)
}

// LatestApps returns the applications seen by the last refresh, by name.
func (f *Forwarder) LatestApps() []AppStatus {
	items := f.latest.Items()
	out := make([]AppStatus, 0, len(items))
	for _, st := range items {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ProcessID < out[j].ProcessID
	})
	return out
}

// Dropped counts messages superseded while the queue was full.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Pending is the number of queued messages.
func (f *Forwarder) Pending() int { return f.q.len() }

func (f *Forwarder) drain() {
	defer close(f.done)
	for {
		e, err := f.q.pop()
		if err != nil {
			if !errors.Is(err, queuepkg.ErrDisposed) {
				f.log.Errorf("outbound queue: %v", err)
			}
			return
		}
		err = f.opts.Transport.Send(e.payload)
		if err != nil {
			f.log.Warnf("send #%d for %s: %v", e.seqID, e.app, err)
		}
		if f.opts.Observer != nil {
			f.opts.Observer.ObserveSend(err)
		}
	}
}

func (f *Forwarder) liveApps(apps []layout.AppEntry) []layout.AppEntry {
	if !f.opts.SkipDeadProcesses {
		return apps
	}
	live := make([]layout.AppEntry, 0, len(apps))
	for _, app := range apps {
		if app.ProcessID != 0 {
			exists, err := f.pidExists(int32(app.ProcessID))
			if err == nil && !exists {
				f.log.Debugf("skip %s: pid %d is gone", app.Name, app.ProcessID)
				continue
			}
		}
		live = append(live, app)
	}
	return live
}

func (f *Forwarder) updateLatest(apps []layout.AppEntry) {
	now := f.now()
	seen := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		if app.Name == "" {
			continue
		}
		key := app.Name + "#" + strconv.FormatUint(uint64(app.ProcessID), 10)
		seen[key] = struct{}{}
		f.latest.Set(key, AppStatus{
			Name:      app.Name,
			ProcessID: app.ProcessID,
			Frames:    app.Frames,
			FPS:       app.FPS(),
			SeenAt:    now,
		})
	}
	for _, key := range f.latest.Keys() {
		if _, ok := seen[key]; !ok {
			f.latest.Remove(key)
		}
	}
}
