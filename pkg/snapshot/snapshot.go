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

// Package snapshot decodes the whole RTSS region into a Snapshot on each refresh.
package snapshot

import (
	"strings"

	"github.com/srediag/rtss-shm/pkg/layout"
)

// Snapshot is the decoded result of one refresh. Header is nil when no valid
// data was available; OSD and Apps are then empty.
type Snapshot struct {
	Header *layout.Header
	OSD    []layout.OSDEntry
	Apps   []layout.AppEntry
}

// Empty reports whether the refresh produced no header.
func (s Snapshot) Empty() bool { return s.Header == nil }

// FindAppByName returns the first application whose name contains name.
func (s Snapshot) FindAppByName(name string) (layout.AppEntry, bool) {
	for _, app := range s.Apps {
		if app.Name != "" && strings.Contains(app.Name, name) {
			return app, true
		}
	}
	return layout.AppEntry{}, false
}

// FindAppByExactName returns the first application whose name equals name,
// ignoring case. Names may be a bare executable name or a full path.
func (s Snapshot) FindAppByExactName(name string) (layout.AppEntry, bool) {
	for _, app := range s.Apps {
		if strings.EqualFold(app.Name, name) || strings.EqualFold(baseName(app.Name), name) {
			return app, true
		}
	}
	return layout.AppEntry{}, false
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Stats describes what a refresh skipped.
type Stats struct {
	// Err is why no header was produced; nil when the snapshot has one.
	Err error
	// OSDOutOfBounds and AppsOutOfBounds report that the header described an
	// array larger than the mapping, so that array was left empty.
	OSDOutOfBounds  bool
	AppsOutOfBounds bool
	// OSDSkipped and AppsSkipped count individual records that failed to read.
	OSDSkipped  int
	AppsSkipped int
}

// Observer is told about every refresh.
type Observer interface {
	ObserveRefresh(snap Snapshot, stats Stats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot, Stats)

func (f ObserverFunc) ObserveRefresh(snap Snapshot, stats Stats) { f(snap, stats) }
