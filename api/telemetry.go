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

package api

import (
	"context"

	"github.com/srediag/rtss-shm/pkg/layout"
)

// PointLookup fetches single records without decoding whole arrays.
type PointLookup interface {
	FindOSDByIndex(ctx context.Context, id uint32) (layout.OSDEntry, bool)
	FindAppByIndex(ctx context.Context, id uint32) (layout.AppEntry, bool)
}

// Transport sends opaque datagrams to downstream consumers.
type Transport interface {
	// Start the transport (e.g., dial sockets).
	Start() error
	// Stop the transport and clean up resources.
	Stop() error
	// Send data over the transport.
	Send(data []byte) error
}

// Health is polled by the liveness and readiness endpoints.
type Health interface {
	// Alive reports an error when the polling loop is no longer running.
	Alive() error
	// Ready reports an error when the last refresh found no publisher.
	Ready() error
}
