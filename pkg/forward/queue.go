/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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
	"fmt"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
)

// dropWait bounds how long put waits for the oldest element when full.
const dropWait = time.Millisecond

// queue is the bounded outbound queue between the poller and the sender.
// When full, the oldest element is dropped: a newer frame count supersedes it.
type queue struct {
	q   *queuepkg.Queue
	cap int
}

type queueElement struct {
	seqID   uint64
	app     string
	payload []byte
}

func newQueue(cap int) *queue {
	return &queue{q: queuepkg.New(int64(cap)), cap: cap}
}

// put appends e and reports whether an older element was dropped for it.
func (q *queue) put(e queueElement) (dropped bool, err error) {
	if int(q.q.Len()) >= q.cap {
		if _, perr := q.q.Poll(1, dropWait); perr == nil {
			dropped = true
		} else if !errors.Is(perr, queuepkg.ErrTimeout) {
			return false, perr
		}
	}
	return dropped, q.q.Put(e)
}

// pop blocks until an element is available or the queue is disposed.
func (q *queue) pop() (queueElement, error) {
	items, err := q.q.Get(1)
	if err != nil {
		return queueElement{}, err
	}
	if len(items) == 0 {
		return queueElement{}, queuepkg.ErrDisposed
	}
	qe, ok := items[0].(queueElement)
	if !ok {
		return queueElement{}, fmt.Errorf("invalid queue element type %T", items[0])
	}
	return qe, nil
}

func (q *queue) len() int { return int(q.q.Len()) }

func (q *queue) dispose() { q.q.Dispose() }

func (q *queue) disposed() bool { return q.q.Disposed() }
