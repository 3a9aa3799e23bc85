// Copyright 2023 The jackal Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package muc

import (
	"context"
	"sync"

	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
)

// Tracker follows the delivery of a single groupchat message.
type Tracker struct {
	id string

	mu     sync.RWMutex
	state  mucmodel.MessageState
	err    error
	doneCh chan struct{}
}

func newTracker(id string) *Tracker {
	return &Tracker{
		id:     id,
		state:  mucmodel.InTransit,
		doneCh: make(chan struct{}),
	}
}

// ID returns tracked message identifier.
func (t *Tracker) ID() string { return t.id }

// State returns current delivery state.
func (t *Tracker) State() mucmodel.MessageState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Err returns the delivery error once the tracker reached the error state.
func (t *Tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Done returns a channel that is closed as soon as the tracker reaches a final state.
func (t *Tracker) Done() <-chan struct{} { return t.doneCh }

// Wait blocks until the tracker reaches a final state or ctx is done.
func (t *Tracker) Wait(ctx context.Context) (mucmodel.MessageState, error) {
	select {
	case <-t.doneCh:
		t.mu.RLock()
		defer t.mu.RUnlock()
		return t.state, t.err
	case <-ctx.Done():
		return t.State(), ctx.Err()
	}
}

// setState moves the tracker forward. Backward transitions and transitions out of a final state are ignored.
func (t *Tracker) setState(st mucmodel.MessageState, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsFinal() || st <= t.state {
		return false
	}
	t.state = st
	t.err = err
	if st.IsFinal() {
		close(t.doneCh)
	}
	return true
}
