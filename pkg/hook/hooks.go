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

package hook

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Priority defines hook execution priority.
type Priority int32

const (
	// LowestPriority defines lowest hook execution priority.
	LowestPriority = Priority(math.MinInt32)

	// LowPriority defines low hook execution priority.
	LowPriority = Priority(math.MinInt32 + 1000)

	// DefaultPriority defines default hook execution priority.
	DefaultPriority = Priority(0)

	// HighPriority defines high hook execution priority.
	HighPriority = Priority(math.MaxInt32 - 1000)

	// HighestPriority defines highest hook execution priority.
	HighestPriority = Priority(math.MaxInt32)
)

// Handler defines a generic hook handler function.
type Handler func(ctx context.Context, execCtx *ExecutionContext) error

// ErrOneShot is returned by a handler to get it removed right after the current invocation.
var ErrOneShot = errors.New("hook: remove handler")

// SubID identifies a registered hook handler.
type SubID uint64

// ExecutionContext defines a hook execution info context.
type ExecutionContext struct {
	Info   interface{}
	Sender interface{}
}

type handler struct {
	id SubID
	h  Handler
	p  Priority
}

// Hooks represents an ordered set of hook handlers.
type Hooks struct {
	mu       sync.RWMutex
	nextID   SubID
	handlers map[string][]*handler
	logger   kitlog.Logger
}

// NewHooks returns a new initialized Hooks instance.
func NewHooks(logger kitlog.Logger) *Hooks {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Hooks{
		handlers: make(map[string][]*handler),
		logger:   logger,
	}
}

// AddHook adds a new handler to a given hook providing an execution priority value.
// hnd priority may be any number (including negative). Handlers with a higher priority are executed first,
// handlers sharing the same priority are executed in registration order.
func (h *Hooks) AddHook(hook string, hnd Handler, priority Priority) SubID {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID

	handlers := append(h.handlers[hook], &handler{
		id: id, h: hnd, p: priority,
	})
	sort.SliceStable(handlers, func(i, j int) bool { return handlers[i].p > handlers[j].p })

	h.handlers[hook] = handlers
	return id
}

// RemoveHook removes a hook registered handler.
func (h *Hooks) RemoveHook(hook string, id SubID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(hook, id)
}

// Count returns the number of handlers registered for hook.
func (h *Hooks) Count(hook string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[hook])
}

// Run invokes all hook handlers in order.
// A failing handler never prevents the rest from being invoked; all failures are joined into the returned error.
func (h *Hooks) Run(ctx context.Context, hook string, execCtx *ExecutionContext) error {
	h.mu.RLock()
	handlers := make([]*handler, len(h.handlers[hook]))
	copy(handlers, h.handlers[hook])
	h.mu.RUnlock()

	var errs []error
	for _, hnd := range handlers {
		err := h.invoke(ctx, hook, hnd, execCtx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrOneShot):
			h.RemoveHook(hook, hnd.id)
		default:
			level.Warn(h.logger).Log("msg", "hook handler failed", "hook", hook, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Hooks) invoke(ctx context.Context, hook string, hnd *handler, execCtx *ExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook: %s handler panicked: %v", hook, r)
		}
	}()
	return hnd.h(ctx, execCtx)
}

func (h *Hooks) removeLocked(hook string, id SubID) {
	handlers := h.handlers[hook]
	for i, hnd := range handlers {
		if hnd.id != id {
			continue
		}
		updated := make([]*handler, 0, len(handlers)-1)
		updated = append(updated, handlers[:i]...)
		updated = append(updated, handlers[i+1:]...)
		if len(updated) == 0 {
			delete(h.handlers, hook)
			return
		}
		h.handlers[hook] = updated
		return
	}
}
