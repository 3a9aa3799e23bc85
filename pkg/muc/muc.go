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
	"sort"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/hook"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
	"github.com/samber/lo"
)

// Service keeps track of every room session of the account.
type Service struct {
	disp   Dispatcher
	hk     *hook.Hooks
	cfg    Config
	logger kitlog.Logger

	startOnce sync.Once

	mu    sync.RWMutex
	rooms map[string]*Room
}

// New returns a new initialized MUC Service instance.
func New(disp Dispatcher, hk *hook.Hooks, cfg Config, logger kitlog.Logger) *Service {
	return &Service{
		disp:   disp,
		hk:     hk,
		cfg:    cfg,
		logger: kitlog.With(logger, "module", "muc"),
		rooms:  make(map[string]*Room),
	}
}

// Start registers MUC service stanza handlers into the dispatcher.
func (s *Service) Start(_ context.Context) error {
	s.startOnce.Do(func() {
		s.disp.OnStreamEnded(s.OnStreamEnded)
		s.disp.OnBeforeStreamEstablished(s.onStreamEstablished)
	})
	s.disp.RegisterMessageHandler(stravaganza.NormalType, nil, s.handleMessage)

	level.Info(s.logger).Log("msg", "started muc module")
	return nil
}

// Stop unregisters MUC service stanza handlers.
func (s *Service) Stop(_ context.Context) error {
	s.disp.UnregisterMessageHandler(stravaganza.NormalType, nil)

	level.Info(s.logger).Log("msg", "stopped muc module")
	return nil
}

// Join starts joining roomJID using nick.
// The returned room is in joining state with no occupants, and the channel yields the join outcome.
func (s *Service) Join(ctx context.Context, roomJID *jid.JID, nick string, opts JoinOptions) (*Room, <-chan error) {
	if len(nick) == 0 {
		return nil, errChan(ErrInvalidNick)
	}
	r := newRoom(s, roomJID, nick, opts)
	if err := s.addRoom(r); err != nil {
		reportJoin("rejected")
		return s.Room(roomJID), errChan(err)
	}
	return r, r.join(ctx)
}

// Room returns the room session associated to roomJID, or nil if there is none.
func (s *Service) Room(roomJID *jid.JID) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomJID.ToBareJID().String()]
}

// Rooms returns all room sessions sorted by address.
func (s *Service) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := lo.Keys(s.rooms)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) *Room { return s.rooms[k] })
}

// OnStreamEnded exits every room with disconnected mode.
// Disconnected rooms are kept so that they can be rejoined once the stream is back.
func (s *Service) OnStreamEnded(ctx context.Context) error {
	for _, r := range s.Rooms() {
		r.process(ctx, func() []event {
			return r.exit(mucmodel.LeaveDisconnected, "", "", nil)
		})
	}
	return nil
}

func (s *Service) onStreamEstablished(ctx context.Context) error {
	if !s.cfg.AutoRejoin {
		return nil
	}
	for _, r := range s.Rooms() {
		if r.State() != mucmodel.Left {
			continue
		}
		// join outcome is reported by room events
		_ = r.join(ctx)
	}
	return nil
}

func (s *Service) handleMessage(ctx context.Context, msg *stravaganza.Message) error {
	if inf, ok := parseInvitation(msg); ok {
		level.Debug(s.logger).Log("msg", "received room invitation", "room", inf.RoomJID.String(), "mode", inf.Mode)
		_ = s.hk.Run(ctx, hook.MUCInvitationReceived, &hook.ExecutionContext{
			Info:   inf,
			Sender: s,
		})
		return nil
	}
	form := parseDataForm(msg)
	if form == nil || form.formType() != mucRequestForm {
		return nil
	}
	fromJID := msg.FromJID()
	if fromJID == nil {
		return nil
	}
	if r := s.Room(fromJID); r != nil {
		r.handleVoiceRequest(ctx, msg, form)
	}
	return nil
}

func (s *Service) addRoom(r *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := r.roomJID.String()
	if cur, ok := s.rooms[k]; ok && cur != r {
		return ErrAlreadyJoined
	}
	s.rooms[k] = r
	return nil
}

func (s *Service) removeRoom(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := r.roomJID.String()
	if s.rooms[k] == r {
		delete(s.rooms, k)
	}
}

func (s *Service) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}
