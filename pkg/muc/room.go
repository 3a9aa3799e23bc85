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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jackal-xmpp/runqueue/v2"
	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/hook"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
	"github.com/ortuman/jackal-client/pkg/stream"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
	"github.com/samber/lo"
)

var (
	// ErrNotJoined is returned when operating on a room that is not joined.
	ErrNotJoined = errors.New("muc: room not joined")

	// ErrAlreadyJoined is returned when joining a room that is already joined or being joined.
	ErrAlreadyJoined = errors.New("muc: room already joined")

	// ErrInvalidNick is returned when joining a room with an empty nick.
	ErrInvalidNick = errors.New("muc: invalid nick")

	// ErrJoinAborted is returned through the join channel when the room is exited before the join completed.
	ErrJoinAborted = errors.New("muc: join aborted")

	// ErrOccupantNotFound is returned when addressing a nick that is not present in the room.
	ErrOccupantNotFound = errors.New("muc: occupant not found")
)

// JoinOptions defines room join parameters.
type JoinOptions struct {
	// History limits the discussion history the room replays on join. Nil means room default.
	History *History

	// Password is the room password, if any.
	Password string

	// EmitHistoryJoins tells whether occupant joined events should be fired while history is being replayed.
	EmitHistoryJoins bool

	// SelfPing overrides service self-ping configuration for this room.
	SelfPing *SelfPingConfig
}

type event struct {
	name string
	inf  interface{}
}

// Room represents a joined multi-user chat room session.
type Room struct {
	roomJID *jid.JID
	opts    JoinOptions
	svc     *Service
	disp    Dispatcher
	hk      *hook.Hooks
	cfg     Config
	logger  kitlog.Logger
	rq      *runqueue.RunQueue
	pinger  *selfPinger

	// mu is held by every task running on rq.
	mu          sync.RWMutex
	state       mucmodel.RoomState
	nick        string
	self        *mucmodel.Occupant
	occupants   map[string]*mucmodel.Occupant
	subject     map[string]string
	subjectNick string
	trackers    map[string]*Tracker
	joinCh      chan error
	exitCh      chan struct{}
	exitMode    mucmodel.LeaveMode
	registered  bool
	graceTm     *time.Timer
}

func newRoom(svc *Service, roomJID *jid.JID, nick string, opts JoinOptions) *Room {
	spCfg := svc.cfg.SelfPing
	if opts.SelfPing != nil {
		spCfg = *opts.SelfPing
	}
	r := &Room{
		roomJID:   roomJID.ToBareJID(),
		opts:      opts,
		svc:       svc,
		disp:      svc.disp,
		hk:        svc.hk,
		cfg:       svc.cfg,
		logger:    kitlog.With(svc.logger, "room", roomJID.ToBareJID().String()),
		rq:        runqueue.New(roomJID.ToBareJID().String()),
		state:     mucmodel.Left,
		nick:      nick,
		occupants: make(map[string]*mucmodel.Occupant),
		trackers:  make(map[string]*Tracker),
	}
	r.pinger = newSelfPinger(r, spCfg)
	return r
}

// JID returns room bare address.
func (r *Room) JID() *jid.JID { return r.roomJID }

// Nick returns local user current nick.
func (r *Room) Nick() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nick
}

// State returns room session state.
func (r *Room) State() mucmodel.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// IsJoined tells whether the local user is in the room.
func (r *Room) IsJoined() bool {
	st := r.State()
	return st == mucmodel.History || st == mucmodel.Active
}

// IsStale tells whether the room stopped answering self-pings.
func (r *Room) IsStale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pinger.stale
}

// Self returns the local user occupant, or nil if the self-presence has not been received yet.
func (r *Room) Self() *mucmodel.Occupant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.self
}

// Occupant returns the occupant identified by nick, or nil if there is none.
func (r *Room) Occupant(nick string) *mucmodel.Occupant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.occupants[nick]
}

// Occupants returns all room occupants sorted by nick.
func (r *Room) Occupants() []*mucmodel.Occupant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nicks := lo.Keys(r.occupants)
	sort.Strings(nicks)
	return lo.Map(nicks, func(nick string, _ int) *mucmodel.Occupant { return r.occupants[nick] })
}

// Subject returns current room subject keyed by language tag.
func (r *Room) Subject() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Assign(r.subject)
}

// SubjectSetter returns the nick of the occupant that set current subject.
func (r *Room) SubjectSetter() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subjectNick
}

// Leave exits the room and waits until the room reflects it.
func (r *Room) Leave(ctx context.Context) error {
	r.mu.RLock()
	st := r.state
	occJID := r.occupantJID()
	exitCh := r.exitCh
	r.mu.RUnlock()

	if st == mucmodel.Left {
		return nil
	}
	localJID := r.disp.LocalJID()
	if localJID == nil {
		return stream.ErrStreamNotEstablished
	}
	if err := r.disp.Send(ctx, xmpputil.MakePresence(localJID, occJID, stravaganza.UnavailableType, nil)); err != nil {
		return err
	}
	select {
	case <-exitCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rejoin issues the join presence again for a room exited because of a disconnection.
func (r *Room) Rejoin(ctx context.Context) <-chan error {
	if r.State() != mucmodel.Left {
		return errChan(ErrAlreadyJoined)
	}
	if err := r.svc.addRoom(r); err != nil {
		return errChan(err)
	}
	return r.join(ctx)
}

// SetNick requests a nick change. The change is applied once the room reflects it.
func (r *Room) SetNick(ctx context.Context, nick string) error {
	if len(nick) == 0 {
		return ErrInvalidNick
	}
	localJID, err := r.joinedLocalJID()
	if err != nil {
		return err
	}
	newJID, err := jid.New(r.roomJID.Node(), r.roomJID.Domain(), nick, false)
	if err != nil {
		return err
	}
	return r.disp.Send(ctx, xmpputil.MakePresence(localJID, newJID, stravaganza.AvailableType, nil))
}

// SetRole requests the role of the occupant identified by nick to be changed.
// The change is applied once the room reflects it.
func (r *Room) SetRole(ctx context.Context, nick string, role mucmodel.Role, reason string) error {
	if err := r.checkRoleChange(nick, role); err != nil {
		return err
	}
	return r.adminRequest(ctx, adminItem(map[string]string{
		"nick": nick,
		"role": string(role),
	}, reason))
}

// SetAffiliation requests the affiliation of the user identified by jd to be changed.
func (r *Room) SetAffiliation(ctx context.Context, jd *jid.JID, affiliation mucmodel.Affiliation, reason string) error {
	if err := r.checkAffiliationChange(jd, affiliation); err != nil {
		return err
	}
	return r.adminRequest(ctx, adminItem(map[string]string{
		"jid":         jd.ToBareJID().String(),
		"affiliation": string(affiliation),
	}, reason))
}

// Kick removes the occupant identified by nick from the room.
func (r *Room) Kick(ctx context.Context, nick, reason string) error {
	return r.SetRole(ctx, nick, mucmodel.NoRole, reason)
}

// Ban bans the user identified by jd from the room.
func (r *Room) Ban(ctx context.Context, jd *jid.JID, reason string) error {
	return r.SetAffiliation(ctx, jd, mucmodel.Outcast, reason)
}

// SetTopic changes room subject. Language tags are used as keys, the empty key meaning untagged text.
func (r *Room) SetTopic(ctx context.Context, subject map[string]string) error {
	localJID, err := r.joinedLocalJID()
	if err != nil {
		return err
	}
	if len(subject) == 0 {
		subject = map[string]string{"": ""}
	}
	return r.disp.Send(ctx, xmpputil.MakeMessage(xmpputil.GroupChatType, localJID, r.roomJID, subjectElements(subject)))
}

// SendMessage sends msg to the room as a groupchat message.
func (r *Room) SendMessage(ctx context.Context, msg *stravaganza.Message) error {
	out, err := r.groupChatMessage(msg)
	if err != nil {
		return err
	}
	return r.disp.Send(ctx, out)
}

// SendMessageTracked sends msg to the room and returns a tracker following its delivery.
func (r *Room) SendMessageTracked(ctx context.Context, msg *stravaganza.Message) (string, *Tracker, error) {
	out, err := r.groupChatMessage(msg)
	if err != nil {
		return "", nil, err
	}
	id := out.Attribute(stravaganza.ID)
	tr := newTracker(id)

	r.mu.Lock()
	r.trackers[id] = tr
	r.mu.Unlock()

	if err := r.disp.Send(ctx, out); err != nil {
		r.mu.Lock()
		delete(r.trackers, id)
		r.mu.Unlock()

		tr.setState(mucmodel.DeliveryError, err)
		return id, tr, err
	}
	tr.setState(mucmodel.DeliveredToServer, nil)
	return id, tr, nil
}

// SendPrivateMessage sends msg as a private chat message to the occupant identified by nick.
func (r *Room) SendPrivateMessage(ctx context.Context, nick string, msg *stravaganza.Message) error {
	localJID, err := r.joinedLocalJID()
	if err != nil {
		return err
	}
	if r.Occupant(nick) == nil {
		return ErrOccupantNotFound
	}
	occJID, err := jid.New(r.roomJID.Node(), r.roomJID.Domain(), nick, false)
	if err != nil {
		return ErrInvalidNick
	}
	id := msg.Attribute(stravaganza.ID)
	if len(id) == 0 {
		id = uuid.New().String()
	}
	out, err := stravaganza.NewBuilderFromElement(msg).
		WithAttribute(stravaganza.ID, id).
		WithAttribute(stravaganza.Type, stravaganza.ChatType).
		WithAttribute(stravaganza.From, localJID.String()).
		WithAttribute(stravaganza.To, occJID.String()).
		WithChild(stravaganza.NewBuilder("x").
			WithAttribute(stravaganza.Namespace, mucUserNamespace).
			Build(),
		).
		BuildMessage()
	if err != nil {
		return err
	}
	return r.disp.Send(ctx, out)
}

func (r *Room) groupChatMessage(msg *stravaganza.Message) (*stravaganza.Message, error) {
	localJID, err := r.joinedLocalJID()
	if err != nil {
		return nil, err
	}
	id := msg.Attribute(stravaganza.ID)
	if len(id) == 0 {
		id = uuid.New().String()
	}
	return stravaganza.NewBuilderFromElement(msg).
		WithAttribute(stravaganza.ID, id).
		WithAttribute(stravaganza.Type, xmpputil.GroupChatType).
		WithAttribute(stravaganza.From, localJID.String()).
		WithAttribute(stravaganza.To, r.roomJID.String()).
		BuildMessage()
}

// checkRoleChange fails when the local occupant lacks the privileges to grant role to nick.
// Nicks not present in the room are left for the service to answer.
func (r *Room) checkRoleChange(nick string, role mucmodel.Role) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target := r.occupants[nick]
	if r.self == nil || target == nil {
		return nil
	}
	if !r.self.CanChangeRole(target, role) {
		return errNotPrivileged("role change not allowed")
	}
	return nil
}

// checkAffiliationChange fails when the local occupant lacks the privileges to grant affiliation to jd.
// Admins cannot grant or revoke owner and admin affiliations.
func (r *Room) checkAffiliationChange(jd *jid.JID, affiliation mucmodel.Affiliation) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case r.self == nil || r.self.IsOwner():
		return nil
	case !r.self.IsAdmin(), affiliation == mucmodel.Owner, affiliation == mucmodel.Admin:
		return errNotPrivileged("affiliation change not allowed")
	}
	bareJID := jd.ToBareJID().String()
	for _, occ := range r.occupants {
		realJID := occ.RealJID()
		if realJID == nil || realJID.ToBareJID().String() != bareJID {
			continue
		}
		if occ.IsAdmin() || !r.self.HasHigherAffiliation(occ) {
			return errNotPrivileged("affiliation change not allowed")
		}
	}
	return nil
}

func errNotPrivileged(text string) error {
	return stream.NewStanzaError(stanzaerror.Forbidden.Type().String(), stanzaerror.Forbidden, text)
}

func (r *Room) adminRequest(ctx context.Context, item stravaganza.Element) error {
	localJID, err := r.joinedLocalJID()
	if err != nil {
		return err
	}
	ctx, cancel := r.svc.requestContext(ctx)
	defer cancel()

	iq, err := xmpputil.MakeIQ(stravaganza.SetType, localJID, r.roomJID, adminQuery(item))
	if err != nil {
		return err
	}
	if _, err := r.disp.SendIQ(ctx, iq); err != nil {
		return fmt.Errorf("muc: admin request failed: %w", err)
	}
	return nil
}

func (r *Room) joinedLocalJID() (*jid.JID, error) {
	if !r.IsJoined() {
		return nil, ErrNotJoined
	}
	localJID := r.disp.LocalJID()
	if localJID == nil {
		return nil, stream.ErrStreamNotEstablished
	}
	return localJID, nil
}

func (r *Room) join(ctx context.Context) <-chan error {
	localJID := r.disp.LocalJID()
	if localJID == nil {
		return errChan(stream.ErrStreamNotEstablished)
	}
	joinCh := make(chan error, 1)

	var occJID *jid.JID
	r.exec(func() []event {
		r.state = mucmodel.Joining
		r.self = nil
		r.occupants = make(map[string]*mucmodel.Occupant)
		r.joinCh = joinCh
		r.exitCh = make(chan struct{})
		r.exitMode = mucmodel.LeaveNormal
		r.register()
		occJID = r.occupantJID()
		return nil
	})
	pr := xmpputil.MakePresence(localJID, occJID, stravaganza.AvailableType, []stravaganza.Element{
		joinElement(r.opts.History, r.opts.Password),
	})
	if err := r.disp.Send(ctx, pr); err != nil {
		r.exec(func() []event {
			// the stream may have ended and exited the room already
			if r.state == mucmodel.Joining && r.joinCh == joinCh {
				r.failJoin(err)
			}
			return nil
		})
		return joinCh
	}
	level.Info(r.logger).Log("msg", "joining room", "nick", occJID.Resource())
	return joinCh
}

func (r *Room) handlePresence(ctx context.Context, pr *stravaganza.Presence) error {
	r.process(ctx, func() []event { return r.onPresence(pr) })
	return nil
}

func (r *Room) handleGroupChat(ctx context.Context, msg *stravaganza.Message) error {
	r.process(ctx, func() []event { return r.onGroupChat(msg) })
	return nil
}

func (r *Room) handlePrivateMessage(ctx context.Context, msg *stravaganza.Message) error {
	r.process(ctx, func() []event { return r.onPrivateMessage(msg) })
	return nil
}

func (r *Room) handleErrorMessage(ctx context.Context, msg *stravaganza.Message) error {
	r.process(ctx, func() []event { return r.onErrorMessage(msg) })
	return nil
}

func (r *Room) onPresence(pr *stravaganza.Presence) []event {
	if r.state == mucmodel.Left {
		return nil
	}
	fromJID := pr.FromJID()
	nick := fromJID.Resource()
	ui := parseUserInfo(pr)
	isSelf := ui.hasStatus(statusSelfPresence) || (len(nick) > 0 && nick == r.nick)

	var evs []event
	if r.state == mucmodel.Active {
		evs = append(evs, r.pinger.touch()...)
	}
	switch pr.Attribute(stravaganza.Type) {
	case stravaganza.ErrorType:
		if r.state == mucmodel.Joining {
			r.failJoin(stream.ErrorFromStanza(pr))
			return nil
		}
		if isSelf {
			return append(evs, r.exit(mucmodel.LeaveError, ui.actor, ui.reason, pr)...)
		}
		return evs

	case stravaganza.UnavailableType:
		if ui.hasStatus(statusNickChanged) && len(ui.nick) > 0 {
			return append(evs, r.renameOccupant(nick, ui.nick, isSelf, pr)...)
		}
		mode := classifyLeave(pr, ui)
		if isSelf {
			return append(evs, r.exit(mode, ui.actor, ui.reason, pr)...)
		}
		occ := r.occupants[nick]
		if occ == nil {
			return evs
		}
		occ.Update(ui.affiliation, ui.role, ui.realJID, pr)
		delete(r.occupants, nick)

		return append(evs, event{name: hook.MUCOccupantLeft, inf: &hook.MUCOccupantInfo{
			RoomJID:  r.roomJID,
			Occupant: occ,
			Presence: pr,
			Mode:     mode,
			Actor:    ui.actor,
			Reason:   ui.reason,
		}})
	}

	occ, ok := r.occupants[nick]
	if !ok {
		occ = mucmodel.NewOccupant(fromJID, isSelf)
		occ.Update(ui.affiliation, ui.role, ui.realJID, pr)
		r.occupants[nick] = occ

		if r.state == mucmodel.Active || r.opts.EmitHistoryJoins {
			evs = append(evs, event{name: hook.MUCOccupantJoined, inf: &hook.MUCOccupantInfo{
				RoomJID:  r.roomJID,
				Occupant: occ,
				Presence: pr,
			}})
		}
	} else {
		oldRole, oldAff := occ.Role(), occ.Affiliation()
		roleChanged, affChanged := occ.Update(ui.affiliation, ui.role, ui.realJID, pr)
		if roleChanged {
			evs = append(evs, event{name: hook.MUCOccupantRoleChanged, inf: &hook.MUCOccupantInfo{
				RoomJID:  r.roomJID,
				Occupant: occ,
				Presence: pr,
				Actor:    ui.actor,
				Reason:   ui.reason,
				OldRole:  oldRole,
			}})
		}
		if affChanged {
			evs = append(evs, event{name: hook.MUCOccupantAffiliationChanged, inf: &hook.MUCOccupantInfo{
				RoomJID:        r.roomJID,
				Occupant:       occ,
				Presence:       pr,
				Actor:          ui.actor,
				Reason:         ui.reason,
				OldAffiliation: oldAff,
			}})
		}
	}
	if isSelf && r.state == mucmodel.Joining {
		evs = append(evs, r.completeJoin(occ, ui)...)
	}
	return evs
}

func (r *Room) completeJoin(self *mucmodel.Occupant, ui userInfo) []event {
	r.self = self
	r.nick = self.Nick()
	r.state = mucmodel.History
	r.resolveJoin(nil)
	reportJoin("succeeded")

	level.Info(r.logger).Log("msg", "joined room", "nick", r.nick, "created", ui.hasStatus(statusRoomCreated))

	if r.cfg.HistoryGrace <= 0 {
		return r.enter()
	}
	r.graceTm = time.AfterFunc(r.cfg.HistoryGrace, func() {
		r.process(context.Background(), func() []event {
			if r.state != mucmodel.History {
				return nil
			}
			return r.enter()
		})
	})
	return nil
}

func (r *Room) enter() []event {
	r.state = mucmodel.Active
	if r.graceTm != nil {
		r.graceTm.Stop()
		r.graceTm = nil
	}
	r.pinger.reset()

	return []event{{name: hook.MUCRoomEntered, inf: &hook.MUCRoomInfo{
		RoomJID:  r.roomJID,
		Self:     r.self,
		Presence: r.self.Presence(),
	}}}
}

func (r *Room) renameOccupant(oldNick, newNick string, isSelf bool, pr *stravaganza.Presence) []event {
	occ := r.occupants[oldNick]
	if occ == nil {
		return nil
	}
	delete(r.occupants, oldNick)
	occ.Rename(newNick)
	r.occupants[newNick] = occ
	if isSelf {
		r.nick = newNick
	}
	return []event{{name: hook.MUCOccupantNickChanged, inf: &hook.MUCOccupantInfo{
		RoomJID:  r.roomJID,
		Occupant: occ,
		Presence: pr,
		OldNick:  oldNick,
	}}}
}

func (r *Room) onGroupChat(msg *stravaganza.Message) []event {
	if r.state == mucmodel.Left {
		return nil
	}
	nick := msg.FromJID().Resource()

	var evs []event
	if r.state == mucmodel.Active {
		evs = append(evs, r.pinger.touch()...)
	}
	if subject, ok := parseSubject(msg); ok && msg.Child("body") == nil {
		if r.state == mucmodel.History {
			evs = append(evs, r.enter()...)
		}
		r.subject = subject
		r.subjectNick = nick

		return append(evs, event{name: hook.MUCTopicChanged, inf: &hook.MUCTopicInfo{
			RoomJID:  r.roomJID,
			Occupant: r.occupants[nick],
			Nick:     nick,
			Subject:  lo.Assign(subject),
		}})
	}
	if r.state == mucmodel.History {
		// an undelayed message means the server is done replaying history
		if _, delayed := xmpputil.DelayStamp(msg); !delayed {
			evs = append(evs, r.enter()...)
		}
	}
	source := hook.MUCMessageLive
	switch {
	case r.state != mucmodel.Active:
		source = hook.MUCMessageHistory
	case nick == r.nick:
		source = hook.MUCMessageSelf
	}
	if nick == r.nick {
		id := msg.Attribute(stravaganza.ID)
		if tr, ok := r.trackers[id]; ok {
			delete(r.trackers, id)
			tr.setState(mucmodel.DeliveredToRecipient, nil)
			source = hook.MUCMessageSelf
		}
	}
	return append(evs, event{name: hook.MUCMessageReceived, inf: &hook.MUCMessageInfo{
		RoomJID:  r.roomJID,
		Occupant: r.occupants[nick],
		Nick:     nick,
		Message:  msg,
		Source:   source,
	}})
}

func (r *Room) onPrivateMessage(msg *stravaganza.Message) []event {
	if r.state == mucmodel.Left {
		return nil
	}
	nick := msg.FromJID().Resource()
	if len(nick) == 0 {
		return nil
	}
	var evs []event
	if r.state == mucmodel.Active {
		evs = append(evs, r.pinger.touch()...)
	}
	return append(evs, event{name: hook.MUCPrivateMessageReceived, inf: &hook.MUCMessageInfo{
		RoomJID:  r.roomJID,
		Occupant: r.occupants[nick],
		Nick:     nick,
		Message:  msg,
		Source:   hook.MUCMessageLive,
	}})
}

func (r *Room) onErrorMessage(msg *stravaganza.Message) []event {
	var evs []event
	if r.state == mucmodel.Active {
		evs = append(evs, r.pinger.touch()...)
	}
	id := msg.Attribute(stravaganza.ID)
	if tr, ok := r.trackers[id]; ok {
		delete(r.trackers, id)
		tr.setState(mucmodel.DeliveryError, stream.ErrorFromStanza(msg))
	}
	return evs
}

// exit must run on the room queue.
func (r *Room) exit(mode mucmodel.LeaveMode, actor, reason string, pr *stravaganza.Presence) []event {
	if r.state == mucmodel.Left {
		return nil
	}
	wasJoined := r.state != mucmodel.Joining

	r.state = mucmodel.Left
	r.exitMode = mode
	if r.graceTm != nil {
		r.graceTm.Stop()
		r.graceTm = nil
	}
	r.pinger.stop()
	r.resolveJoin(fmt.Errorf("%w: %s", ErrJoinAborted, mode))

	for id, tr := range r.trackers {
		tr.setState(mucmodel.DeliveryError, ErrNotJoined)
		delete(r.trackers, id)
	}
	r.occupants = make(map[string]*mucmodel.Occupant)
	close(r.exitCh)

	if mode != mucmodel.LeaveDisconnected {
		r.unregister()
		r.svc.removeRoom(r)
	}
	reportExit(mode.String())
	level.Info(r.logger).Log("msg", "exited room", "mode", mode, "actor", actor, "reason", reason)

	if !wasJoined {
		return nil
	}
	return []event{{name: hook.MUCRoomExited, inf: &hook.MUCRoomInfo{
		RoomJID:  r.roomJID,
		Self:     r.self,
		Mode:     mode,
		Actor:    actor,
		Reason:   reason,
		Presence: pr,
	}}}
}

func (r *Room) failJoin(err error) {
	r.state = mucmodel.Left
	r.resolveJoin(err)
	close(r.exitCh)
	r.unregister()
	r.svc.removeRoom(r)
	reportJoin("failed")

	level.Warn(r.logger).Log("msg", "failed to join room", "err", err)
}

func (r *Room) resolveJoin(err error) {
	if r.joinCh == nil {
		return
	}
	r.joinCh <- err
	close(r.joinCh)
	r.joinCh = nil
}

// occupantJID must be called while holding r.mu.
func (r *Room) occupantJID() *jid.JID {
	occJID, _ := jid.New(r.roomJID.Node(), r.roomJID.Domain(), r.nick, true)
	return occJID
}

func (r *Room) register() {
	if r.registered {
		return
	}
	for _, typ := range []string{stravaganza.AvailableType, stravaganza.UnavailableType, stravaganza.ErrorType} {
		r.disp.RegisterPresenceHandler(typ, r.roomJID, r.handlePresence)
	}
	r.disp.RegisterMessageHandler(xmpputil.GroupChatType, r.roomJID, r.handleGroupChat)
	r.disp.RegisterMessageHandler(stravaganza.ChatType, r.roomJID, r.handlePrivateMessage)
	r.disp.RegisterMessageHandler(stravaganza.ErrorType, r.roomJID, r.handleErrorMessage)
	r.registered = true
}

func (r *Room) unregister() {
	if !r.registered {
		return
	}
	for _, typ := range []string{stravaganza.AvailableType, stravaganza.UnavailableType, stravaganza.ErrorType} {
		r.disp.UnregisterPresenceHandler(typ, r.roomJID)
	}
	r.disp.UnregisterMessageHandler(xmpputil.GroupChatType, r.roomJID)
	r.disp.UnregisterMessageHandler(stravaganza.ChatType, r.roomJID)
	r.disp.UnregisterMessageHandler(stravaganza.ErrorType, r.roomJID)
	r.registered = false
}

// exec runs fn on the room queue holding r.mu, and waits for it to complete.
func (r *Room) exec(fn func() []event) []event {
	var evs []event
	doneCh := make(chan struct{})
	r.rq.Run(func() {
		defer close(doneCh)

		r.mu.Lock()
		defer r.mu.Unlock()
		evs = fn()
	})
	<-doneCh
	return evs
}

// process runs fn on the room queue and then fires the resulting events.
// Events are fired off the queue, so that listeners are free to operate on the room.
func (r *Room) process(ctx context.Context, fn func() []event) {
	r.fire(ctx, r.exec(fn))
}

func (r *Room) fire(ctx context.Context, evs []event) {
	for _, ev := range evs {
		_ = r.hk.Run(ctx, ev.name, &hook.ExecutionContext{
			Info:   ev.inf,
			Sender: r,
		})
	}
}

func errChan(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}
