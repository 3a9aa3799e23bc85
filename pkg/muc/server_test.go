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
	"strconv"
	"sync"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/hook"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
	"github.com/ortuman/jackal-client/pkg/stream"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
	"github.com/stretchr/testify/require"
)

const testRoom = "coven@chat.jackal.im"

var mucEvents = []string{
	hook.MUCOccupantJoined,
	hook.MUCOccupantLeft,
	hook.MUCOccupantNickChanged,
	hook.MUCOccupantRoleChanged,
	hook.MUCOccupantAffiliationChanged,
	hook.MUCRoomEntered,
	hook.MUCRoomExited,
	hook.MUCRoomStale,
	hook.MUCRoomFresh,
	hook.MUCRoleRequest,
	hook.MUCTopicChanged,
	hook.MUCInvitationReceived,
	hook.MUCMessageReceived,
	hook.MUCPrivateMessageReceived,
}

type recordedEvent struct {
	name string
	inf  interface{}
}

type eventRecorder struct {
	mu  sync.Mutex
	evs []recordedEvent
}

func newEventRecorder(hk *hook.Hooks) *eventRecorder {
	rec := &eventRecorder{}
	for _, name := range mucEvents {
		hk.AddHook(name, func(_ context.Context, execCtx *hook.ExecutionContext) error {
			rec.mu.Lock()
			rec.evs = append(rec.evs, recordedEvent{name: name, inf: execCtx.Info})
			rec.mu.Unlock()
			return nil
		}, hook.DefaultPriority)
	}
	return rec
}

func (rec *eventRecorder) all(name string) []interface{} {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	var infos []interface{}
	for _, ev := range rec.evs {
		if ev.name == name {
			infos = append(infos, ev.inf)
		}
	}
	return infos
}

func (rec *eventRecorder) count(name string) int {
	return len(rec.all(name))
}

func (rec *eventRecorder) last(name string) interface{} {
	infos := rec.all(name)
	if len(infos) == 0 {
		return nil
	}
	return infos[len(infos)-1]
}

type testClient struct {
	jid  *jid.JID
	disp *stream.Dispatcher
	hk   *hook.Hooks
	svc  *Service
	rec  *eventRecorder
}

type fakeOccupant struct {
	nick   string
	client *jid.JID
	aff    mucmodel.Affiliation
	role   mucmodel.Role
}

type delivery struct {
	to     *jid.JID
	stanza stravaganza.Stanza
}

type presenceOpts struct {
	typ     string
	actor   string
	reason  string
	newNick string
	codes   []int
}

// fakeMUCServer emulates a single room service routing stanzas among test clients.
type fakeMUCServer struct {
	t       *testing.T
	roomJID *jid.JID

	mu        sync.Mutex
	clients   map[string]*stream.Dispatcher
	occupants map[string]*fakeOccupant
	noSubject bool
	moderated bool
	dropPings bool
	joinErr   *stanzaerror.Reason
	pingErr   *stanzaerror.Reason
	msgErr    *stanzaerror.Reason
}

func newFakeMUCServer(t *testing.T) *fakeMUCServer {
	roomJID, _ := jid.NewWithString(testRoom, true)
	return &fakeMUCServer{
		t:         t,
		roomJID:   roomJID,
		clients:   make(map[string]*stream.Dispatcher),
		occupants: make(map[string]*fakeOccupant),
	}
}

func (srv *fakeMUCServer) set(fn func()) {
	srv.mu.Lock()
	fn()
	srv.mu.Unlock()
}

func (srv *fakeMUCServer) newClient(jidStr string, cfg Config) *testClient {
	srv.t.Helper()

	jd, err := jid.NewWithString(jidStr, true)
	require.NoError(srv.t, err)

	sender := &senderMock{}
	sender.SendElementFunc = func(ctx context.Context, elem stravaganza.Element) error {
		srv.route(ctx, jd, elem)
		return nil
	}
	disp := stream.NewDispatcher(sender, stream.Config{}, kitlog.NewNopLogger())
	hk := hook.NewHooks(kitlog.NewNopLogger())
	c := &testClient{
		jid:  jd,
		disp: disp,
		hk:   hk,
		svc:  New(disp, hk, cfg, kitlog.NewNopLogger()),
		rec:  newEventRecorder(hk),
	}
	require.NoError(srv.t, c.svc.Start(context.Background()))
	require.NoError(srv.t, disp.StreamEstablished(context.Background(), jd, nil))

	srv.set(func() { srv.clients[jd.String()] = disp })
	return c
}

func (srv *fakeMUCServer) route(ctx context.Context, from *jid.JID, elem stravaganza.Element) {
	var out []delivery

	srv.mu.Lock()
	switch stz := elem.(type) {
	case *stravaganza.Presence:
		out = srv.handlePresence(from, stz)
	case *stravaganza.IQ:
		out = srv.handleIQ(from, stz)
	case *stravaganza.Message:
		out = srv.handleMessage(from, stz)
	}
	srv.mu.Unlock()

	for _, d := range out {
		srv.mu.Lock()
		disp := srv.clients[d.to.String()]
		srv.mu.Unlock()
		if disp != nil {
			_ = disp.Dispatch(ctx, d.stanza)
		}
	}
}

func (srv *fakeMUCServer) handlePresence(from *jid.JID, pr *stravaganza.Presence) []delivery {
	to := pr.ToJID()
	if to.ToBareJID().String() != srv.roomJID.String() {
		return nil
	}
	nick := to.Resource()
	cur := srv.occupantByClient(from)

	if pr.Attribute(stravaganza.Type) == stravaganza.UnavailableType {
		if cur == nil {
			return nil
		}
		delete(srv.occupants, cur.nick)
		cur.role = mucmodel.NoRole
		return srv.broadcastLeave(cur, presenceOpts{})
	}
	if srv.joinErr != nil {
		return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(pr, *srv.joinErr)}}
	}
	if cur != nil {
		if cur.nick == nick {
			return srv.joinSequence(cur, false)
		}
		if _, taken := srv.occupants[nick]; taken {
			return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(pr, stanzaerror.Conflict)}}
		}
		oldNick := cur.nick
		delete(srv.occupants, oldNick)
		cur.nick = nick
		srv.occupants[nick] = cur

		var out []delivery
		for _, o := range srv.sortedOccupants() {
			out = append(out, delivery{
				to:     o.client,
				stanza: srv.presence(cur, oldNick, o.client, presenceOpts{typ: stravaganza.UnavailableType, newNick: nick, codes: []int{statusNickChanged}}),
			})
		}
		return append(out, srv.broadcastPresence(cur, presenceOpts{})...)
	}
	if _, taken := srv.occupants[nick]; taken {
		return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(pr, stanzaerror.Conflict)}}
	}
	occ := &fakeOccupant{
		nick:   nick,
		client: from,
		aff:    mucmodel.NoAffiliation,
		role:   mucmodel.Participant,
	}
	created := len(srv.occupants) == 0
	switch {
	case created:
		occ.aff = mucmodel.Owner
		occ.role = mucmodel.Moderator
	case srv.moderated:
		occ.role = mucmodel.Visitor
	}
	var out []delivery
	for _, o := range srv.sortedOccupants() {
		out = append(out, delivery{to: o.client, stanza: srv.presence(occ, occ.nick, o.client, presenceOpts{})})
	}
	srv.occupants[nick] = occ

	return append(out, srv.joinSequence(occ, created)...)
}

func (srv *fakeMUCServer) joinSequence(occ *fakeOccupant, created bool) []delivery {
	var out []delivery
	for _, o := range srv.sortedOccupants() {
		if o == occ {
			continue
		}
		out = append(out, delivery{to: occ.client, stanza: srv.presence(o, o.nick, occ.client, presenceOpts{})})
	}
	codes := []int{statusSelfPresence}
	if created {
		codes = append(codes, statusRoomCreated)
	}
	out = append(out, delivery{to: occ.client, stanza: srv.presence(occ, occ.nick, occ.client, presenceOpts{codes: codes})})

	if !srv.noSubject {
		out = append(out, delivery{
			to:     occ.client,
			stanza: xmpputil.MakeMessage(xmpputil.GroupChatType, srv.roomJID, occ.client, subjectElements(map[string]string{"": ""})),
		})
	}
	return out
}

func (srv *fakeMUCServer) handleIQ(from *jid.JID, iq *stravaganza.IQ) []delivery {
	if !iq.IsGet() && !iq.IsSet() {
		return nil
	}
	if iq.ChildNamespace("ping", pingNamespace) != nil {
		switch {
		case srv.dropPings:
			return nil
		case srv.pingErr != nil:
			return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(iq, *srv.pingErr)}}
		}
		return []delivery{{to: from, stanza: xmpputil.MakeResultIQ(iq, nil)}}
	}
	q := iq.ChildNamespace("query", mucAdminNamespace)
	if q == nil || q.Child("item") == nil {
		return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(iq, stanzaerror.ServiceUnavailable)}}
	}
	item := q.Child("item")

	var opts presenceOpts
	if actor := srv.occupantByClient(from); actor != nil {
		opts.actor = actor.nick
	}
	if reason := item.Child("reason"); reason != nil {
		opts.reason = reason.Text()
	}
	var out []delivery
	switch {
	case len(item.Attribute("role")) > 0:
		target := srv.occupants[item.Attribute("nick")]
		if target == nil {
			return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(iq, stanzaerror.ItemNotFound)}}
		}
		target.role = mucmodel.ParseRole(item.Attribute("role"))
		if target.role == mucmodel.NoRole {
			delete(srv.occupants, target.nick)
			opts.codes = []int{statusKicked}
			out = srv.broadcastLeave(target, opts)
		} else {
			out = srv.broadcastPresence(target, opts)
		}

	case len(item.Attribute("affiliation")) > 0:
		aff := mucmodel.ParseAffiliation(item.Attribute("affiliation"))
		for _, target := range srv.sortedOccupants() {
			if target.client.ToBareJID().String() != item.Attribute("jid") {
				continue
			}
			target.aff = aff
			if aff == mucmodel.Outcast {
				target.role = mucmodel.NoRole
				delete(srv.occupants, target.nick)
				opts.codes = []int{statusBanned}
				out = append(out, srv.broadcastLeave(target, opts)...)
				continue
			}
			out = append(out, srv.broadcastPresence(target, opts)...)
		}
	}
	return append(out, delivery{to: from, stanza: xmpputil.MakeResultIQ(iq, nil)})
}

func (srv *fakeMUCServer) handleMessage(from *jid.JID, msg *stravaganza.Message) []delivery {
	to := msg.ToJID()
	if to.ToBareJID().String() != srv.roomJID.String() {
		return []delivery{{to: to, stanza: msg}}
	}
	sender := srv.occupantByClient(from)
	if sender == nil {
		return nil
	}
	switch msg.Attribute(stravaganza.Type) {
	case xmpputil.GroupChatType:
		if srv.msgErr != nil {
			return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(msg, *srv.msgErr)}}
		}
		senderJID, _ := jid.New(srv.roomJID.Node(), srv.roomJID.Domain(), sender.nick, true)

		var out []delivery
		for _, o := range srv.sortedOccupants() {
			reflected, err := stravaganza.NewBuilderFromElement(msg).
				WithAttribute(stravaganza.From, senderJID.String()).
				WithAttribute(stravaganza.To, o.client.String()).
				BuildMessage()
			require.NoError(srv.t, err)
			out = append(out, delivery{to: o.client, stanza: reflected})
		}
		return out

	case stravaganza.ChatType:
		target := srv.occupants[to.Resource()]
		if target == nil {
			return []delivery{{to: from, stanza: xmpputil.MakeErrorStanza(msg, stanzaerror.ItemNotFound)}}
		}
		senderJID, _ := jid.New(srv.roomJID.Node(), srv.roomJID.Domain(), sender.nick, true)
		fwd, err := stravaganza.NewBuilderFromElement(msg).
			WithAttribute(stravaganza.From, senderJID.String()).
			WithAttribute(stravaganza.To, target.client.String()).
			BuildMessage()
		require.NoError(srv.t, err)
		return []delivery{{to: target.client, stanza: fwd}}

	case stravaganza.NormalType:
		if x := msg.ChildNamespace("x", mucUserNamespace); x != nil && x.Child("invite") != nil {
			invite := x.Child("invite")
			inviteeJID, _ := jid.NewWithString(invite.Attribute(stravaganza.To), true)

			ib := stravaganza.NewBuilder("invite").
				WithAttribute(stravaganza.From, from.ToBareJID().String())
			if reason := invite.Child("reason"); reason != nil {
				ib.WithChild(reason)
			}
			fwd := xmpputil.MakeMessage(stravaganza.NormalType, srv.roomJID, inviteeJID, []stravaganza.Element{
				stravaganza.NewBuilder("x").
					WithAttribute(stravaganza.Namespace, mucUserNamespace).
					WithChild(ib.Build()).
					Build(),
			})
			return []delivery{{to: inviteeJID, stanza: fwd}}
		}
		form := parseDataForm(msg)
		if form == nil || form.formType() != mucRequestForm {
			return nil
		}
		if allow, ok := form.fields[fieldRequestAllow]; ok {
			target := srv.occupants[form.fields[fieldRoomNick]]
			if target == nil || !boolValue(allow) {
				return nil
			}
			target.role = mucmodel.ParseRole(form.fields[fieldRole])
			return srv.broadcastPresence(target, presenceOpts{actor: sender.nick})
		}
		approval := &dataForm{
			typ: "form",
			fields: map[string]string{
				"FORM_TYPE":       mucRequestForm,
				fieldRole:         form.fields[fieldRole],
				fieldJID:          from.ToBareJID().String(),
				fieldRoomNick:     sender.nick,
				fieldRequestAllow: "false",
			},
		}
		var out []delivery
		for _, o := range srv.sortedOccupants() {
			if o.role != mucmodel.Moderator {
				continue
			}
			out = append(out, delivery{
				to:     o.client,
				stanza: xmpputil.MakeMessage(stravaganza.NormalType, srv.roomJID, o.client, []stravaganza.Element{approval.element()}),
			})
		}
		return out
	}
	return nil
}

func (srv *fakeMUCServer) broadcastPresence(target *fakeOccupant, opts presenceOpts) []delivery {
	var out []delivery
	for _, o := range srv.sortedOccupants() {
		oOpts := opts
		if o == target {
			oOpts.codes = append([]int{statusSelfPresence}, opts.codes...)
		}
		out = append(out, delivery{to: o.client, stanza: srv.presence(target, target.nick, o.client, oOpts)})
	}
	return out
}

// broadcastLeave must be called once target is no longer among room occupants.
func (srv *fakeMUCServer) broadcastLeave(target *fakeOccupant, opts presenceOpts) []delivery {
	opts.typ = stravaganza.UnavailableType

	var out []delivery
	for _, o := range srv.sortedOccupants() {
		out = append(out, delivery{to: o.client, stanza: srv.presence(target, target.nick, o.client, opts)})
	}
	selfOpts := opts
	selfOpts.codes = append([]int{statusSelfPresence}, opts.codes...)
	return append(out, delivery{to: target.client, stanza: srv.presence(target, target.nick, target.client, selfOpts)})
}

func (srv *fakeMUCServer) presence(o *fakeOccupant, nick string, to *jid.JID, opts presenceOpts) *stravaganza.Presence {
	item := stravaganza.NewBuilder("item").
		WithAttribute("affiliation", string(o.aff)).
		WithAttribute("role", string(o.role)).
		WithAttribute("jid", o.client.String())
	if len(opts.newNick) > 0 {
		item.WithAttribute("nick", opts.newNick)
	}
	if len(opts.actor) > 0 {
		item.WithChild(stravaganza.NewBuilder("actor").
			WithAttribute("nick", opts.actor).
			Build(),
		)
	}
	if len(opts.reason) > 0 {
		item.WithChild(stravaganza.NewBuilder("reason").
			WithText(opts.reason).
			Build(),
		)
	}
	x := stravaganza.NewBuilder("x").
		WithAttribute(stravaganza.Namespace, mucUserNamespace).
		WithChild(item.Build())
	for _, code := range opts.codes {
		x.WithChild(stravaganza.NewBuilder("status").
			WithAttribute("code", strconv.Itoa(code)).
			Build(),
		)
	}
	fromJID, _ := jid.New(srv.roomJID.Node(), srv.roomJID.Domain(), nick, true)

	b := stravaganza.NewPresenceBuilder().
		WithAttribute(stravaganza.From, fromJID.String()).
		WithAttribute(stravaganza.To, to.String())
	if len(opts.typ) > 0 {
		b.WithAttribute(stravaganza.Type, opts.typ)
	}
	pr, err := b.WithChild(x.Build()).BuildPresence()
	require.NoError(srv.t, err)
	return pr
}

func (srv *fakeMUCServer) occupantByClient(client *jid.JID) *fakeOccupant {
	for _, o := range srv.occupants {
		if o.client.String() == client.String() {
			return o
		}
	}
	return nil
}

func (srv *fakeMUCServer) sortedOccupants() []*fakeOccupant {
	nicks := make([]string, 0, len(srv.occupants))
	for nick := range srv.occupants {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)

	occupants := make([]*fakeOccupant, 0, len(nicks))
	for _, nick := range nicks {
		occupants = append(occupants, srv.occupants[nick])
	}
	return occupants
}

func testConfig() Config {
	return Config{
		RequestTimeout: time.Second,
		HistoryGrace:   time.Second,
		AutoRejoin:     true,
	}
}

func testRoomJID() *jid.JID {
	roomJID, _ := jid.NewWithString(testRoom, true)
	return roomJID
}

func joinRoom(t *testing.T, c *testClient, nick string) *Room {
	t.Helper()

	r, joinCh := c.svc.Join(context.Background(), testRoomJID(), nick, JoinOptions{})
	require.NotNil(t, r)
	require.NoError(t, <-joinCh)
	require.Equal(t, mucmodel.Active, r.State())
	return r
}

func groupChatBody(c *testClient, body string) *stravaganza.Message {
	msg, _ := stravaganza.NewMessageBuilder().
		WithAttribute(stravaganza.From, c.jid.String()).
		WithAttribute(stravaganza.To, testRoom).
		WithChild(stravaganza.NewBuilder("body").
			WithText(body).
			Build(),
		).
		BuildMessage()
	return msg
}

func delayedGroupChat(t *testing.T, nick string, to *jid.JID, body string) *stravaganza.Message {
	t.Helper()

	fromJID, _ := jid.New("coven", "chat.jackal.im", nick, true)
	msg, err := stravaganza.NewMessageBuilder().
		WithAttribute(stravaganza.From, fromJID.String()).
		WithAttribute(stravaganza.To, to.String()).
		WithAttribute(stravaganza.Type, xmpputil.GroupChatType).
		WithChild(stravaganza.NewBuilder("body").
			WithText(body).
			Build(),
		).
		WithChild(stravaganza.NewBuilder("delay").
			WithAttribute(stravaganza.Namespace, "urn:xmpp:delay").
			WithAttribute("stamp", "2021-02-15T15:00:00Z").
			Build(),
		).
		BuildMessage()
	require.NoError(t, err)
	return msg
}

// setupSendingService returns an established service whose outgoing stanzas are handed to send.
func setupSendingService(t *testing.T, send func(disp *stream.Dispatcher) error) (*Service, *stream.Dispatcher, *eventRecorder) {
	t.Helper()

	jd, _ := jid.NewWithString("firstwitch@jackal.im/yard", true)

	var disp *stream.Dispatcher
	sender := &senderMock{}
	sender.SendElementFunc = func(_ context.Context, _ stravaganza.Element) error {
		return send(disp)
	}
	disp = stream.NewDispatcher(sender, stream.Config{}, kitlog.NewNopLogger())
	hk := hook.NewHooks(kitlog.NewNopLogger())
	rec := newEventRecorder(hk)

	cfg := testConfig()
	cfg.AutoRejoin = false
	svc := New(disp, hk, cfg, kitlog.NewNopLogger())
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, disp.StreamEstablished(context.Background(), jd, nil))
	return svc, disp, rec
}

func errReason(r stanzaerror.Reason) *stanzaerror.Reason { return &r }
