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

package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/hook"
	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
	"github.com/ortuman/jackal-client/pkg/stream"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
	"github.com/samber/lo"
)

const (
	rosterNamespace    = "jabber:iq:roster"
	rosterVerNamespace = "urn:xmpp:features:rosterver"
)

var subscriptionPresenceEvents = map[string]string{
	stravaganza.SubscribeType:    hook.RosterSubscribe,
	stravaganza.SubscribedType:   hook.RosterSubscribed,
	stravaganza.UnsubscribeType:  hook.RosterUnsubscribe,
	stravaganza.UnsubscribedType: hook.RosterUnsubscribed,
}

// ErrInvalidDocument is returned by Import when the document cannot be loaded.
var ErrInvalidDocument = errors.New("roster: invalid document")

// EntryUpdate describes a roster entry modification request.
type EntryUpdate struct {
	// Name is the new entry name. A nil value keeps the current one.
	Name *string

	// AddGroups and RemoveGroups are applied over the entry current groups.
	AddGroups    []string
	RemoveGroups []string
}

type event struct {
	name string
	inf  *hook.RosterInfo
}

// Roster keeps a local mirror of the account roster synchronized with the server.
type Roster struct {
	disp   Dispatcher
	hk     *hook.Hooks
	cfg    Config
	logger kitlog.Logger

	startOnce sync.Once

	// mu is held for every whole snapshot or push merge, and for store reads.
	mu       sync.Mutex
	st       *store
	started  bool
	fetching bool
	dirty    map[string]struct{}
	dirtyVer bool
}

// New returns a new initialized Roster instance.
func New(disp Dispatcher, hk *hook.Hooks, cfg Config, logger kitlog.Logger) *Roster {
	return &Roster{
		disp:   disp,
		hk:     hk,
		cfg:    cfg,
		logger: kitlog.With(logger, "module", "roster"),
		st:     newStore(),
	}
}

// Start registers roster stanza handlers into the dispatcher.
func (r *Roster) Start(_ context.Context) error {
	r.startOnce.Do(func() {
		r.disp.OnBeforeStreamEstablished(r.OnStreamEstablished)
	})
	r.disp.RegisterIQHandler(stravaganza.SetType, "query", rosterNamespace, r.HandlePush)
	for typ := range subscriptionPresenceEvents {
		r.disp.RegisterPresenceHandler(typ, nil, r.handleSubscriptionPresence)
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	level.Info(r.logger).Log("msg", "started roster module")
	return nil
}

// Stop unregisters roster stanza handlers.
func (r *Roster) Stop(_ context.Context) error {
	r.disp.UnregisterIQHandler(stravaganza.SetType, "query", rosterNamespace)
	for typ := range subscriptionPresenceEvents {
		r.disp.UnregisterPresenceHandler(typ, nil)
	}
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()

	level.Info(r.logger).Log("msg", "stopped roster module")
	return nil
}

// OnStreamEstablished requests the roster snapshot and merges it into the local store.
// Pushes arriving while the request is in flight are applied straight away and win over the snapshot.
func (r *Roster) OnStreamEstablished(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	var ver *string
	if r.cfg.Versioning && r.disp.HasFeature("ver", rosterVerNamespace) {
		v := r.st.ver
		ver = &v
	}
	r.fetching = true
	r.dirty = make(map[string]struct{})
	r.dirtyVer = false
	r.mu.Unlock()

	ctx, cancel := r.requestContext(ctx)
	defer cancel()

	localJID := r.disp.LocalJID()
	iq, err := xmpputil.MakeIQ(stravaganza.GetType, localJID, localJID.ToBareJID(), queryElement(ver))
	if err != nil {
		r.endFetch()
		reportSnapshot("failed")
		return fmt.Errorf("roster: failed to build roster request: %w", err)
	}
	resp, err := r.disp.SendIQ(ctx, iq)
	if err != nil {
		r.endFetch()
		reportSnapshot("failed")
		return fmt.Errorf("roster: failed to fetch roster: %w", err)
	}
	query := resp.ChildNamespace("query", rosterNamespace)
	if query == nil {
		// server will deliver any change as pushes
		r.endFetch()
		reportSnapshot("empty")

		level.Debug(r.logger).Log("msg", "roster snapshot not modified", "ver", r.Version())
		r.fire(ctx, []event{{name: hook.RosterInitialReceived, inf: &hook.RosterInfo{}}})
		return nil
	}
	updates, err := decodeQuery(query)
	if err != nil {
		r.endFetch()
		reportSnapshot("failed")
		return err
	}
	evs := r.mergeSnapshot(updates, query.Attribute("ver"))
	evs = append(evs, event{name: hook.RosterInitialReceived, inf: &hook.RosterInfo{}})

	reportSnapshot("merged")
	level.Info(r.logger).Log("msg", "roster snapshot merged", "items", len(updates), "ver", r.Version())

	r.fire(ctx, evs)
	return nil
}

// HandlePush processes a roster push iq.
// Pushes not sent by the account itself are rejected with a forbidden stanza error and leave the store untouched.
func (r *Roster) HandlePush(ctx context.Context, iq *stravaganza.IQ) error {
	if !r.isAuthorizedPusher(iq.FromJID()) {
		reportPush("rejected")
		level.Warn(r.logger).Log("msg", "rejected roster push", "from", iq.Attribute(stravaganza.From))
		return stream.NewStanzaError("auth", stanzaerror.Forbidden, "")
	}
	query := iq.ChildNamespace("query", rosterNamespace)
	if query == nil {
		reportPush("rejected")
		return stream.NewStanzaError("modify", stanzaerror.BadRequest, "")
	}
	updates, err := decodeQuery(query)
	if err != nil {
		reportPush("rejected")
		return stream.NewStanzaError("modify", stanzaerror.BadRequest, err.Error())
	}
	evs := r.mergePush(updates, query.Attribute("ver"))
	reportPush("accepted")

	if err := r.disp.Send(ctx, xmpputil.MakeResultIQ(iq, nil)); err != nil {
		level.Warn(r.logger).Log("msg", "failed to acknowledge roster push", "err", err)
	}
	r.fire(ctx, evs)
	return nil
}

// SetEntry requests the server to create or modify the roster entry addressed by jd.
// Groups are computed from the entry current groups, so that concurrent pushes are not overridden.
func (r *Roster) SetEntry(ctx context.Context, jd *jid.JID, upd EntryUpdate) error {
	var (
		name   string
		groups []string
	)
	r.mu.Lock()
	if itm := r.st.get(jd.ToBareJID().String()); itm != nil {
		name = itm.Name()
		groups = itm.Groups()
	}
	r.mu.Unlock()

	if upd.Name != nil {
		name = *upd.Name
	}
	groups = lo.Uniq(append(lo.Without(groups, upd.RemoveGroups...), upd.AddGroups...))
	sort.Strings(groups)

	return r.sendSet(ctx, encodeRosterItem(jd, name, "", groups))
}

// RemoveEntry requests the server to remove the roster entry addressed by jd.
func (r *Roster) RemoveEntry(ctx context.Context, jd *jid.JID) error {
	return r.sendSet(ctx, encodeRosterItem(jd, "", rostermodel.Remove, nil))
}

// Approve approves a subscription request from jd, or pre-approves a future one.
func (r *Roster) Approve(ctx context.Context, jd *jid.JID) error {
	return r.sendPresence(ctx, jd, stravaganza.SubscribedType)
}

// Subscribe requests a presence subscription to jd.
func (r *Roster) Subscribe(ctx context.Context, jd *jid.JID) error {
	return r.sendPresence(ctx, jd, stravaganza.SubscribeType)
}

// Unsubscribe cancels the presence subscription to jd.
func (r *Roster) Unsubscribe(ctx context.Context, jd *jid.JID) error {
	return r.sendPresence(ctx, jd, stravaganza.UnsubscribeType)
}

// Item returns the roster item addressed by jd, or nil if there is none.
func (r *Roster) Item(jd *jid.JID) *rostermodel.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.get(jd.ToBareJID().String())
}

// Items returns all roster items sorted by address.
func (r *Roster) Items() []*rostermodel.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.list()
}

// Groups returns the sorted names of all non empty groups.
func (r *Roster) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.groupNames()
}

// GroupMembers returns the items belonging to group sorted by address.
func (r *Roster) GroupMembers(group string) []*rostermodel.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.members(group)
}

// Version returns the current roster version token.
func (r *Roster) Version() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.ver
}

// Export returns the persistent representation of the whole roster.
func (r *Roster) Export() rostermodel.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := rostermodel.Document{
		Items: make(map[string]rostermodel.DocumentItem, len(r.st.items)),
		Ver:   r.st.ver,
	}
	for key, itm := range r.st.items {
		doc.Items[key] = rostermodel.NewDocumentItem(itm.State())
	}
	return doc
}

// Import replaces the whole roster with doc content. No event is fired.
func (r *Roster) Import(doc rostermodel.Document) error {
	items := make(map[string]*rostermodel.Item, len(doc.Items))
	for jidStr, di := range doc.Items {
		jd, err := jid.NewWithString(jidStr, false)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		if len(jd.Domain()) == 0 {
			return fmt.Errorf("%w: invalid item address '%s'", ErrInvalidDocument, jidStr)
		}
		itm := rostermodel.NewItem(jd)
		itm.Update(di.State())
		items[itm.JID().String()] = itm
	}
	r.mu.Lock()
	r.st.reset(items, doc.Ver)
	r.mu.Unlock()
	return nil
}

func (r *Roster) handleSubscriptionPresence(ctx context.Context, presence *stravaganza.Presence) error {
	name, ok := subscriptionPresenceEvents[presence.Attribute(stravaganza.Type)]
	if !ok {
		return nil
	}
	inf := &hook.RosterInfo{Presence: presence}
	if fromJID := presence.FromJID(); fromJID != nil {
		inf.Item = r.Item(fromJID)
	}
	r.fire(ctx, []event{{name: name, inf: inf}})
	return nil
}

func (r *Roster) mergeSnapshot(updates []itemUpdate, ver string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []change

	seen := make(map[string]struct{}, len(updates))
	for _, upd := range updates {
		key := upd.jd.String()
		seen[key] = struct{}{}
		if _, ok := r.dirty[key]; ok || upd.remove {
			continue
		}
		changes = append(changes, r.st.apply(upd.jd, upd.st))
	}
	for _, key := range r.st.keys() {
		if _, ok := seen[key]; ok {
			continue
		}
		if _, ok := r.dirty[key]; ok {
			continue
		}
		if c, ok := r.st.remove(key); ok {
			changes = append(changes, c)
		}
	}
	if len(ver) > 0 && !r.dirtyVer {
		r.st.ver = ver
	}
	r.fetching = false
	r.dirty = nil
	r.dirtyVer = false

	return changeEvents(changes)
}

func (r *Roster) mergePush(updates []itemUpdate, ver string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []change
	for _, upd := range updates {
		key := upd.jd.String()
		if r.fetching {
			r.dirty[key] = struct{}{}
		}
		if upd.remove {
			if c, ok := r.st.remove(key); ok {
				changes = append(changes, c)
			}
			continue
		}
		changes = append(changes, r.st.apply(upd.jd, upd.st))
	}
	if len(ver) > 0 {
		r.st.ver = ver
		if r.fetching {
			r.dirtyVer = true
		}
	}
	return changeEvents(changes)
}

func (r *Roster) endFetch() {
	r.mu.Lock()
	r.fetching = false
	r.dirty = nil
	r.dirtyVer = false
	r.mu.Unlock()
}

func (r *Roster) isAuthorizedPusher(fromJID *jid.JID) bool {
	if fromJID == nil || len(fromJID.String()) == 0 {
		return true
	}
	localJID := r.disp.LocalJID()
	if localJID == nil {
		return false
	}
	return fromJID.String() == localJID.ToBareJID().String()
}

func (r *Roster) sendSet(ctx context.Context, item stravaganza.Element) error {
	ctx, cancel := r.requestContext(ctx)
	defer cancel()

	localJID := r.disp.LocalJID()
	if localJID == nil {
		return stream.ErrStreamNotEstablished
	}
	iq, err := xmpputil.MakeIQ(stravaganza.SetType, localJID, localJID.ToBareJID(), queryElement(nil, item))
	if err != nil {
		return fmt.Errorf("roster: failed to build roster update: %w", err)
	}
	if _, err := r.disp.SendIQ(ctx, iq); err != nil {
		return fmt.Errorf("roster: failed to update roster: %w", err)
	}
	return nil
}

func (r *Roster) sendPresence(ctx context.Context, jd *jid.JID, typ string) error {
	localJID := r.disp.LocalJID()
	if localJID == nil {
		return stream.ErrStreamNotEstablished
	}
	return r.disp.Send(ctx, xmpputil.MakePresence(localJID, jd.ToBareJID(), typ, nil))
}

func (r *Roster) fire(ctx context.Context, evs []event) {
	for _, ev := range evs {
		_ = r.hk.Run(ctx, ev.name, &hook.ExecutionContext{
			Info:   ev.inf,
			Sender: r,
		})
	}
}

func (r *Roster) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || r.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.RequestTimeout)
}

func changeEvents(changes []change) []event {
	var evs []event
	for _, c := range changes {
		itm := c.item
		switch {
		case c.removed:
			evs = append(evs, groupEvents(itm, c)...)
			evs = append(evs, event{name: hook.RosterEntryRemoved, inf: &hook.RosterInfo{Item: itm}})

		case c.created:
			evs = append(evs, event{name: hook.RosterEntryAdded, inf: &hook.RosterInfo{Item: itm}})
			evs = append(evs, groupEvents(itm, c)...)

		default:
			if c.diff.NameChanged {
				evs = append(evs, event{name: hook.RosterEntryNameChanged, inf: &hook.RosterInfo{Item: itm, OldName: c.diff.OldName}})
			}
			if c.diff.SubscriptionChanged {
				evs = append(evs, event{name: hook.RosterEntrySubscriptionChanged, inf: &hook.RosterInfo{Item: itm}})
			}
			evs = append(evs, groupEvents(itm, c)...)
		}
	}
	return evs
}

func groupEvents(itm *rostermodel.Item, c change) []event {
	var evs []event
	for _, g := range c.diff.AddedGroups {
		if _, ok := c.newGroups[g]; ok {
			evs = append(evs, event{name: hook.RosterGroupAdded, inf: &hook.RosterInfo{Group: g}})
		}
		evs = append(evs, event{name: hook.RosterEntryAddedToGroup, inf: &hook.RosterInfo{Item: itm, Group: g}})
	}
	for _, g := range c.diff.RemovedGroups {
		evs = append(evs, event{name: hook.RosterEntryRemovedFromGroup, inf: &hook.RosterInfo{Item: itm, Group: g}})
		if _, ok := c.prunedGroups[g]; ok {
			evs = append(evs, event{name: hook.RosterGroupRemoved, inf: &hook.RosterInfo{Group: g}})
		}
	}
	return evs
}
