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

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
)

const defaultRequestTimeout = time.Second * 15

type iqKey struct {
	typ, name, ns string
}

type pendingRequest struct {
	toJID *jid.JID
	ns    string
	t0    time.Time
	ch    chan *stravaganza.IQ
}

// Dispatcher routes inbound stanzas to their registered handlers and correlates outbound iq requests
// with their responses.
type Dispatcher struct {
	sender     Sender
	reqTimeout time.Duration
	logger     kitlog.Logger

	mu           sync.RWMutex
	localJID     *jid.JID
	features     stravaganza.Element
	established  bool
	iqHnd        map[iqKey]IQHandler
	prHnd        map[string]map[string]PresenceHandler
	msgHnd       map[string]map[string]MessageHandler
	beforeEstHnd []LifecycleHandler
	endedHnd     []LifecycleHandler
	pending      map[string]*pendingRequest
}

// NewDispatcher returns a new initialized Dispatcher instance writing outbound elements to sender.
func NewDispatcher(sender Sender, cfg Config, logger kitlog.Logger) *Dispatcher {
	reqTimeout := cfg.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = defaultRequestTimeout
	}
	return &Dispatcher{
		sender:     sender,
		reqTimeout: reqTimeout,
		logger:     kitlog.With(logger, "module", "stream"),
		iqHnd:      make(map[iqKey]IQHandler),
		prHnd:      make(map[string]map[string]PresenceHandler),
		msgHnd:     make(map[string]map[string]MessageHandler),
		pending:    make(map[string]*pendingRequest),
	}
}

// RegisterIQHandler registers h as the handler of get or set iqs whose payload matches name and namespace.
func (d *Dispatcher) RegisterIQHandler(typ, name, ns string, h IQHandler) {
	d.mu.Lock()
	d.iqHnd[iqKey{typ: typ, name: name, ns: ns}] = h
	d.mu.Unlock()
}

// UnregisterIQHandler removes a previously registered iq handler.
func (d *Dispatcher) UnregisterIQHandler(typ, name, ns string) {
	d.mu.Lock()
	delete(d.iqHnd, iqKey{typ: typ, name: name, ns: ns})
	d.mu.Unlock()
}

// RegisterPresenceHandler registers h as the handler of presences of type typ sent by from.
// A nil from registers a wildcard handler. On dispatch, a full address handler is preferred over a bare
// address one, which in turn is preferred over the wildcard.
func (d *Dispatcher) RegisterPresenceHandler(typ string, from *jid.JID, h PresenceHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	typ = presenceType(typ)
	if d.prHnd[typ] == nil {
		d.prHnd[typ] = make(map[string]PresenceHandler)
	}
	d.prHnd[typ][senderKey(from)] = h
}

// UnregisterPresenceHandler removes a previously registered presence handler.
func (d *Dispatcher) UnregisterPresenceHandler(typ string, from *jid.JID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	typ = presenceType(typ)
	delete(d.prHnd[typ], senderKey(from))
	if len(d.prHnd[typ]) == 0 {
		delete(d.prHnd, typ)
	}
}

// RegisterMessageHandler registers h as the handler of messages of type typ sent by from.
// Sender lookup follows the same rules as RegisterPresenceHandler.
func (d *Dispatcher) RegisterMessageHandler(typ string, from *jid.JID, h MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	typ = messageType(typ)
	if d.msgHnd[typ] == nil {
		d.msgHnd[typ] = make(map[string]MessageHandler)
	}
	d.msgHnd[typ][senderKey(from)] = h
}

// UnregisterMessageHandler removes a previously registered message handler.
func (d *Dispatcher) UnregisterMessageHandler(typ string, from *jid.JID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	typ = messageType(typ)
	delete(d.msgHnd[typ], senderKey(from))
	if len(d.msgHnd[typ]) == 0 {
		delete(d.msgHnd, typ)
	}
}

// OnBeforeStreamEstablished registers fn to be run, in registration order, every time a stream gets established
// and before StreamEstablished returns.
func (d *Dispatcher) OnBeforeStreamEstablished(fn LifecycleHandler) {
	d.mu.Lock()
	d.beforeEstHnd = append(d.beforeEstHnd, fn)
	d.mu.Unlock()
}

// OnStreamEnded registers fn to be run every time the stream goes away.
func (d *Dispatcher) OnStreamEnded(fn LifecycleHandler) {
	d.mu.Lock()
	d.endedHnd = append(d.endedHnd, fn)
	d.mu.Unlock()
}

// StreamEstablished marks the stream as established for localJID, recording the stream features
// advertised by the server. Every before-established handler is run and their failures returned joined.
func (d *Dispatcher) StreamEstablished(ctx context.Context, localJID *jid.JID, features stravaganza.Element) error {
	d.mu.Lock()
	d.localJID = localJID
	d.features = features
	d.established = true
	handlers := make([]LifecycleHandler, len(d.beforeEstHnd))
	copy(handlers, d.beforeEstHnd)
	d.mu.Unlock()

	level.Info(d.logger).Log("msg", "stream established", "jid", localJID.String())

	var errs []error
	for _, h := range handlers {
		if err := h(ctx); err != nil {
			level.Warn(d.logger).Log("msg", "failed to run stream established handler", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StreamEnded marks the stream as gone. In-flight requests fail with ErrStreamEnded.
func (d *Dispatcher) StreamEnded(ctx context.Context) error {
	d.mu.Lock()
	d.established = false
	pending := d.pending
	d.pending = make(map[string]*pendingRequest)
	handlers := make([]LifecycleHandler, len(d.endedHnd))
	copy(handlers, d.endedHnd)
	d.mu.Unlock()

	for _, req := range pending {
		close(req.ch)
	}
	level.Info(d.logger).Log("msg", "stream ended", "pending_requests", len(pending))

	var errs []error
	for _, h := range handlers {
		if err := h(ctx); err != nil {
			level.Warn(d.logger).Log("msg", "failed to run stream ended handler", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsEstablished tells whether the stream is currently established.
func (d *Dispatcher) IsEstablished() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.established
}

// LocalJID returns the full address bound to the current stream, or nil if no stream was ever established.
func (d *Dispatcher) LocalJID() *jid.JID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.localJID
}

// HasFeature tells whether the server advertised a stream feature named name under namespace ns.
func (d *Dispatcher) HasFeature(name, ns string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.features == nil {
		return false
	}
	return d.features.ChildNamespace(name, ns) != nil
}

// Send writes stanza to the stream without waiting for any response.
func (d *Dispatcher) Send(ctx context.Context, stanza stravaganza.Stanza) error {
	if !d.IsEstablished() {
		return ErrStreamNotEstablished
	}
	if err := d.sender.SendElement(ctx, stanza); err != nil {
		return err
	}
	reportOutgoingRequest(stanza.Name(), stanza.Attribute(stravaganza.Type))
	return nil
}

// SendIQ sends a get or set iq and waits for its response.
// An error typed response is returned as *StanzaError. If ctx carries no deadline the configured
// request timeout is applied, and its expiry is reported as ErrRequestTimeout.
func (d *Dispatcher) SendIQ(ctx context.Context, iq *stravaganza.IQ) (*stravaganza.IQ, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.reqTimeout)
		defer cancel()
	}
	id := iq.Attribute(stravaganza.ID)
	req := &pendingRequest{
		toJID: iq.ToJID(),
		ns:    payloadNamespace(iq),
		t0:    time.Now(),
		ch:    make(chan *stravaganza.IQ, 1),
	}
	d.mu.Lock()
	if !d.established {
		d.mu.Unlock()
		return nil, ErrStreamNotEstablished
	}
	d.pending[id] = req
	d.mu.Unlock()

	defer d.removePending(id, req)

	if err := d.sender.SendElement(ctx, iq); err != nil {
		return nil, err
	}
	reportOutgoingRequest(iq.Name(), iq.Attribute(stravaganza.Type))

	select {
	case resp, ok := <-req.ch:
		if !ok {
			return nil, ErrStreamEnded
		}
		reportOutgoingRequestDuration(req.ns, resp.Attribute(stravaganza.Type), time.Since(req.t0).Seconds())
		if resp.IsError() {
			return nil, ErrorFromStanza(resp)
		}
		return resp, nil

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reportOutgoingRequestTimeout(req.ns)
			level.Debug(d.logger).Log("msg", "iq request timeout", "id", id, "ns", req.ns)
			return nil, ErrRequestTimeout
		}
		return nil, ctx.Err()
	}
}

// Dispatch processes an element received over the stream.
func (d *Dispatcher) Dispatch(ctx context.Context, elem stravaganza.Element) error {
	t0 := time.Now()

	stanza, err := d.toStanza(elem)
	if err != nil {
		level.Debug(d.logger).Log("msg", "discarded inbound element", "name", elem.Name(), "err", err)
		return err
	}
	switch stz := stanza.(type) {
	case *stravaganza.IQ:
		err = d.dispatchIQ(ctx, stz)
	case *stravaganza.Presence:
		err = d.dispatchPresence(ctx, stz)
	case *stravaganza.Message:
		err = d.dispatchMessage(ctx, stz)
	}
	reportIncomingRequest(
		stanza.Name(),
		stanza.Attribute(stravaganza.Type),
		time.Since(t0).Seconds(),
	)
	return err
}

func (d *Dispatcher) dispatchIQ(ctx context.Context, iq *stravaganza.IQ) error {
	if iq.IsResult() || iq.IsError() {
		d.resolvePending(iq)
		return nil
	}
	key := iqKey{typ: iq.Attribute(stravaganza.Type)}
	if payload := firstChild(iq); payload != nil {
		key.name = payload.Name()
		key.ns = payload.Attribute(stravaganza.Namespace)
	}
	d.mu.RLock()
	h := d.iqHnd[key]
	d.mu.RUnlock()

	if h == nil {
		return d.Send(ctx, xmpputil.MakeErrorStanza(iq, stanzaerror.ServiceUnavailable))
	}
	err := h(ctx, iq)
	if err == nil {
		return nil
	}
	var se *StanzaError
	if errors.As(err, &se) {
		if sErr := d.Send(ctx, xmpputil.MakeErrorStanza(iq, se.Reason)); sErr != nil {
			return sErr
		}
		return err
	}
	level.Warn(d.logger).Log("msg", "failed to process iq", "ns", key.ns, "err", err)
	_ = d.Send(ctx, xmpputil.MakeErrorStanza(iq, stanzaerror.InternalServerError))
	return err
}

func (d *Dispatcher) dispatchPresence(ctx context.Context, presence *stravaganza.Presence) error {
	typ := presenceType(presence.Attribute(stravaganza.Type))
	fromJID := presence.FromJID()

	d.mu.RLock()
	h := lookupHandler(d.prHnd[typ], fromJID)
	d.mu.RUnlock()

	if h == nil {
		level.Debug(d.logger).Log("msg", "unhandled presence", "type", typ, "from", jidString(fromJID))
		return nil
	}
	return h(ctx, presence)
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, message *stravaganza.Message) error {
	typ := messageType(message.Attribute(stravaganza.Type))
	fromJID := message.FromJID()

	d.mu.RLock()
	h := lookupHandler(d.msgHnd[typ], fromJID)
	d.mu.RUnlock()

	if h == nil {
		level.Debug(d.logger).Log("msg", "unhandled message", "type", typ, "from", jidString(fromJID))
		return nil
	}
	return h(ctx, message)
}

func (d *Dispatcher) resolvePending(iq *stravaganza.IQ) {
	id := iq.Attribute(stravaganza.ID)

	d.mu.Lock()
	req := d.pending[id]
	if req == nil || !d.isExpectedResponder(req.toJID, iq.FromJID()) {
		d.mu.Unlock()
		level.Debug(d.logger).Log("msg", "discarded unexpected iq response", "id", id)
		return
	}
	delete(d.pending, id)
	d.mu.Unlock()

	req.ch <- iq
}

func (d *Dispatcher) removePending(id string, req *pendingRequest) {
	d.mu.Lock()
	if d.pending[id] == req {
		delete(d.pending, id)
	}
	d.mu.Unlock()
}

// isExpectedResponder must be called while holding d.mu.
func (d *Dispatcher) isExpectedResponder(toJID, fromJID *jid.JID) bool {
	var localBare string
	if d.localJID != nil {
		localBare = d.localJID.ToBareJID().String()
	}
	to := jidString(toJID)
	from := jidString(fromJID)
	if len(to) == 0 || to == localBare {
		if len(from) == 0 || from == localBare {
			return true
		}
		return d.localJID != nil && from == d.localJID.String()
	}
	return to == from
}

func (d *Dispatcher) toStanza(elem stravaganza.Element) (stravaganza.Stanza, error) {
	switch stz := elem.(type) {
	case *stravaganza.IQ:
		return stz, nil
	case *stravaganza.Presence:
		return stz, nil
	case *stravaganza.Message:
		return stz, nil
	}
	b := stravaganza.NewBuilderFromElement(elem)

	// stanzas with no addressing come from the account itself
	if localJID := d.LocalJID(); localJID != nil {
		if len(elem.Attribute(stravaganza.From)) == 0 {
			b.WithAttribute(stravaganza.From, localJID.ToBareJID().String())
		}
		if len(elem.Attribute(stravaganza.To)) == 0 {
			b.WithAttribute(stravaganza.To, localJID.String())
		}
	}
	var (
		stanza stravaganza.Stanza
		err    error
	)
	switch elem.Name() {
	case "iq":
		stanza, err = b.BuildIQ()
	case "presence":
		stanza, err = b.BuildPresence()
	case "message":
		stanza, err = b.BuildMessage()
	default:
		return nil, fmt.Errorf("%w: unexpected element %s", ErrMalformedStanza, elem.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStanza, err)
	}
	return stanza, nil
}

func lookupHandler[H any](handlers map[string]H, fromJID *jid.JID) H {
	if fromJID != nil {
		if h, ok := handlers[fromJID.String()]; ok {
			return h
		}
		if h, ok := handlers[fromJID.ToBareJID().String()]; ok {
			return h
		}
	}
	return handlers[""]
}

func firstChild(elem stravaganza.Element) stravaganza.Element {
	children := elem.AllChildren()
	for _, child := range children {
		if child.Name() != "error" {
			return child
		}
	}
	return nil
}

func payloadNamespace(iq *stravaganza.IQ) string {
	if payload := firstChild(iq); payload != nil {
		return payload.Attribute(stravaganza.Namespace)
	}
	return ""
}

func senderKey(from *jid.JID) string {
	if from == nil {
		return ""
	}
	return from.String()
}

func jidString(jd *jid.JID) string {
	if jd == nil {
		return ""
	}
	return jd.String()
}

func presenceType(typ string) string {
	if len(typ) == 0 {
		return stravaganza.AvailableType
	}
	return typ
}

func messageType(typ string) string {
	if len(typ) == 0 {
		return stravaganza.NormalType
	}
	return typ
}
