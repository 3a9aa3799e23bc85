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

package xmpputil

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
)

const delayNamespace = "urn:xmpp:delay"

// GroupChatType represents a 'groupchat' message type.
const GroupChatType = "groupchat"

// MakeIQ creates a new iq of type typ using fromJID and toJID addresses carrying child as payload.
// A get or set iq requires a non-nil child.
func MakeIQ(typ string, fromJID, toJID *jid.JID, child stravaganza.Element) (*stravaganza.IQ, error) {
	b := stravaganza.NewIQBuilder().
		WithAttribute(stravaganza.ID, uuid.New().String()).
		WithAttribute(stravaganza.Type, typ).
		WithAttribute(stravaganza.From, fromJID.String()).
		WithAttribute(stravaganza.To, toJID.String())
	if child != nil {
		b.WithChild(child)
	}
	return b.BuildIQ()
}

// MakeResultIQ creates a new result stanza derived from iq.
func MakeResultIQ(iq *stravaganza.IQ, queryChild stravaganza.Element) *stravaganza.IQ {
	b := iq.ResultBuilder()
	if queryChild != nil {
		b.WithChild(queryChild)
	}
	resIQ, _ := b.BuildIQ()
	return resIQ
}

// MakePresence creates presence of type typ using fromJID and toJID addresses.
// An available typ leaves the 'type' attribute out.
func MakePresence(fromJID, toJID *jid.JID, typ string, children []stravaganza.Element) *stravaganza.Presence {
	b := stravaganza.NewPresenceBuilder().
		WithAttribute(stravaganza.ID, uuid.New().String()).
		WithAttribute(stravaganza.From, fromJID.String()).
		WithAttribute(stravaganza.To, toJID.String())
	if len(typ) > 0 && typ != stravaganza.AvailableType {
		b.WithAttribute(stravaganza.Type, typ)
	}
	pr, _ := b.WithChildren(children...).BuildPresence()
	return pr
}

// MakeMessage creates a new message of type typ using fromJID and toJID addresses.
func MakeMessage(typ string, fromJID, toJID *jid.JID, children []stravaganza.Element) *stravaganza.Message {
	msg, _ := stravaganza.NewMessageBuilder().
		WithAttribute(stravaganza.ID, uuid.New().String()).
		WithAttribute(stravaganza.Type, typ).
		WithAttribute(stravaganza.From, fromJID.String()).
		WithAttribute(stravaganza.To, toJID.String()).
		WithChildren(children...).
		BuildMessage()
	return msg
}

// MakeErrorStanza creates an error stanza using errReason as reason.
func MakeErrorStanza(stanza stravaganza.Stanza, errReason stanzaerror.Reason) stravaganza.Stanza {
	errStanza, _ := stanzaerror.E(errReason, stanza).
		Stanza(false)
	return errStanza
}

// DelayStamp returns the delayed delivery timestamp carried by stanza.
func DelayStamp(stanza stravaganza.Stanza) (time.Time, bool) {
	dElem := stanza.ChildNamespace("delay", delayNamespace)
	if dElem == nil {
		return time.Time{}, false
	}
	stamp, err := time.Parse(time.RFC3339, dElem.Attribute("stamp"))
	if err != nil {
		return time.Time{}, false
	}
	return stamp, true
}
