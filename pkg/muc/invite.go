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

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/hook"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
)

// ErrUnknownInvitationMode is returned when inviting with an unrecognized invitation mode.
var ErrUnknownInvitationMode = errors.New("muc: unknown invitation mode")

// Invite invites to into the room.
// Direct invitations are sent straight to the invitee (XEP-0249), while mediated ones are relayed by the room.
// The returned channel yields the outcome of the delivery.
func (r *Room) Invite(ctx context.Context, to *jid.JID, reason string, mode hook.MUCInvitationMode) (<-chan error, error) {
	localJID, err := r.joinedLocalJID()
	if err != nil {
		return nil, err
	}
	var msg *stravaganza.Message
	switch mode {
	case hook.MUCInvitationDirect:
		b := stravaganza.NewBuilder("x").
			WithAttribute(stravaganza.Namespace, conferenceNS).
			WithAttribute("jid", r.roomJID.String())
		if len(reason) > 0 {
			b.WithAttribute("reason", reason)
		}
		if len(r.opts.Password) > 0 {
			b.WithAttribute("password", r.opts.Password)
		}
		msg = xmpputil.MakeMessage(stravaganza.NormalType, localJID, to, []stravaganza.Element{b.Build()})

	case hook.MUCInvitationMediated:
		ib := stravaganza.NewBuilder("invite").
			WithAttribute(stravaganza.To, to.String())
		if len(reason) > 0 {
			ib.WithChild(stravaganza.NewBuilder("reason").
				WithText(reason).
				Build(),
			)
		}
		x := stravaganza.NewBuilder("x").
			WithAttribute(stravaganza.Namespace, mucUserNamespace).
			WithChild(ib.Build()).
			Build()
		msg = xmpputil.MakeMessage(stravaganza.NormalType, localJID, r.roomJID, []stravaganza.Element{x})

	default:
		return nil, ErrUnknownInvitationMode
	}
	return errChan(r.disp.Send(ctx, msg)), nil
}

func parseInvitation(msg *stravaganza.Message) (*hook.MUCInvitationInfo, bool) {
	if x := msg.ChildNamespace("x", conferenceNS); x != nil {
		roomJID, err := jid.NewWithString(x.Attribute("jid"), false)
		if err != nil || len(x.Attribute("jid")) == 0 {
			return nil, false
		}
		return &hook.MUCInvitationInfo{
			RoomJID:  roomJID.ToBareJID(),
			Inviter:  msg.FromJID(),
			Mode:     hook.MUCInvitationDirect,
			Reason:   x.Attribute("reason"),
			Password: x.Attribute("password"),
			Continue: boolValue(x.Attribute("continue")),
			Thread:   x.Attribute("thread"),
			Message:  msg,
		}, true
	}
	x := msg.ChildNamespace("x", mucUserNamespace)
	if x == nil {
		return nil, false
	}
	invite := x.Child("invite")
	if invite == nil {
		return nil, false
	}
	inf := &hook.MUCInvitationInfo{
		RoomJID: msg.FromJID().ToBareJID(),
		Mode:    hook.MUCInvitationMediated,
		Message: msg,
	}
	if from := invite.Attribute(stravaganza.From); len(from) > 0 {
		inf.Inviter, _ = jid.NewWithString(from, false)
	}
	if reason := invite.Child("reason"); reason != nil {
		inf.Reason = reason.Text()
	}
	if cont := invite.Child("continue"); cont != nil {
		inf.Continue = true
		inf.Thread = cont.Attribute("thread")
	}
	if password := x.Child("password"); password != nil {
		inf.Password = password.Text()
	}
	return inf, true
}
