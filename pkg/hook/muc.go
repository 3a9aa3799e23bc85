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

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
)

const (
	// MUCOccupantJoined event is posted when an occupant enters the room.
	MUCOccupantJoined = "muc.occupant.joined"

	// MUCOccupantLeft event is posted when a remote occupant leaves the room.
	MUCOccupantLeft = "muc.occupant.left"

	// MUCOccupantNickChanged event is posted when an occupant changed its nick.
	MUCOccupantNickChanged = "muc.occupant.nick_changed"

	// MUCOccupantRoleChanged event is posted when an occupant role changed.
	MUCOccupantRoleChanged = "muc.occupant.role_changed"

	// MUCOccupantAffiliationChanged event is posted when an occupant affiliation changed.
	MUCOccupantAffiliationChanged = "muc.occupant.affiliation_changed"

	// MUCRoomEntered event is posted when the local user completed the room join.
	MUCRoomEntered = "muc.room.entered"

	// MUCRoomExited event is posted when the local user is no longer in the room.
	MUCRoomExited = "muc.room.exited"

	// MUCRoomStale event is posted when the room stopped answering self-pings.
	MUCRoomStale = "muc.room.stale"

	// MUCRoomFresh event is posted when a stale room showed signs of life again.
	MUCRoomFresh = "muc.room.fresh"

	// MUCRoleRequest event is posted when a moderator receives a voice request.
	MUCRoleRequest = "muc.role.request"

	// MUCTopicChanged event is posted when the room subject changed.
	MUCTopicChanged = "muc.topic.changed"

	// MUCInvitationReceived event is posted when the local user has been invited to a room.
	MUCInvitationReceived = "muc.invitation.received"

	// MUCMessageReceived event is posted for every groupchat message reflected by the room.
	MUCMessageReceived = "muc.message.received"

	// MUCPrivateMessageReceived event is posted when an occupant sends a private message to the local user.
	MUCPrivateMessageReceived = "muc.message.private"
)

// MUCRoomInfo contains all info associated to a room lifecycle event.
type MUCRoomInfo struct {
	// RoomJID is the room bare address.
	RoomJID *jid.JID

	// Self is the local user occupant, if known.
	Self *mucmodel.Occupant

	// Mode tells why the room was exited.
	Mode mucmodel.LeaveMode

	// Actor is the nick of the occupant responsible for the exit, if any.
	Actor string

	// Reason is the exit reason, if any.
	Reason string

	// Presence is the stanza that triggered the event.
	Presence *stravaganza.Presence
}

// MUCOccupantInfo contains all info associated to an occupant event.
type MUCOccupantInfo struct {
	RoomJID  *jid.JID
	Occupant *mucmodel.Occupant
	Presence *stravaganza.Presence

	// Mode tells why the occupant left.
	Mode mucmodel.LeaveMode

	Actor  string
	Reason string

	OldNick        string
	OldRole        mucmodel.Role
	OldAffiliation mucmodel.Affiliation
}

// MUCMessageSource tells how a groupchat message reached the client.
type MUCMessageSource int

const (
	// MUCMessageLive is a message received after the join completed.
	MUCMessageLive MUCMessageSource = iota

	// MUCMessageHistory is a message replayed as part of the join history.
	MUCMessageHistory

	// MUCMessageSelf is the reflection of a message sent by the local user.
	MUCMessageSelf
)

// MUCMessageInfo contains all info associated to a room message event, either groupchat or private.
type MUCMessageInfo struct {
	RoomJID *jid.JID

	// Occupant is the sender occupant, or nil if it is not present in the room.
	Occupant *mucmodel.Occupant
	Nick     string

	Message *stravaganza.Message
	Source  MUCMessageSource
}

// MUCTopicInfo contains all info associated to a subject change.
type MUCTopicInfo struct {
	RoomJID *jid.JID

	// Occupant is the setter occupant, or nil if the setter is unknown or gone.
	Occupant *mucmodel.Occupant
	Nick     string

	// Subject maps language tags to subject text. Untagged text lives under the empty key.
	Subject map[string]string
}

// MUCInvitationMode tells how an invitation was carried.
type MUCInvitationMode int

const (
	// MUCInvitationDirect represents an invitation sent straight to the invitee.
	MUCInvitationDirect MUCInvitationMode = iota

	// MUCInvitationMediated represents an invitation relayed by the room.
	MUCInvitationMediated
)

// MUCInvitationInfo contains all info associated to an invitation event.
type MUCInvitationInfo struct {
	RoomJID  *jid.JID
	Inviter  *jid.JID
	Mode     MUCInvitationMode
	Reason   string
	Password string

	// Continue and Thread are set when the invitation continues a one-to-one chat.
	Continue bool
	Thread   string

	Message *stravaganza.Message
}

// MUCVoiceDecider resolves a pending voice request.
type MUCVoiceDecider interface {
	Decide(ctx context.Context, allow bool) error
}

// MUCRoleRequestInfo contains all info associated to a voice request event.
type MUCRoleRequestInfo struct {
	RoomJID *jid.JID

	// Nick and JID identify the requesting occupant.
	Nick string
	JID  *jid.JID

	// Role is the requested role.
	Role mucmodel.Role

	Request MUCVoiceDecider
	Message *stravaganza.Message
}
