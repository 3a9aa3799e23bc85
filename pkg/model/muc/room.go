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

package mucmodel

// RoomState represents the lifecycle state of a joined room session.
type RoomState int

const (
	// Joining means join presence has been sent and self-presence is still pending.
	Joining RoomState = iota

	// History means self-presence was received and the room is replaying history.
	History

	// Active means the room is fully joined.
	Active

	// Left means the session is over.
	Left
)

// String satisfies fmt.Stringer interface.
func (s RoomState) String() string {
	switch s {
	case Joining:
		return "joining"
	case History:
		return "history"
	case Active:
		return "active"
	default:
		return "left"
	}
}

// LeaveMode tags every occupant departure.
type LeaveMode int

const (
	// LeaveNormal represents a voluntary leave.
	LeaveNormal LeaveMode = iota

	// LeaveKicked means the occupant was kicked.
	LeaveKicked

	// LeaveBanned means the occupant was banned.
	LeaveBanned

	// LeaveError means the occupant was removed due to an error.
	LeaveError

	// LeaveAffiliationChange means the occupant was removed due to an affiliation change.
	LeaveAffiliationChange

	// LeaveDisconnected means the local stream went away.
	LeaveDisconnected

	// LeaveSystemShutdown means the service is shutting down.
	LeaveSystemShutdown
)

// String satisfies fmt.Stringer interface.
func (m LeaveMode) String() string {
	switch m {
	case LeaveNormal:
		return "normal"
	case LeaveKicked:
		return "kicked"
	case LeaveBanned:
		return "banned"
	case LeaveError:
		return "error"
	case LeaveAffiliationChange:
		return "affiliation_change"
	case LeaveDisconnected:
		return "disconnected"
	case LeaveSystemShutdown:
		return "system_shutdown"
	}
	return "unknown"
}

// MessageState represents a tracked message delivery state.
type MessageState int

const (
	// InTransit means the message was handed to the stream.
	InTransit MessageState = iota

	// DeliveredToServer means the server acknowledged the message.
	DeliveredToServer

	// DeliveredToRecipient means the room reflected the message back.
	DeliveredToRecipient

	// DeliveryError means the message bounced.
	DeliveryError
)

// String satisfies fmt.Stringer interface.
func (s MessageState) String() string {
	switch s {
	case InTransit:
		return "in_transit"
	case DeliveredToServer:
		return "delivered_to_server"
	case DeliveredToRecipient:
		return "delivered_to_recipient"
	default:
		return "error"
	}
}

// IsFinal tells whether no further transition is possible from s.
func (s MessageState) IsFinal() bool {
	return s == DeliveredToRecipient || s == DeliveryError
}
