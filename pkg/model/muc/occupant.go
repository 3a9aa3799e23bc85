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

import (
	"sync"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
)

// Affiliation represents a long-lived room membership level.
type Affiliation string

const (
	// Owner represents 'owner' affiliation.
	Owner Affiliation = "owner"

	// Admin represents 'admin' affiliation.
	Admin Affiliation = "admin"

	// Member represents 'member' affiliation.
	Member Affiliation = "member"

	// Outcast represents 'outcast' affiliation.
	Outcast Affiliation = "outcast"

	// NoAffiliation represents 'none' affiliation.
	NoAffiliation Affiliation = "none"
)

// ParseAffiliation returns the affiliation named by s, defaulting to NoAffiliation.
func ParseAffiliation(s string) Affiliation {
	switch a := Affiliation(s); a {
	case Owner, Admin, Member, Outcast:
		return a
	}
	return NoAffiliation
}

// Role represents a session-scoped room privilege level.
type Role string

const (
	// Moderator represents 'moderator' role.
	Moderator Role = "moderator"

	// Participant represents 'participant' role.
	Participant Role = "participant"

	// Visitor represents 'visitor' role.
	Visitor Role = "visitor"

	// NoRole represents 'none' role.
	NoRole Role = "none"
)

// ParseRole returns the role named by s, defaulting to NoRole.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case Moderator, Participant, Visitor:
		return r
	}
	return NoRole
}

// Occupant represents a participant's presence within a room.
// Occupants are mutated in place, so a held reference reflects later role, affiliation or nick changes.
type Occupant struct {
	mu          sync.RWMutex
	occupantJID *jid.JID
	realJID     *jid.JID
	affiliation Affiliation
	role        Role
	presence    *stravaganza.Presence
	isSelf      bool
}

// NewOccupant returns a new occupant identified by occJID (room@service/nick).
func NewOccupant(occJID *jid.JID, isSelf bool) *Occupant {
	return &Occupant{
		occupantJID: occJID,
		affiliation: NoAffiliation,
		role:        NoRole,
		isSelf:      isSelf,
	}
}

// Nick returns occupant room nickname.
func (o *Occupant) Nick() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.occupantJID.Resource()
}

// OccupantJID returns occupant in-room address.
func (o *Occupant) OccupantJID() *jid.JID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.occupantJID
}

// RealJID returns occupant real bare address, or nil if the room does not disclose it.
func (o *Occupant) RealJID() *jid.JID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.realJID
}

// Affiliation returns occupant affiliation.
func (o *Occupant) Affiliation() Affiliation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.affiliation
}

// Role returns occupant role.
func (o *Occupant) Role() Role {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.role
}

// Presence returns last presence stanza received from the occupant.
func (o *Occupant) Presence() *stravaganza.Presence {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.presence
}

// IsSelf tells whether the occupant represents the local user.
func (o *Occupant) IsSelf() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.isSelf
}

// IsModerator tells whether the occupant holds moderator role.
func (o *Occupant) IsModerator() bool { return o.Role() == Moderator }

// IsVisitor tells whether the occupant holds visitor role.
func (o *Occupant) IsVisitor() bool { return o.Role() == Visitor }

// IsOwner tells whether the occupant holds owner affiliation.
func (o *Occupant) IsOwner() bool { return o.Affiliation() == Owner }

// IsAdmin tells whether the occupant holds admin affiliation.
func (o *Occupant) IsAdmin() bool { return o.Affiliation() == Admin }

// Update sets occupant affiliation, role, real address and presence.
// It reports whether role or affiliation changed.
func (o *Occupant) Update(aff Affiliation, role Role, realJID *jid.JID, pr *stravaganza.Presence) (roleChanged, affChanged bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	roleChanged = o.role != role
	affChanged = o.affiliation != aff

	o.affiliation = aff
	o.role = role
	if realJID != nil {
		o.realJID = realJID.ToBareJID()
	}
	if pr != nil {
		o.presence = pr
	}
	return roleChanged, affChanged
}

// Rename moves the occupant to a new nick within the same room.
func (o *Occupant) Rename(nick string) (oldNick string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	oldNick = o.occupantJID.Resource()
	newJID, err := jid.New(o.occupantJID.Node(), o.occupantJID.Domain(), nick, true)
	if err != nil {
		return oldNick
	}
	o.occupantJID = newJID
	return oldNick
}

// HasHigherAffiliation tells whether o affiliation outranks k's.
func (o *Occupant) HasHigherAffiliation(k *Occupant) bool {
	switch o.Affiliation() {
	case Owner:
		return true
	case Admin:
		return !k.IsOwner()
	case Member:
		return !k.IsOwner() && !k.IsAdmin()
	case NoAffiliation:
		return k.Affiliation() == NoAffiliation
	}
	return false
}

// CanChangeRole tells whether o is allowed to grant role to target.
func (o *Occupant) CanChangeRole(target *Occupant, role Role) bool {
	switch role {
	case NoRole:
		return o.IsModerator() && o.HasHigherAffiliation(target)
	case Visitor:
		return o.IsModerator() && target.Role() == Participant
	case Participant:
		return o.IsModerator() && target.IsVisitor() || o.IsAdmin() && !target.IsOwner()
	case Moderator:
		return o.IsAdmin() || o.IsOwner()
	}
	return false
}
