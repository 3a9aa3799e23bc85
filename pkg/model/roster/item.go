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

package rostermodel

import (
	"sort"
	"sync"

	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/samber/lo"
)

const (
	// None represents 'none' subscription type.
	None = "none"

	// From represents 'from' subscription type.
	From = "from"

	// To represents 'to' subscription type.
	To = "to"

	// Both represents 'both' subscription type.
	Both = "both"

	// Remove represents 'remove' subscription type.
	// It is only a wire signal and never stored.
	Remove = "remove"
)

// IsValidSubscription tells whether sub is a storable subscription value.
func IsValidSubscription(sub string) bool {
	switch sub {
	case None, From, To, Both:
		return true
	}
	return false
}

// State represents the plain attributes of a roster item as carried by a roster query.
type State struct {
	Subscription string
	Ask          string
	Approved     bool
	Name         string
	Groups       []string
}

// Diff describes the outcome of applying a State to an Item.
type Diff struct {
	NameChanged         bool
	SubscriptionChanged bool

	OldName string

	AddedGroups   []string
	RemovedGroups []string
}

// IsEmpty tells whether the diff carries no change.
func (d Diff) IsEmpty() bool {
	return !d.NameChanged && !d.SubscriptionChanged && len(d.AddedGroups) == 0 && len(d.RemovedGroups) == 0
}

// Item represents a roster item entity.
// An Item is shared by reference, so that holders observe subsequent updates in place.
type Item struct {
	jd *jid.JID

	mu           sync.RWMutex
	subscription string
	ask          string
	approved     bool
	name         string
	groups       map[string]struct{}
}

// NewItem returns a new roster item bound to the bare representation of jd.
func NewItem(jd *jid.JID) *Item {
	return &Item{
		jd:           jd.ToBareJID(),
		subscription: None,
		groups:       make(map[string]struct{}),
	}
}

// JID returns item contact address.
func (i *Item) JID() *jid.JID { return i.jd }

// Subscription returns item subscription value.
func (i *Item) Subscription() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.subscription
}

// Ask returns item pending subscription request value, or empty string if there is none.
func (i *Item) Ask() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ask
}

// Approved tells whether the subscription has been pre-approved.
func (i *Item) Approved() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.approved
}

// Name returns item display name.
func (i *Item) Name() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.name
}

// Groups returns item sorted group names.
func (i *Item) Groups() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedKeys(i.groups)
}

// InGroup tells whether the item belongs to group.
func (i *Item) InGroup(group string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.groups[group]
	return ok
}

// State returns a copy of the item attributes.
func (i *Item) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return State{
		Subscription: i.subscription,
		Ask:          i.ask,
		Approved:     i.approved,
		Name:         i.name,
		Groups:       sortedKeys(i.groups),
	}
}

// Update replaces item attributes in place and returns what changed.
func (i *Item) Update(st State) Diff {
	sub := st.Subscription
	if !IsValidSubscription(sub) {
		sub = None
	}
	newGroups := lo.SliceToMap(st.Groups, func(g string) (string, struct{}) { return g, struct{}{} })

	i.mu.Lock()
	defer i.mu.Unlock()

	var d Diff
	if i.name != st.Name {
		d.NameChanged = true
		d.OldName = i.name
	}
	if i.subscription != sub || i.ask != st.Ask || i.approved != st.Approved {
		d.SubscriptionChanged = true
	}
	for g := range newGroups {
		if _, ok := i.groups[g]; !ok {
			d.AddedGroups = append(d.AddedGroups, g)
		}
	}
	for g := range i.groups {
		if _, ok := newGroups[g]; !ok {
			d.RemovedGroups = append(d.RemovedGroups, g)
		}
	}
	sort.Strings(d.AddedGroups)
	sort.Strings(d.RemovedGroups)

	i.subscription = sub
	i.ask = st.Ask
	i.approved = st.Approved
	i.name = st.Name
	i.groups = newGroups
	return d
}

func sortedKeys(m map[string]struct{}) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
