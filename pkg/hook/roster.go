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
	"github.com/jackal-xmpp/stravaganza/v2"
	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
)

const (
	// RosterInitialReceived event is posted once the initial roster snapshot has been merged.
	RosterInitialReceived = "roster.initial_received"

	// RosterEntryAdded event is posted when a new roster item has been created.
	RosterEntryAdded = "roster.entry.added"

	// RosterEntryRemoved event is posted when a roster item has been removed.
	RosterEntryRemoved = "roster.entry.removed"

	// RosterEntryNameChanged event is posted when a roster item display name changed.
	RosterEntryNameChanged = "roster.entry.name_changed"

	// RosterEntrySubscriptionChanged event is posted when subscription, ask or approved attributes changed.
	RosterEntrySubscriptionChanged = "roster.entry.subscription_changed"

	// RosterGroupAdded event is posted when a group gets its first member.
	RosterGroupAdded = "roster.group.added"

	// RosterGroupRemoved event is posted when a group loses its last member.
	RosterGroupRemoved = "roster.group.removed"

	// RosterEntryAddedToGroup event is posted when a roster item joins a group.
	RosterEntryAddedToGroup = "roster.entry.added_to_group"

	// RosterEntryRemovedFromGroup event is posted when a roster item leaves a group.
	RosterEntryRemovedFromGroup = "roster.entry.removed_from_group"

	// RosterSubscribe event is posted when a contact requests a subscription.
	RosterSubscribe = "roster.subscribe"

	// RosterSubscribed event is posted when a contact approved our subscription request.
	RosterSubscribed = "roster.subscribed"

	// RosterUnsubscribe event is posted when a contact unsubscribed from our presence.
	RosterUnsubscribe = "roster.unsubscribe"

	// RosterUnsubscribed event is posted when a contact revoked our subscription.
	RosterUnsubscribed = "roster.unsubscribed"
)

// RosterInfo contains all info associated to a roster event.
type RosterInfo struct {
	// Item is the event associated roster item.
	// For removal events it holds the last known item state.
	Item *rostermodel.Item

	// Group is the event associated group name.
	Group string

	// OldName contains the previous item name on name change events.
	OldName string

	// Presence is the subscription presence stanza that triggered the event.
	Presence *stravaganza.Presence
}
