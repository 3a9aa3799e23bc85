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

	"github.com/samber/lo"
)

// Document is the JSON-compatible persistent representation of a roster.
type Document struct {
	Items map[string]DocumentItem `json:"items"`
	Ver   string                  `json:"ver,omitempty"`
}

// DocumentItem is the persistent representation of a single roster item.
type DocumentItem struct {
	Subscription string   `json:"subscription"`
	Ask          string   `json:"ask,omitempty"`
	Name         string   `json:"name,omitempty"`
	Approved     bool     `json:"approved,omitempty"`
	Groups       []string `json:"groups,omitempty"`
}

// NewDocumentItem returns the persistent representation of st.
func NewDocumentItem(st State) DocumentItem {
	sub := st.Subscription
	if !IsValidSubscription(sub) {
		sub = None
	}
	var groups []string
	if len(st.Groups) > 0 {
		groups = lo.Uniq(st.Groups)
		sort.Strings(groups)
	}
	return DocumentItem{
		Subscription: sub,
		Ask:          st.Ask,
		Name:         st.Name,
		Approved:     st.Approved,
		Groups:       groups,
	}
}

// State returns item attributes described by the document entry.
// Absent fields take their default value.
func (di DocumentItem) State() State {
	sub := di.Subscription
	if !IsValidSubscription(sub) {
		sub = None
	}
	return State{
		Subscription: sub,
		Ask:          di.Ask,
		Name:         di.Name,
		Approved:     di.Approved,
		Groups:       lo.Uniq(di.Groups),
	}
}
