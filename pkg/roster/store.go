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
	"sort"

	"github.com/jackal-xmpp/stravaganza/v2/jid"
	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
	"github.com/samber/lo"
)

// change describes the outcome of a single store mutation.
type change struct {
	item    *rostermodel.Item
	created bool
	removed bool
	diff    rostermodel.Diff

	// groups that made it into (or were pruned from) the index because of this mutation
	newGroups    map[string]struct{}
	prunedGroups map[string]struct{}
}

// store keeps roster items keyed by bare address along with the group index derived from them.
// The index references items by key only. Not safe for concurrent use.
type store struct {
	items  map[string]*rostermodel.Item
	groups map[string]map[string]struct{}
	ver    string
}

func newStore() *store {
	return &store{
		items:  make(map[string]*rostermodel.Item),
		groups: make(map[string]map[string]struct{}),
	}
}

func (s *store) get(key string) *rostermodel.Item {
	return s.items[key]
}

// apply creates or updates in place the item addressed by jd.
func (s *store) apply(jd *jid.JID, st rostermodel.State) change {
	key := jd.ToBareJID().String()

	itm, ok := s.items[key]
	if !ok {
		itm = rostermodel.NewItem(jd)
		s.items[key] = itm
	}
	c := change{
		item:    itm,
		created: !ok,
		diff:    itm.Update(st),
	}
	c.newGroups = s.link(key, c.diff.AddedGroups)
	c.prunedGroups = s.unlink(key, c.diff.RemovedGroups)
	return c
}

// remove drops the item identified by key, pruning it from every group first.
func (s *store) remove(key string) (change, bool) {
	itm, ok := s.items[key]
	if !ok {
		return change{}, false
	}
	groups := itm.Groups()

	c := change{
		item:    itm,
		removed: true,
		diff:    rostermodel.Diff{RemovedGroups: groups},
	}
	c.prunedGroups = s.unlink(key, groups)
	delete(s.items, key)
	return c, true
}

// reset replaces the whole store content without computing any change.
func (s *store) reset(items map[string]*rostermodel.Item, ver string) {
	s.items = items
	s.groups = make(map[string]map[string]struct{})
	s.ver = ver
	for key, itm := range items {
		s.link(key, itm.Groups())
	}
}

func (s *store) keys() []string {
	keys := lo.Keys(s.items)
	sort.Strings(keys)
	return keys
}

func (s *store) list() []*rostermodel.Item {
	keys := s.keys()
	items := make([]*rostermodel.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, s.items[k])
	}
	return items
}

func (s *store) groupNames() []string {
	names := lo.Keys(s.groups)
	sort.Strings(names)
	return names
}

func (s *store) members(group string) []*rostermodel.Item {
	keys := lo.Keys(s.groups[group])
	sort.Strings(keys)

	items := make([]*rostermodel.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, s.items[k])
	}
	return items
}

func (s *store) link(key string, groups []string) map[string]struct{} {
	var created map[string]struct{}
	for _, g := range groups {
		members, ok := s.groups[g]
		if !ok {
			members = make(map[string]struct{})
			s.groups[g] = members
			if created == nil {
				created = make(map[string]struct{})
			}
			created[g] = struct{}{}
		}
		members[key] = struct{}{}
	}
	return created
}

func (s *store) unlink(key string, groups []string) map[string]struct{} {
	var pruned map[string]struct{}
	for _, g := range groups {
		members, ok := s.groups[g]
		if !ok {
			continue
		}
		delete(members, key)
		if len(members) > 0 {
			continue
		}
		delete(s.groups, g)
		if pruned == nil {
			pruned = make(map[string]struct{})
		}
		pruned[g] = struct{}{}
	}
	return pruned
}
