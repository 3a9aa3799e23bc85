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
	"errors"
	"fmt"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
	"github.com/samber/lo"
)

type itemUpdate struct {
	jd     *jid.JID
	st     rostermodel.State
	remove bool
}

func decodeQuery(query stravaganza.Element) ([]itemUpdate, error) {
	elems := query.Children("item")
	updates := make([]itemUpdate, 0, len(elems))
	for _, elem := range elems {
		upd, err := decodeRosterItem(elem)
		if err != nil {
			return nil, err
		}
		updates = append(updates, upd)
	}
	return updates, nil
}

func decodeRosterItem(elem stravaganza.Element) (itemUpdate, error) {
	var upd itemUpdate

	jidStr := elem.Attribute("jid")
	if len(jidStr) == 0 {
		return upd, errors.New("roster: item 'jid' attribute is required")
	}
	j, err := jid.NewWithString(jidStr, false)
	if err != nil {
		return upd, err
	}
	upd.jd = j.ToBareJID()
	upd.st.Name = elem.Attribute("name")
	upd.st.Subscription = rostermodel.None

	if subscription := elem.Attribute("subscription"); len(subscription) > 0 {
		switch subscription {
		case rostermodel.Both, rostermodel.From, rostermodel.To, rostermodel.None:
			upd.st.Subscription = subscription
		case rostermodel.Remove:
			upd.remove = true
		default:
			return upd, fmt.Errorf("roster: unrecognized 'subscription' enum type: %s", subscription)
		}
	}
	if ask := elem.Attribute("ask"); len(ask) > 0 {
		if ask != "subscribe" {
			return upd, fmt.Errorf("roster: unrecognized 'ask' enum type: %s", ask)
		}
		upd.st.Ask = ask
	}
	switch elem.Attribute("approved") {
	case "true", "1":
		upd.st.Approved = true
	}
	var groups []string
	for _, group := range elem.Children("group") {
		if len(group.Text()) > 0 {
			groups = append(groups, group.Text())
		}
	}
	upd.st.Groups = lo.Uniq(groups)
	return upd, nil
}

func encodeRosterItem(jd *jid.JID, name, subscription string, groups []string) stravaganza.Element {
	b := stravaganza.NewBuilder("item").
		WithAttribute("jid", jd.ToBareJID().String())
	if len(name) > 0 {
		b.WithAttribute("name", name)
	}
	if len(subscription) > 0 {
		b.WithAttribute("subscription", subscription)
	}
	for _, group := range groups {
		b.WithChild(stravaganza.NewBuilder("group").
			WithText(group).
			Build(),
		)
	}
	return b.Build()
}

func queryElement(ver *string, items ...stravaganza.Element) stravaganza.Element {
	b := stravaganza.NewBuilder("query").
		WithAttribute(stravaganza.Namespace, rosterNamespace)
	if ver != nil {
		b.WithAttribute("ver", *ver)
	}
	return b.WithChildren(items...).Build()
}
