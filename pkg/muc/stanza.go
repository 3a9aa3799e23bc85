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
	"sort"
	"strconv"
	"time"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
	"github.com/samber/lo"
)

const (
	mucNamespace      = "http://jabber.org/protocol/muc"
	mucUserNamespace  = "http://jabber.org/protocol/muc#user"
	mucAdminNamespace = "http://jabber.org/protocol/muc#admin"
	mucRequestForm    = "http://jabber.org/protocol/muc#request"
	conferenceNS      = "jabber:x:conference"
	dataFormNamespace = "jabber:x:data"
	pingNamespace     = "urn:xmpp:ping"

	xmlLangAttribute = "xml:lang"
)

// XEP-0045 status codes
const (
	statusSelfPresence      = 110
	statusRoomCreated       = 201
	statusBanned            = 301
	statusNickChanged       = 303
	statusKicked            = 307
	statusAffiliationChange = 321
	statusMembersOnly       = 322
	statusSystemShutdown    = 332
	statusTechnicalReasons  = 333
)

// userInfo holds the content of a muc#user extension element.
type userInfo struct {
	statuses map[int]struct{}

	hasItem     bool
	affiliation mucmodel.Affiliation
	role        mucmodel.Role
	realJID     *jid.JID
	nick        string
	actor       string
	reason      string
}

func (ui userInfo) hasStatus(code int) bool {
	_, ok := ui.statuses[code]
	return ok
}

func parseUserInfo(stanza stravaganza.Stanza) userInfo {
	ui := userInfo{
		statuses:    make(map[int]struct{}),
		affiliation: mucmodel.NoAffiliation,
		role:        mucmodel.NoRole,
	}
	x := stanza.ChildNamespace("x", mucUserNamespace)
	if x == nil {
		return ui
	}
	for _, st := range x.Children("status") {
		code, err := strconv.Atoi(st.Attribute("code"))
		if err != nil {
			continue
		}
		ui.statuses[code] = struct{}{}
	}
	item := x.Child("item")
	if item == nil {
		return ui
	}
	ui.hasItem = true
	ui.affiliation = mucmodel.ParseAffiliation(item.Attribute("affiliation"))
	ui.role = mucmodel.ParseRole(item.Attribute("role"))
	ui.nick = item.Attribute("nick")
	if jidStr := item.Attribute("jid"); len(jidStr) > 0 {
		if realJID, err := jid.NewWithString(jidStr, false); err == nil {
			ui.realJID = realJID.ToBareJID()
		}
	}
	if actor := item.Child("actor"); actor != nil {
		ui.actor = actor.Attribute("nick")
		if len(ui.actor) == 0 {
			ui.actor = actor.Attribute("jid")
		}
	}
	if reason := item.Child("reason"); reason != nil {
		ui.reason = reason.Text()
	}
	return ui
}

// History defines the discussion history the room should replay on join.
type History struct {
	// MaxStanzas limits the number of replayed messages. Zero means no history at all.
	MaxStanzas int

	// Seconds limits replayed messages to the ones sent within the last Seconds.
	Seconds int

	// Since limits replayed messages to the ones sent after Since.
	Since time.Time
}

func joinElement(history *History, password string) stravaganza.Element {
	b := stravaganza.NewBuilder("x").
		WithAttribute(stravaganza.Namespace, mucNamespace)
	if history != nil {
		hb := stravaganza.NewBuilder("history").
			WithAttribute("maxstanzas", strconv.Itoa(history.MaxStanzas))
		if history.Seconds > 0 {
			hb.WithAttribute("seconds", strconv.Itoa(history.Seconds))
		}
		if !history.Since.IsZero() {
			hb.WithAttribute("since", history.Since.UTC().Format(time.RFC3339))
		}
		b.WithChild(hb.Build())
	}
	if len(password) > 0 {
		b.WithChild(stravaganza.NewBuilder("password").
			WithText(password).
			Build(),
		)
	}
	return b.Build()
}

func adminQuery(item stravaganza.Element) stravaganza.Element {
	return stravaganza.NewBuilder("query").
		WithAttribute(stravaganza.Namespace, mucAdminNamespace).
		WithChild(item).
		Build()
}

func adminItem(attrs map[string]string, reason string) stravaganza.Element {
	b := stravaganza.NewBuilder("item")

	keys := lo.Keys(attrs)
	sort.Strings(keys)
	for _, k := range keys {
		b.WithAttribute(k, attrs[k])
	}
	if len(reason) > 0 {
		b.WithChild(stravaganza.NewBuilder("reason").
			WithText(reason).
			Build(),
		)
	}
	return b.Build()
}

func pingElement() stravaganza.Element {
	return stravaganza.NewBuilder("ping").
		WithAttribute(stravaganza.Namespace, pingNamespace).
		Build()
}

func subjectElements(subject map[string]string) []stravaganza.Element {
	langs := lo.Keys(subject)
	sort.Strings(langs)

	elems := make([]stravaganza.Element, 0, len(langs))
	for _, lang := range langs {
		b := stravaganza.NewBuilder("subject").WithText(subject[lang])
		if len(lang) > 0 {
			b.WithAttribute(xmlLangAttribute, lang)
		}
		elems = append(elems, b.Build())
	}
	return elems
}

func parseSubject(msg *stravaganza.Message) (map[string]string, bool) {
	elems := msg.Children("subject")
	if len(elems) == 0 {
		return nil, false
	}
	subject := make(map[string]string, len(elems))
	for _, elem := range elems {
		subject[elem.Attribute(xmlLangAttribute)] = elem.Text()
	}
	return subject, true
}

// dataForm represents a flattened jabber:x:data form.
type dataForm struct {
	typ    string
	fields map[string]string
}

func parseDataForm(elem stravaganza.Element) *dataForm {
	x := elem.ChildNamespace("x", dataFormNamespace)
	if x == nil {
		return nil
	}
	form := &dataForm{
		typ:    x.Attribute(stravaganza.Type),
		fields: make(map[string]string),
	}
	for _, field := range x.Children("field") {
		var value string
		if v := field.Child("value"); v != nil {
			value = v.Text()
		}
		form.fields[field.Attribute("var")] = value
	}
	return form
}

func (f *dataForm) formType() string { return f.fields["FORM_TYPE"] }

func (f *dataForm) element() stravaganza.Element {
	vars := lo.Keys(f.fields)
	sort.Strings(vars)

	b := stravaganza.NewBuilder("x").
		WithAttribute(stravaganza.Namespace, dataFormNamespace).
		WithAttribute(stravaganza.Type, f.typ)
	for _, v := range vars {
		fb := stravaganza.NewBuilder("field").
			WithAttribute("var", v)
		if v == "FORM_TYPE" {
			fb.WithAttribute(stravaganza.Type, "hidden")
		}
		b.WithChild(fb.WithChild(
			stravaganza.NewBuilder("value").
				WithText(f.fields[v]).
				Build(),
		).Build())
	}
	return b.Build()
}

func boolValue(s string) bool {
	return s == "true" || s == "1"
}
