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
	"strconv"
	"sync/atomic"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/hook"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
	"github.com/ortuman/jackal-client/pkg/stream"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
	"github.com/samber/lo"
)

const (
	fieldRole         = "muc#role"
	fieldJID          = "muc#jid"
	fieldRoomNick     = "muc#roomnick"
	fieldRequestAllow = "muc#request_allow"
)

// ErrAlreadyDecided is returned when resolving a voice request more than once.
var ErrAlreadyDecided = errors.New("muc: voice request already decided")

// VoiceRequest represents a pending voice request forwarded by the room to its moderators.
type VoiceRequest struct {
	r       *Room
	form    *dataForm
	decided atomic.Bool
}

// Decide grants or denies the requested role. Only the first call has any effect.
func (vr *VoiceRequest) Decide(ctx context.Context, allow bool) error {
	if !vr.decided.CompareAndSwap(false, true) {
		return ErrAlreadyDecided
	}
	localJID := vr.r.disp.LocalJID()
	if localJID == nil {
		return stream.ErrStreamNotEstablished
	}
	reply := &dataForm{
		typ:    "submit",
		fields: lo.Assign(vr.form.fields),
	}
	reply.fields[fieldRequestAllow] = strconv.FormatBool(allow)

	return vr.r.disp.Send(ctx, xmpputil.MakeMessage(stravaganza.NormalType, localJID, vr.r.roomJID, []stravaganza.Element{
		reply.element(),
	}))
}

// RequestVoice asks room moderators to be granted participant role.
func (r *Room) RequestVoice(ctx context.Context) error {
	localJID, err := r.joinedLocalJID()
	if err != nil {
		return err
	}
	form := &dataForm{
		typ: "submit",
		fields: map[string]string{
			"FORM_TYPE": mucRequestForm,
			fieldRole:   string(mucmodel.Participant),
		},
	}
	return r.disp.Send(ctx, xmpputil.MakeMessage(stravaganza.NormalType, localJID, r.roomJID, []stravaganza.Element{
		form.element(),
	}))
}

func (r *Room) handleVoiceRequest(ctx context.Context, msg *stravaganza.Message, form *dataForm) {
	r.process(ctx, func() []event {
		if r.state != mucmodel.Active && r.state != mucmodel.History {
			return nil
		}
		var realJID *jid.JID
		if jidStr := form.fields[fieldJID]; len(jidStr) > 0 {
			realJID, _ = jid.NewWithString(jidStr, false)
		}
		return []event{{name: hook.MUCRoleRequest, inf: &hook.MUCRoleRequestInfo{
			RoomJID: r.roomJID,
			Nick:    form.fields[fieldRoomNick],
			JID:     realJID,
			Role:    mucmodel.ParseRole(form.fields[fieldRole]),
			Request: &VoiceRequest{r: r, form: form},
			Message: msg,
		}}}
	})
}
