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
	"context"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/stream"
)

// Dispatcher defines the stanza dispatch boundary the roster engine runs on top of.
type Dispatcher interface {
	RegisterIQHandler(typ, name, ns string, h stream.IQHandler)
	UnregisterIQHandler(typ, name, ns string)

	RegisterPresenceHandler(typ string, from *jid.JID, h stream.PresenceHandler)
	UnregisterPresenceHandler(typ string, from *jid.JID)

	OnBeforeStreamEstablished(fn stream.LifecycleHandler)

	SendIQ(ctx context.Context, iq *stravaganza.IQ) (*stravaganza.IQ, error)
	Send(ctx context.Context, stanza stravaganza.Stanza) error

	LocalJID() *jid.JID
	HasFeature(name, ns string) bool
}

//go:generate moq -out sender.mock_test.go . streamSender:senderMock
type streamSender interface {
	stream.Sender
}
