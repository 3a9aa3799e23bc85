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

package stream

import (
	"context"

	"github.com/jackal-xmpp/stravaganza/v2"
)

// Sender represents the outbound side of an established client-to-server XMPP stream.
type Sender interface {
	// SendElement writes element string representation to the underlying stream transport.
	SendElement(ctx context.Context, elem stravaganza.Element) error
}

// IQHandler processes an inbound get or set iq.
// Returning a *StanzaError makes the dispatcher reply with the corresponding error iq.
type IQHandler func(ctx context.Context, iq *stravaganza.IQ) error

// PresenceHandler processes an inbound presence stanza.
type PresenceHandler func(ctx context.Context, presence *stravaganza.Presence) error

// MessageHandler processes an inbound message stanza.
type MessageHandler func(ctx context.Context, message *stravaganza.Message) error

// LifecycleHandler is invoked on stream lifecycle transitions.
type LifecycleHandler func(ctx context.Context) error

//go:generate moq -out sender.mock_test.go . Sender:senderMock
