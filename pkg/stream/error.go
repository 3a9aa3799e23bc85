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
	"errors"
	"fmt"

	"github.com/jackal-xmpp/stravaganza/v2"
	stanzaerror "github.com/jackal-xmpp/stravaganza/v2/errors/stanza"
)

const stanzaErrorNamespace = "urn:ietf:params:xml:ns:xmpp-stanzas"

// reasons maps every defined condition element name to its reason.
var reasons = make(map[string]stanzaerror.Reason)

func init() {
	for r := stanzaerror.BadRequest; r <= stanzaerror.UnexpectedRequest; r++ {
		reasons[r.String()] = r
	}
}

var (
	// ErrRequestTimeout is returned when an iq request gets no response before its deadline.
	ErrRequestTimeout = errors.New("stream: request timeout")

	// ErrStreamNotEstablished is returned when trying to send over a stream that has not been established.
	ErrStreamNotEstablished = errors.New("stream: not established")

	// ErrStreamEnded is returned to every in-flight request when the stream goes away.
	ErrStreamEnded = errors.New("stream: ended")

	// ErrMalformedStanza is returned when an inbound element cannot be interpreted as a stanza.
	ErrMalformedStanza = errors.New("stream: malformed stanza")
)

var (
	// ErrForbidden matches any 'forbidden' stanza error.
	ErrForbidden = Condition(stanzaerror.Forbidden)

	// ErrItemNotFound matches any 'item-not-found' stanza error.
	ErrItemNotFound = Condition(stanzaerror.ItemNotFound)

	// ErrNotAcceptable matches any 'not-acceptable' stanza error.
	ErrNotAcceptable = Condition(stanzaerror.NotAcceptable)

	// ErrServiceUnavailable matches any 'service-unavailable' stanza error.
	ErrServiceUnavailable = Condition(stanzaerror.ServiceUnavailable)

	// ErrFeatureNotImplemented matches any 'feature-not-implemented' stanza error.
	ErrFeatureNotImplemented = Condition(stanzaerror.FeatureNotImplemented)
)

// StanzaError represents an XMPP stanza level error.
type StanzaError struct {
	// Type is the error type attribute (auth, cancel, continue, modify or wait).
	Type string

	// Reason is the defined condition of the error.
	Reason stanzaerror.Reason

	// Text is the optional human readable error description.
	Text string

	// Stanza is the error stanza, if the error was received from the wire.
	Stanza stravaganza.Stanza
}

// Condition returns a stanza error carrying only a defined condition.
// It is meant to be used as errors.Is target.
func Condition(reason stanzaerror.Reason) *StanzaError {
	return &StanzaError{Reason: reason}
}

// NewStanzaError returns a stanza error of type typ and condition reason.
func NewStanzaError(typ string, reason stanzaerror.Reason, text string) *StanzaError {
	return &StanzaError{Type: typ, Reason: reason, Text: text}
}

// Error satisfies error interface.
func (e *StanzaError) Error() string {
	if len(e.Text) > 0 {
		return fmt.Sprintf("stream: stanza error: %s (%s)", e.Reason, e.Text)
	}
	return fmt.Sprintf("stream: stanza error: %s", e.Reason)
}

// Is tells whether target is a stanza error sharing the same defined condition.
func (e *StanzaError) Is(target error) bool {
	t, ok := target.(*StanzaError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// ErrorFromStanza extracts the stanza error contained in an error typed stanza.
func ErrorFromStanza(stanza stravaganza.Stanza) *StanzaError {
	se := &StanzaError{
		Reason: stanzaerror.UndefinedCondition,
		Stanza: stanza,
	}
	errEl := stanza.Child("error")
	if errEl == nil {
		return se
	}
	se.Type = errEl.Attribute(stravaganza.Type)
	for _, child := range errEl.AllChildren() {
		if child.Attribute(stravaganza.Namespace) != stanzaErrorNamespace {
			continue
		}
		switch child.Name() {
		case "text":
			se.Text = child.Text()
		default:
			se.Reason = parseReason(child.Name())
		}
	}
	return se
}

func parseReason(condition string) stanzaerror.Reason {
	if r, ok := reasons[condition]; ok {
		return r
	}
	return stanzaerror.UndefinedCondition
}
