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

import "time"

// SelfPingConfig defines room liveness checking configuration.
type SelfPingConfig struct {
	// Enabled tells whether joined rooms should be self-pinged.
	Enabled bool `fig:"enabled"`

	// SoftTimeout is the time without room traffic after which self-pings start.
	SoftTimeout time.Duration `fig:"soft_timeout" default:"1m"`

	// HardTimeout is the time without room traffic after which a failed self-ping exits the room.
	HardTimeout time.Duration `fig:"hard_timeout" default:"3m"`

	// PingInterval defines the time between consecutive self-pings.
	PingInterval time.Duration `fig:"ping_interval" default:"15s"`

	// PingTimeout defines how long a single self-ping response is awaited.
	PingTimeout time.Duration `fig:"ping_timeout" default:"1m"`
}

// Config defines MUC service configuration.
type Config struct {
	// RequestTimeout defines room request timeout used when the caller context carries no deadline.
	RequestTimeout time.Duration `fig:"request_timeout" default:"15s"`

	// HistoryGrace is the time a joined room may stay replaying history before it is considered entered.
	HistoryGrace time.Duration `fig:"history_grace" default:"2s"`

	// AutoRejoin tells whether rooms exited because of a disconnection are rejoined on stream re-establishment.
	AutoRejoin bool `fig:"auto_rejoin"`

	SelfPing SelfPingConfig `fig:"self_ping"`
}
