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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mucJoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "muc",
			Name:      "joins_total",
			Help:      "The total number of room join attempts.",
		},
		[]string{"result"},
	)
	mucLeaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "muc",
			Name:      "exits_total",
			Help:      "The total number of exited rooms.",
		},
		[]string{"mode"},
	)
	mucLiveness = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "muc",
			Name:      "liveness_transitions_total",
			Help:      "The total number of room stale/fresh transitions.",
		},
		[]string{"state"},
	)
	mucSelfPings = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jackal_client",
			Subsystem: "muc",
			Name:      "self_ping_duration_bucket",
			Help:      "Self-ping round trip duration in seconds.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(mucJoins)
	prometheus.MustRegister(mucLeaves)
	prometheus.MustRegister(mucLiveness)
	prometheus.MustRegister(mucSelfPings)
}

func reportJoin(result string) {
	mucJoins.With(prometheus.Labels{"result": result}).Inc()
}

func reportExit(mode string) {
	mucLeaves.With(prometheus.Labels{"mode": mode}).Inc()
}

func reportLiveness(state string) {
	mucLiveness.With(prometheus.Labels{"state": state}).Inc()
}

func reportSelfPing(result string, durationInSecs float64) {
	mucSelfPings.With(prometheus.Labels{"result": result}).Observe(durationInSecs)
}
