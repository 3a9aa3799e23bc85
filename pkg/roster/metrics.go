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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	rosterPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "roster",
			Name:      "pushes_total",
			Help:      "The total number of received roster pushes.",
		},
		[]string{"result"},
	)
	rosterSnapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "roster",
			Name:      "snapshots_total",
			Help:      "The total number of requested roster snapshots.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(rosterPushes)
	prometheus.MustRegister(rosterSnapshots)
}

func reportPush(result string) {
	rosterPushes.With(prometheus.Labels{"result": result}).Inc()
}

func reportSnapshot(result string) {
	rosterSnapshots.With(prometheus.Labels{"result": result}).Inc()
}
