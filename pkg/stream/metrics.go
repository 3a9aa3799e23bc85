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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	streamOutgoingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "stream",
			Name:      "outgoing_requests_total",
			Help:      "The total number of outgoing stanza requests.",
		},
		[]string{"name", "type"},
	)
	streamOutgoingRequestTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "stream",
			Name:      "outgoing_request_timeouts_total",
			Help:      "The total number of outgoing iq requests that got no response in time.",
		},
		[]string{"namespace"},
	)
	streamOutgoingRequestDurationBucket = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jackal_client",
			Subsystem: "stream",
			Name:      "outgoing_requests_duration_bucket",
			Help:      "Bucketed histogram of outgoing iq round trip duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 24),
		},
		[]string{"namespace", "type"},
	)
	streamIncomingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jackal_client",
			Subsystem: "stream",
			Name:      "incoming_requests_total",
			Help:      "The total number of incoming stanza requests.",
		},
		[]string{"name", "type"},
	)
	streamIncomingRequestDurationBucket = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jackal_client",
			Subsystem: "stream",
			Name:      "incoming_requests_duration_bucket",
			Help:      "Bucketed histogram of incoming stanza requests duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 24),
		},
		[]string{"name", "type"},
	)
)

func init() {
	prometheus.MustRegister(streamOutgoingRequests)
	prometheus.MustRegister(streamOutgoingRequestTimeouts)
	prometheus.MustRegister(streamOutgoingRequestDurationBucket)
	prometheus.MustRegister(streamIncomingRequests)
	prometheus.MustRegister(streamIncomingRequestDurationBucket)
}

func reportOutgoingRequest(name, typ string) {
	metricLabel := prometheus.Labels{
		"name": name,
		"type": typ,
	}
	streamOutgoingRequests.With(metricLabel).Inc()
}

func reportOutgoingRequestTimeout(namespace string) {
	streamOutgoingRequestTimeouts.With(prometheus.Labels{"namespace": namespace}).Inc()
}

func reportOutgoingRequestDuration(namespace, typ string, durationInSecs float64) {
	metricLabel := prometheus.Labels{
		"namespace": namespace,
		"type":      typ,
	}
	streamOutgoingRequestDurationBucket.With(metricLabel).Observe(durationInSecs)
}

func reportIncomingRequest(name, typ string, durationInSecs float64) {
	metricLabel := prometheus.Labels{
		"name": name,
		"type": typ,
	}
	streamIncomingRequests.With(metricLabel).Inc()
	streamIncomingRequestDurationBucket.With(metricLabel).Observe(durationInSecs)
}
