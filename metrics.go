// Copyright 2025 Nonvolatile Inc. d/b/a Confident Security

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     https://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package httpio

import "github.com/prometheus/client_golang/prometheus"

// metrics instruments the session. A nil *metrics is valid and records
// nothing, so the dispatcher can call through unconditionally.
type metrics struct {
	exchanges *prometheus.CounterVec
	inflight  prometheus.Gauge
	bytesOut  prometheus.Counter
	bytesIn   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpio",
			Name:      "exchanges_total",
			Help:      "Completed exchanges by outcome (success, failure, rejected).",
		}, []string{"outcome"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "httpio",
			Name:      "exchanges_inflight",
			Help:      "Exchanges currently in flight.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpio",
			Name:      "request_bytes_total",
			Help:      "Request body bytes handed to the transport.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpio",
			Name:      "response_bytes_total",
			Help:      "Response body bytes read off the transport.",
		}),
	}

	for _, col := range []prometheus.Collector{m.exchanges, m.inflight, m.bytesOut, m.bytesIn} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// start records a successfully initiated submission.
func (m *metrics) start() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// rejected records a submission that failed before going in flight.
func (m *metrics) rejected() {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues("rejected").Inc()
}

// done records a terminal transition of an in-flight exchange.
func (m *metrics) done(outcome string, sent, received int) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
	m.inflight.Dec()
	m.bytesOut.Add(float64(sent))
	m.bytesIn.Add(float64(received))
}
