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

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type clientCfg struct {
	userAgent  string
	tracer     trace.Tracer
	registerer prometheus.Registerer
}

// ClientOption allows for the configuration of Clients.
type ClientOption func(cfg *clientCfg) error

// WithUserAgent sets the User-Agent header emitted on every exchange.
func WithUserAgent(ua string) ClientOption {
	return func(cfg *clientCfg) error {
		if ua == "" {
			return errors.New("empty user agent")
		}
		cfg.userAgent = ua
		return nil
	}
}

// WithTracer provides a custom otel tracer observing the lifecycle and byte
// counts of every exchange. The default tracer is a no-op.
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(cfg *clientCfg) error {
		if tracer == nil {
			return errors.New("nil tracer")
		}
		cfg.tracer = tracer
		return nil
	}
}

// WithMetrics registers the client's prometheus collectors with the given
// registerer. Without this option no metrics are collected.
func WithMetrics(reg prometheus.Registerer) ClientOption {
	return func(cfg *clientCfg) error {
		if reg == nil {
			return errors.New("nil registerer")
		}
		cfg.registerer = reg
		return nil
	}
}
