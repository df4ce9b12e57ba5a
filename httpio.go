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

// Package httpio drives asynchronous outbound HTTP POST exchanges on top of
// a pluggable Transport provider. The provider performs the actual network
// I/O (DNS, TCP, TLS, protocol framing) and reports progress through
// discrete lifecycle events; httpio sequences those events into chunked
// request uploads, response header decoding, streaming gzip decompression
// and cancellation, and serializes all of it across the provider's worker
// goroutines.
//
// Callers submit work with Client.Post, observe completion by polling the
// Request status through Client.Status, and integrate with an external event
// loop through the level-triggered wake channel.
package httpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// HeaderOriginalContentLength carries the pre-compression length of a
	// gzip-encoded response body. Servers that compress always send it.
	HeaderOriginalContentLength = "Original-Content-Length"

	contentTypeJSON  = "application/json"
	contentTypeOctet = "application/octet-stream"
	encodingGzip     = "gzip"
)

// postChunkSize bounds how much request body is handed to the transport per
// write cycle, keeping progress observable and a single write failure cheap.
const postChunkSize = 1 << 20

// defaultTimeouts is the fixed operational timeout policy applied to every
// stream at submission. It is not caller-tunable.
var defaultTimeouts = Timeouts{
	Resolve: 0,
	Connect: 20 * time.Second,
	Send:    20 * time.Second,
	Receive: 30 * time.Minute,
}

// Client owns one transport session: the session lock serializing all
// exchange state, the wake signal for an external event loop, and the
// connectivity bookkeeping shared by every request on the session.
//
// A Client is safe for concurrent use. The transport provider may deliver
// events from arbitrary goroutines; every delivery is serialized by the
// session lock.
type Client struct {
	transport Transport
	userAgent string
	tracer    trace.Tracer
	metrics   *metrics

	mu   sync.Mutex
	wake chan struct{}

	waiter    Waiter
	connKnown bool
	connUp    bool
}

// New creates a Client on top of the given transport provider.
func New(transport Transport, opts ...ClientOption) (*Client, error) {
	if transport == nil {
		return nil, errors.New("httpio: nil transport")
	}

	cfg := &clientCfg{
		tracer: noop.Tracer{},
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var m *metrics
	if cfg.registerer != nil {
		var err error
		m, err = newMetrics(cfg.registerer)
		if err != nil {
			return nil, fmt.Errorf("httpio: failed to register metrics: %w", err)
		}
	}

	return &Client{
		transport: transport,
		userAgent: cfg.userAgent,
		tracer:    cfg.tracer,
		metrics:   m,
		wake:      make(chan struct{}, 1),
	}, nil
}

// Status returns the request's current status under the session lock. Use it
// instead of reading Request.Status while an exchange may be in flight.
func (c *Client) Status(req *Request) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return req.Status
}

// WakeChan exposes the session's level-triggered wake indicator. It becomes
// readable whenever dispatcher activity occurred; an external loop can select
// on it alongside its other sources instead of busy-polling request status.
func (c *Client) WakeChan() <-chan struct{} {
	return c.wake
}

// signal sets the wake indicator without blocking. The channel has capacity
// one, so an unobserved signal simply stays pending.
func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
