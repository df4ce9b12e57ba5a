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
	"go.opentelemetry.io/otel/trace"

	"github.com/openpcc/httpio/inflate"
)

// exchange is the per-request state bridging a Request to its transport
// handles. It is created by Post and owned by the session lock from then on.
//
// req is the back-reference to the logical request. It is set to nil exactly
// when the exchange is cancelled; every dispatcher branch treats a nil req
// as "stale event for a cancelled exchange, ignore".
type exchange struct {
	client *Client
	req    *Request

	conn   Conn
	stream Stream

	// response side
	gzip     bool
	inflater *inflate.Stream
	scratch  []byte

	// upload cursor
	postData []byte
	postPos  int
	postLen  int

	// byte counters for tracing and metrics
	sent     int
	received int

	span trace.Span
}

// release drops what the exchange still holds. It runs on the final
// handle-closing notification of a cancelled exchange, the only path that
// retires a context.
func (hx *exchange) release() {
	if hx.inflater != nil {
		hx.inflater.Cancel()
		hx.inflater = nil
	}
	hx.conn = nil
	hx.stream = nil
	hx.scratch = nil
	hx.postData = nil
}
