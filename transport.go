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

import "time"

// EventKind identifies a transport lifecycle notification.
type EventKind int

const (
	// EventDataAvailable reports Size response bytes ready to read, or the
	// end of the response body when Size is zero.
	EventDataAvailable EventKind = iota
	// EventReadComplete reports that Length bytes were placed into the
	// destination of the last Read.
	EventReadComplete
	// EventHeadersAvailable reports that the response status line and
	// headers can be queried.
	EventHeadersAvailable
	// EventRequestError reports a failed exchange; Err carries the cause and
	// Timeout marks a plain operation timeout.
	EventRequestError
	// EventSecureFailure reports a TLS-level failure.
	EventSecureFailure
	// EventSendComplete reports that Send finished transmitting its initial
	// chunk.
	EventSendComplete
	// EventWriteComplete reports that the last Write finished transmitting.
	EventWriteComplete
	// EventHandleClosing is the final notification for a stream whose
	// handles were closed; no further events follow it.
	EventHandleClosing
)

func (k EventKind) String() string {
	switch k {
	case EventDataAvailable:
		return "data-available"
	case EventReadComplete:
		return "read-complete"
	case EventHeadersAvailable:
		return "headers-available"
	case EventRequestError:
		return "request-error"
	case EventSecureFailure:
		return "secure-failure"
	case EventSendComplete:
		return "send-complete"
	case EventWriteComplete:
		return "write-complete"
	case EventHandleClosing:
		return "handle-closing"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification delivered to a Callback.
type Event struct {
	Kind EventKind

	// Size accompanies EventDataAvailable.
	Size int
	// Length accompanies EventReadComplete.
	Length int
	// Err accompanies EventRequestError.
	Err error
	// Timeout marks an EventRequestError caused by an operation timeout
	// rather than a connectivity problem.
	Timeout bool
}

// Callback receives the lifecycle events of one stream, carrying back the
// opaque token registered at Open.
//
// Providers may invoke it from arbitrary worker goroutines, but must never
// invoke it synchronously from within a command issued by a previous
// invocation, and must deliver the events of one stream in causal order:
// headers before body, completions in the order their commands were issued.
type Callback func(token any, ev Event)

// Timeouts is the per-stream operational timeout set, configured once at
// submission. A zero value leaves the provider's default in place.
type Timeouts struct {
	Resolve time.Duration
	Connect time.Duration
	Send    time.Duration
	Receive time.Duration
}

// Transport is the asynchronous provider performing the actual network I/O.
// It hands out connection handles synchronously; any real dialing may happen
// lazily behind them.
type Transport interface {
	// Connect establishes a logical connection to host:port.
	Connect(host string, port int) (Conn, error)
}

// Conn is a logical connection handle.
type Conn interface {
	// Open creates a request stream against path and registers cb with the
	// given token for the full set of lifecycle events. TLS framing is
	// selected by secure.
	Open(method, path string, secure bool, cb Callback, token any) (Stream, error)
	// Close releases the connection handle.
	Close() error
}

// Stream is one in-flight request on a Conn. All commands return
// immediately; their outcomes arrive as events.
type Stream interface {
	// SetTimeouts configures the operational timeouts enforced by the
	// provider for this stream.
	SetTimeouts(t Timeouts)
	// Send emits the request headers and the first body chunk. The provider
	// frames the body using total, the full body length, while the remaining
	// bytes follow through Write. Completion is EventSendComplete.
	Send(headers map[string]string, first []byte, total int) error
	// Write transmits one further body chunk. Completion is
	// EventWriteComplete.
	Write(chunk []byte) error
	// QueryAvailable asks how much response body is ready; the answer is
	// EventDataAvailable.
	QueryAvailable() error
	// Read copies bytes previously reported available into dst before
	// returning; EventReadComplete confirms the count.
	Read(dst []byte) error
	// ReceiveResponse switches the stream to response reception; headers are
	// announced by EventHeadersAvailable.
	ReceiveResponse() error
	// StatusCode returns the numeric response status. Valid once
	// EventHeadersAvailable was delivered.
	StatusCode() (int, error)
	// Header returns the named response header. Valid once
	// EventHeadersAvailable was delivered.
	Header(name string) (string, bool)
	// Close releases the stream's handles. The provider acknowledges with a
	// final EventHandleClosing.
	Close() error
}
