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

// Status is the lifecycle state of a Request. It only ever moves from
// StatusInflight to one of the two terminal values; a fresh submission
// resets it.
type Status int

const (
	// StatusReady marks a request that has never been submitted.
	StatusReady Status = iota
	// StatusInflight marks a submitted request with no terminal outcome yet.
	StatusInflight
	// StatusSuccess is the terminal state of a completed exchange with
	// HTTP status 200.
	StatusSuccess
	// StatusFailure is the terminal state of every other outcome:
	// non-200 responses, transport errors, decode errors and cancellation.
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusInflight:
		return "inflight"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// RequestType selects the request/response framing policy of an exchange.
type RequestType int

const (
	// TypeJSON marks a structured call: the body is sent as
	// application/json and a gzip-compressed response is acceptable.
	TypeJSON RequestType = iota
	// TypeBinary marks a raw payload sent as application/octet-stream.
	TypeBinary
)

// Request is one logical outbound POST exchange. The caller owns it and
// reads its terminal state; the core mutates Status, HTTPStatus,
// ContentLength and the response destination during the exchange and never
// retains it past completion or cancellation.
type Request struct {
	// URL is the absolute target (http or https).
	URL string
	// Type selects JSON or raw binary framing.
	Type RequestType

	// Out is the request body, unless an explicit payload is passed to Post.
	Out []byte
	// In accumulates the response body for structured calls. Post truncates
	// it on submission; when the response is gzip-encoded it is pre-sized to
	// the declared original length and filled in place.
	In []byte
	// Buf, when non-nil, is a caller-pre-sized raw destination for the
	// response. Setting it disables response decompression for the exchange
	// regardless of response headers.
	Buf []byte

	// Status is the lifecycle state. Poll it through Client.Status while the
	// exchange may be in flight.
	Status Status
	// HTTPStatus is the response status code, or 0 if the exchange failed
	// before headers arrived or was cancelled.
	HTTPStatus int
	// ContentLength is the declared original (pre-compression) response
	// length, when the server announced one.
	ContentLength int

	bufPos   int
	reserved int
	handle   *exchange
}

// Received reports how many response body bytes have been committed so far.
func (r *Request) Received() int {
	if r.Buf != nil {
		return r.bufPos
	}
	return len(r.In)
}

// reserve grows the response destination and returns a writable region of up
// to n bytes. A pre-sized Buf clamps the region to its remaining capacity.
func (r *Request) reserve(n int) []byte {
	if r.Buf != nil {
		if rem := len(r.Buf) - r.bufPos; n > rem {
			n = rem
		}
		r.reserved = n
		return r.Buf[r.bufPos : r.bufPos+n]
	}
	base := len(r.In)
	r.In = append(r.In, make([]byte, n)...)
	r.reserved = n
	return r.In[base : base+n]
}

// commit records that n bytes of the last reservation were actually filled
// and trims the unread tail.
func (r *Request) commit(n int) {
	if n > r.reserved {
		n = r.reserved
	}
	if r.Buf != nil {
		r.bufPos += n
	} else {
		r.In = r.In[:len(r.In)-r.reserved+n]
	}
	r.reserved = 0
}
