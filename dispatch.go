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
	"net/http"
	"strconv"

	"github.com/openpcc/httpio/inflate"
)

// Dispatch is the single callback registered with the transport for every
// exchange. Providers invoke it, possibly from worker goroutines, for each
// lifecycle event; the session lock serializes all of them.
//
// A cancellation that happened after an event was queued but before it is
// dispatched is caught by the severed request back-reference and absorbed
// silently.
func (c *Client) Dispatch(token any, ev Event) {
	hx, ok := token.(*exchange)
	if !ok || hx == nil || hx.client != c {
		return
	}

	c.mu.Lock()
	req := hx.req

	// the final teardown notification of a cancelled exchange is the only
	// path that retires the context
	if ev.Kind == EventHandleClosing {
		c.mu.Unlock()
		if req == nil {
			hx.release()
		}
		return
	}

	if req == nil {
		c.mu.Unlock()
		return
	}
	defer c.mu.Unlock()

	switch ev.Kind {
	case EventDataAvailable:
		if ev.Size == 0 {
			c.finalize(hx, req)
		} else {
			c.readAvailable(hx, req, ev.Size)
		}
		c.signal()

	case EventReadComplete:
		if ev.Length > 0 {
			if !hx.gzip {
				req.commit(ev.Length)
			}
			hx.received += ev.Length
			if err := hx.stream.QueryAvailable(); err != nil {
				c.cancelLocked(hx, req)
				c.signal()
			}
		}

	case EventHeadersAvailable:
		c.decodeHeaders(hx, req)

	case EventRequestError:
		if !ev.Timeout {
			// a bare timeout on an otherwise healthy connection is not a
			// connectivity loss
			c.inetStatus(false)
		}
		c.cancelLocked(hx, req)
		c.signal()

	case EventSecureFailure:
		c.cancelLocked(hx, req)
		c.signal()

	case EventSendComplete, EventWriteComplete:
		c.pushChunk(hx, req)
	}
}

// finalize handles the zero-size data-available notification closing the
// response body: the exchange reaches its terminal state.
func (c *Client) finalize(hx *exchange, req *Request) {
	if req.Status != StatusInflight {
		return
	}

	status := StatusFailure
	if req.HTTPStatus == http.StatusOK {
		status = StatusSuccess
	}
	if hx.gzip && status == StatusSuccess {
		// the declared output must be fully produced by end of stream
		if err := hx.inflater.Finish(); err != nil {
			status = StatusFailure
		}
	}

	req.Status = status
	if status == StatusSuccess {
		c.metrics.done("success", hx.sent, hx.received)
		endExchangeSpan(hx, nil)
	} else {
		c.metrics.done("failure", hx.sent, hx.received)
		endExchangeSpan(hx, errFinalizeFailure)
	}
}

// readAvailable pulls size bytes off the stream: into a scratch buffer and
// through the inflater when the response is compressed, directly into the
// request's destination otherwise.
func (c *Client) readAvailable(hx *exchange, req *Request, size int) {
	var dst []byte
	if hx.gzip {
		if cap(hx.scratch) < size {
			hx.scratch = make([]byte, size)
		}
		dst = hx.scratch[:size]
	} else {
		dst = req.reserve(size)
	}

	if err := hx.stream.Read(dst); err != nil {
		c.cancelLocked(hx, req)
		return
	}
	if hx.gzip {
		if err := hx.inflater.Feed(dst); err != nil {
			c.cancelLocked(hx, req)
		}
	}
}

// decodeHeaders interprets the headers-available notification: status code
// capture, original content length recovery and compression detection.
func (c *Client) decodeHeaders(hx *exchange, req *Request) {
	code, err := hx.stream.StatusCode()
	if err != nil {
		c.cancelLocked(hx, req)
		c.signal()
		return
	}
	req.HTTPStatus = code

	if req.Buf != nil {
		// raw destination supplied by the caller, compression is off for
		// this exchange no matter what the headers claim
		hx.gzip = false
	} else if v, ok := hx.stream.Header(HeaderOriginalContentLength); ok {
		// the original length is always present when gzip is in use
		length, err := strconv.Atoi(v)
		if err == nil && length >= 0 {
			req.ContentLength = length
			enc, ok := hx.stream.Header("Content-Encoding")
			hx.gzip = ok && enc == encodingGzip
			if hx.gzip {
				// decompressed bytes land directly in the final buffer
				req.In = make([]byte, length)
				hx.inflater = inflate.New(req.In)
			}
		}
	}

	if err := hx.stream.QueryAvailable(); err != nil {
		c.cancelLocked(hx, req)
		c.signal()
		return
	}

	// the earliest point connectivity is provable
	c.inetStatus(true)
}

// pushChunk advances the chunked upload on send-complete/write-complete, or
// switches to response reception once the body is fully queued.
func (c *Client) pushChunk(hx *exchange, req *Request) {
	if hx.postPos < hx.postLen {
		pos := hx.postPos
		n := min(hx.postLen-pos, postChunkSize)
		hx.postPos += n

		if err := hx.stream.Write(hx.postData[pos : pos+n]); err != nil {
			c.cancelLocked(hx, req)
		} else {
			hx.sent += n
		}
		c.signal()
		return
	}

	if err := hx.stream.ReceiveResponse(); err != nil {
		c.cancelLocked(hx, req)
		c.signal()
	}
}
