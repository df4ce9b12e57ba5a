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
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type target struct {
	host   string
	port   int
	path   string
	secure bool
}

func parseTarget(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("httpio: invalid target URL: %w", err)
	}

	var t target
	switch u.Scheme {
	case "http":
		t.port = 80
	case "https":
		t.port = 443
		t.secure = true
	default:
		return target{}, fmt.Errorf("httpio: unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return target{}, errors.New("httpio: target URL has no host")
	}
	t.host = u.Hostname()
	if p := u.Port(); p != "" {
		t.port, err = strconv.Atoi(p)
		if err != nil {
			return target{}, fmt.Errorf("httpio: invalid port: %w", err)
		}
	}
	t.path = u.RequestURI()
	return t, nil
}

// Post begins an asynchronous POST exchange for req. A non-nil data overrides
// req.Out as the body, for raw pre-serialized sends.
//
// Post returns once transmission of the first chunk was initiated; all
// further progress is driven by transport events. On success req.Status is
// StatusInflight; on any submission failure it is StatusFailure and no event
// will ever fire for req. Either way the caller observes the outcome by
// polling Client.Status and finally calls Cancel to release the transport
// handles.
//
// A request that is already in flight is left untouched.
func (c *Client) Post(ctx context.Context, req *Request, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Status == StatusInflight {
		return
	}

	// fresh submission: drop the previous outcome
	req.Status = StatusReady
	req.HTTPStatus = 0
	req.ContentLength = 0
	req.In = req.In[:0]
	req.bufPos = 0
	req.reserved = 0

	tgt, err := parseTarget(req.URL)
	if err != nil {
		req.Status = StatusFailure
		c.metrics.rejected()
		return
	}

	hx := &exchange{client: c, req: req}
	hx.span = startExchangeSpan(ctx, c.tracer, req, tgt)
	req.handle = hx

	conn, err := c.transport.Connect(tgt.host, tgt.port)
	if err != nil {
		c.abortSubmission(hx, req, err)
		return
	}
	hx.conn = conn

	stream, err := conn.Open(http.MethodPost, tgt.path, tgt.secure, c.Dispatch, hx)
	if err != nil {
		c.abortSubmission(hx, req, err)
		return
	}
	hx.stream = stream
	stream.SetTimeouts(defaultTimeouts)

	headers := map[string]string{"Content-Type": contentTypeOctet}
	if req.Type == TypeJSON || req.Buf == nil {
		headers = map[string]string{
			"Content-Type":    contentTypeJSON,
			"Accept-Encoding": encodingGzip,
		}
	}
	if c.userAgent != "" {
		headers["User-Agent"] = c.userAgent
	}

	// the body goes out in postChunkSize instalments so upload progress
	// stays observable and a failed write loses a bounded amount
	body := data
	if body == nil {
		body = req.Out
	}
	hx.postData = body
	hx.postLen = len(body)
	hx.postPos = min(hx.postLen, postChunkSize)

	if err := stream.Send(headers, body[:hx.postPos], hx.postLen); err != nil {
		c.abortSubmission(hx, req, err)
		return
	}
	hx.sent = hx.postPos

	req.Status = StatusInflight
	c.metrics.start()
}

// abortSubmission marks a failed submission. The partially populated
// exchange stays attached to the request so a later Cancel can close
// whatever handles were opened.
func (c *Client) abortSubmission(hx *exchange, req *Request, err error) {
	req.Status = StatusFailure
	c.metrics.rejected()
	endExchangeSpan(hx, err)
}

// Cancel aborts req's exchange, severing the link between request and
// context so that any event already queued for it becomes a no-op, and
// closes the transport handles. The deferred handle-closing notification
// later retires the context itself.
//
// Cancel is idempotent and safe after natural completion, where it only
// releases the handles; a terminal status is never overwritten.
func (c *Client) Cancel(req *Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hx := req.handle
	if hx == nil {
		return
	}
	c.cancelLocked(hx, req)
}

// cancelLocked runs with the session lock held, from Cancel or from a
// dispatcher branch reacting to a transport or decode error.
func (c *Client) cancelLocked(hx *exchange, req *Request) {
	hx.req = nil
	if req.Status == StatusInflight {
		req.HTTPStatus = 0
		req.Status = StatusFailure
		c.metrics.done("failure", hx.sent, hx.received)
		endExchangeSpan(hx, errors.New("httpio: exchange cancelled"))
	}
	req.handle = nil

	if hx.inflater != nil {
		hx.inflater.Cancel()
	}
	if hx.stream != nil {
		hx.stream.Close()
	}
	if hx.conn != nil {
		hx.conn.Close()
	}
}

// PostPos reports how many request body bytes have been handed to the
// transport so far, for upload progress display.
func (c *Client) PostPos(req *Request) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.handle == nil {
		return 0
	}
	return req.handle.postPos
}
