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

// Package nethttp is a httpio.Transport provider backed by net/http. Worker
// goroutines run the actual exchange and report progress through the event
// protocol; automatic response decompression is disabled so the exchange
// core owns gzip handling end to end.
package nethttp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/openpcc/httpio"
)

// eventBuffer sizes the per-stream event queue. The exchange protocol is
// lockstep (at most one command outstanding per direction), so a small
// buffer already guarantees emitters never block behind the dispatcher.
const eventBuffer = 64

// readChunk bounds how much response body one query stages at a time.
const readChunk = 64 << 10

// Transport implements httpio.Transport over net/http.
type Transport struct {
	mu   sync.Mutex
	base *http.Transport

	// InsecureSkipVerify disables certificate verification for https
	// targets. Test use only.
	InsecureSkipVerify bool
}

// New creates a Transport. The underlying http.Transport is built lazily so
// the first stream's timeout policy can shape it.
func New() *Transport {
	return &Transport{}
}

// Connect returns a handle for host:port. Dialing happens lazily when the
// first request goes out, so Connect itself never blocks on the network.
func (t *Transport) Connect(host string, port int) (httpio.Conn, error) {
	if host == "" {
		return nil, errors.New("nethttp: empty host")
	}
	return &conn{t: t, host: host, port: port}, nil
}

func (t *Transport) clientFor(to httpio.Timeouts) *http.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.base == nil {
		t.base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: to.Connect,
			}).DialContext,
			TLSHandshakeTimeout:   to.Connect,
			ResponseHeaderTimeout: to.Receive,
			// the exchange core decompresses; hand it the raw body and the
			// unmodified Content-Encoding header
			DisableCompression: true,
		}
		if t.InsecureSkipVerify {
			t.base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
	}
	return &http.Client{Transport: t.base}
}

type conn struct {
	t    *Transport
	host string
	port int
}

func (c *conn) Open(method, path string, secure bool, cb httpio.Callback, token any) (httpio.Stream, error) {
	if cb == nil {
		return nil, errors.New("nethttp: nil callback")
	}

	scheme := "http"
	if secure {
		scheme = "https"
	}
	url := scheme + "://" + net.JoinHostPort(c.host, strconv.Itoa(c.port)) + path

	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{
		t:         c.t,
		cb:        cb,
		token:     token,
		method:    method,
		url:       url,
		ctx:       ctx,
		ctxCancel: cancel,
		events:    make(chan httpio.Event, eventBuffer),
		closing:   make(chan struct{}),
		respReady: make(chan struct{}),
	}
	go s.deliver()
	return s, nil
}

// Close is a no-op: connections are pooled by the shared http.Transport.
func (c *conn) Close() error {
	return nil
}

// stream runs one exchange. Events funnel through a single channel consumed
// by one goroutine, preserving causal order across the emitting workers.
type stream struct {
	t      *Transport
	cb     httpio.Callback
	token  any
	method string
	url    string

	timeouts httpio.Timeouts

	ctx       context.Context
	ctxCancel context.CancelFunc

	events  chan httpio.Event
	closing chan struct{}
	once    sync.Once

	pw      *io.PipeWriter
	total   int
	written int

	respReady chan struct{}
	resp      *http.Response

	staged []byte
}

func (s *stream) deliver() {
	for ev := range s.events {
		s.cb(s.token, ev)
		if ev.Kind == httpio.EventHandleClosing {
			return
		}
	}
}

func (s *stream) emit(ev httpio.Event) {
	select {
	case <-s.closing:
		return
	default:
	}
	select {
	case <-s.closing:
	case s.events <- ev:
	}
}

func (s *stream) emitError(op string, err error) {
	if errors.Is(err, context.Canceled) {
		// handle closed under the exchange, the core no longer listens
		return
	}
	if isSecureFailure(err) {
		s.emit(httpio.Event{Kind: httpio.EventSecureFailure})
		return
	}
	timeout := isTimeout(err)
	s.emit(httpio.Event{
		Kind:    httpio.EventRequestError,
		Err:     &httpio.TransportError{Op: op, Err: err, Timeout: timeout},
		Timeout: timeout,
	})
}

func (s *stream) SetTimeouts(t httpio.Timeouts) {
	s.timeouts = t
}

func (s *stream) Send(headers map[string]string, first []byte, total int) error {
	pr, pw := io.Pipe()
	s.pw = pw
	s.total = total

	req, err := http.NewRequestWithContext(s.ctx, s.method, s.url, pr)
	if err != nil {
		return fmt.Errorf("nethttp: %w", err)
	}
	req.ContentLength = int64(total)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := s.t.clientFor(s.timeouts)

	// response worker: runs the request, announces the response
	go func() {
		resp, err := client.Do(req) //nolint:bodyclose // closed on stream teardown
		if err != nil {
			s.emitError("send", err)
			return
		}
		s.resp = resp
		close(s.respReady)
	}()

	// upload worker: first chunk, then completion
	go func() {
		if len(first) > 0 {
			if _, err := pw.Write(first); err != nil {
				s.emitError("send", err)
				return
			}
		}
		s.written = len(first)
		if s.written >= s.total {
			pw.Close()
		}
		s.emit(httpio.Event{Kind: httpio.EventSendComplete})
	}()

	return nil
}

func (s *stream) Write(chunk []byte) error {
	if s.pw == nil {
		return errors.New("nethttp: write before send")
	}
	go func() {
		if _, err := s.pw.Write(chunk); err != nil {
			s.emitError("write", err)
			return
		}
		s.written += len(chunk)
		if s.written >= s.total {
			s.pw.Close()
		}
		s.emit(httpio.Event{Kind: httpio.EventWriteComplete})
	}()
	return nil
}

func (s *stream) ReceiveResponse() error {
	go func() {
		select {
		case <-s.respReady:
			s.emit(httpio.Event{Kind: httpio.EventHeadersAvailable})
		case <-s.ctx.Done():
			// Do failed or the handle was closed; any error was already
			// reported by the response worker
		}
	}()
	return nil
}

func (s *stream) QueryAvailable() error {
	if s.resp == nil {
		return errors.New("nethttp: no response")
	}
	go func() {
		buf := make([]byte, readChunk)
		for {
			n, err := s.resp.Body.Read(buf)
			if n > 0 {
				s.staged = buf[:n]
				s.emit(httpio.Event{Kind: httpio.EventDataAvailable, Size: n})
				return
			}
			if errors.Is(err, io.EOF) {
				s.emit(httpio.Event{Kind: httpio.EventDataAvailable, Size: 0})
				return
			}
			if err != nil {
				s.emitError("read", err)
				return
			}
		}
	}()
	return nil
}

// Read copies previously staged bytes into dst before returning, then
// confirms the count through the event queue.
func (s *stream) Read(dst []byte) error {
	n := copy(dst, s.staged)
	s.staged = s.staged[n:]
	s.emit(httpio.Event{Kind: httpio.EventReadComplete, Length: n})
	return nil
}

func (s *stream) StatusCode() (int, error) {
	if s.resp == nil {
		return 0, errors.New("nethttp: no response")
	}
	return s.resp.StatusCode, nil
}

func (s *stream) Header(name string) (string, bool) {
	if s.resp == nil {
		return "", false
	}
	v := s.resp.Header.Get(name)
	return v, v != ""
}

func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.closing)
		s.ctxCancel()
		if s.pw != nil {
			s.pw.CloseWithError(context.Canceled)
		}
		go func() {
			// if the response never landed, the cancelled context makes
			// net/http close the body for us
			select {
			case <-s.respReady:
				s.resp.Body.Close()
			default:
			}
			// final notification; deliver() exits after dispatching it
			s.events <- httpio.Event{Kind: httpio.EventHandleClosing}
		}()
	})
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func isSecureFailure(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) {
		return true
	}
	var alertErr tls.AlertError
	return errors.As(err, &alertErr)
}
