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
package httpio_test

import (
	"slices"
	"testing"

	"github.com/openpcc/httpio"
)

// fakeTransport is a scripted provider. Tests drive the exchange by
// delivering events explicitly, so every interleaving is deterministic and
// each command the core issues is recorded.
type fakeTransport struct {
	connectErr error
	openErr    error
	sendErr    error

	conns []*fakeConn
}

func (ft *fakeTransport) Connect(host string, port int) (httpio.Conn, error) {
	if ft.connectErr != nil {
		return nil, ft.connectErr
	}
	fc := &fakeConn{ft: ft, host: host, port: port}
	ft.conns = append(ft.conns, fc)
	return fc, nil
}

// lastStream returns the stream of the most recent exchange.
func (ft *fakeTransport) lastStream(t *testing.T) *fakeStream {
	t.Helper()
	if len(ft.conns) == 0 || ft.conns[len(ft.conns)-1].stream == nil {
		t.Fatal("no stream was opened")
	}
	return ft.conns[len(ft.conns)-1].stream
}

type fakeConn struct {
	ft   *fakeTransport
	host string
	port int

	stream *fakeStream
	closed int
}

func (fc *fakeConn) Open(method, path string, secure bool, cb httpio.Callback, token any) (httpio.Stream, error) {
	if fc.ft.openErr != nil {
		return nil, fc.ft.openErr
	}
	fc.stream = &fakeStream{
		method:  method,
		path:    path,
		secure:  secure,
		cb:      cb,
		token:   token,
		sendErr: fc.ft.sendErr,

		statusCode: 200,
	}
	return fc.stream, nil
}

func (fc *fakeConn) Close() error {
	fc.closed++
	return nil
}

type fakeStream struct {
	method string
	path   string
	secure bool
	cb     httpio.Callback
	token  any

	timeouts httpio.Timeouts

	// scripted failures
	sendErr    error
	writeErr   error
	queryErr   error
	readErr    error
	receiveErr error

	// scripted response
	statusCode  int
	respHeaders map[string]string

	// recorded commands
	reqHeaders       map[string]string
	total            int
	writes           [][]byte
	queries          int
	receivedResponse bool
	closed           int

	pending  []byte
	lastRead int
}

func (fs *fakeStream) SetTimeouts(t httpio.Timeouts) { fs.timeouts = t }

func (fs *fakeStream) Send(headers map[string]string, first []byte, total int) error {
	if fs.sendErr != nil {
		return fs.sendErr
	}
	fs.reqHeaders = headers
	fs.total = total
	fs.writes = append(fs.writes, slices.Clone(first))
	return nil
}

func (fs *fakeStream) Write(chunk []byte) error {
	if fs.writeErr != nil {
		return fs.writeErr
	}
	fs.writes = append(fs.writes, slices.Clone(chunk))
	return nil
}

func (fs *fakeStream) QueryAvailable() error {
	if fs.queryErr != nil {
		return fs.queryErr
	}
	fs.queries++
	return nil
}

func (fs *fakeStream) Read(dst []byte) error {
	if fs.readErr != nil {
		return fs.readErr
	}
	fs.lastRead = copy(dst, fs.pending)
	fs.pending = fs.pending[fs.lastRead:]
	return nil
}

func (fs *fakeStream) ReceiveResponse() error {
	if fs.receiveErr != nil {
		return fs.receiveErr
	}
	fs.receivedResponse = true
	return nil
}

func (fs *fakeStream) StatusCode() (int, error) { return fs.statusCode, nil }

func (fs *fakeStream) Header(name string) (string, bool) {
	v, ok := fs.respHeaders[name]
	return v, ok
}

func (fs *fakeStream) Close() error {
	fs.closed++
	return nil
}

// deliver invokes the registered callback the way a provider worker would.
func (fs *fakeStream) deliver(ev httpio.Event) {
	fs.cb(fs.token, ev)
}

// body returns everything the core handed to the transport, first chunk
// included.
func (fs *fakeStream) body() []byte {
	var b []byte
	for _, w := range fs.writes {
		b = append(b, w...)
	}
	return b
}

// driveUpload acknowledges send/write completions until the core switches to
// response reception or gives up.
func (fs *fakeStream) driveUpload(t *testing.T) {
	t.Helper()
	fs.deliver(httpio.Event{Kind: httpio.EventSendComplete})
	for i := 0; !fs.receivedResponse && i < 100; i++ {
		fs.deliver(httpio.Event{Kind: httpio.EventWriteComplete})
	}
	if !fs.receivedResponse {
		t.Fatal("upload never finished")
	}
}

// serveChunk stages one response body chunk and delivers the matching
// data-available/read-complete pair.
func (fs *fakeStream) serveChunk(chunk []byte) {
	fs.pending = chunk
	fs.deliver(httpio.Event{Kind: httpio.EventDataAvailable, Size: len(chunk)})
	fs.deliver(httpio.Event{Kind: httpio.EventReadComplete, Length: fs.lastRead})
}

// serveResponse plays back a whole response: headers, body chunks, end of
// stream.
func (fs *fakeStream) serveResponse(chunks ...[]byte) {
	fs.deliver(httpio.Event{Kind: httpio.EventHeadersAvailable})
	for _, chunk := range chunks {
		fs.serveChunk(chunk)
	}
	fs.deliver(httpio.Event{Kind: httpio.EventDataAvailable, Size: 0})
}
