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
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpcc/httpio"
)

func setup(t *testing.T, opts ...httpio.ClientOption) (*httpio.Client, *fakeTransport) {
	t.Helper()

	ft := &fakeTransport{}
	client, err := httpio.New(ft, opts...)
	require.NoError(t, err)
	return client, ft
}

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(7))
	payload := make([]byte, n)
	_, err := rng.Read(payload)
	require.NoError(t, err)
	return payload
}

func gzipPayload(t *testing.T, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fakeWaiter struct {
	wake  <-chan struct{}
	flags int

	// request status captured at each connectivity notification
	notifications []bool
	statusAt      []httpio.Status
	watch         *httpio.Request
}

func (w *fakeWaiter) RegisterWakeSource(wake <-chan struct{}, flags int) {
	w.wake = wake
	w.flags = flags
}

func (w *fakeWaiter) NotifyConnectivity(reachable bool) {
	w.notifications = append(w.notifications, reachable)
	if w.watch != nil {
		w.statusAt = append(w.statusAt, w.watch.Status)
	}
}

func TestNew(t *testing.T) {
	t.Run("fail, nil transport", func(t *testing.T) {
		_, err := httpio.New(nil)
		require.Error(t, err)
	})

	t.Run("fail, empty user agent", func(t *testing.T) {
		_, err := httpio.New(&fakeTransport{}, httpio.WithUserAgent(""))
		require.Error(t, err)
	})

	t.Run("fail, nil tracer", func(t *testing.T) {
		_, err := httpio.New(&fakeTransport{}, httpio.WithTracer(nil))
		require.Error(t, err)
	})

	t.Run("ok, defaults", func(t *testing.T) {
		client, err := httpio.New(&fakeTransport{})
		require.NoError(t, err)
		require.NotNil(t, client.WakeChan())
	})
}

func TestRegisterWaiter(t *testing.T) {
	t.Run("ok, wake source handed over", func(t *testing.T) {
		client, _ := setup(t)

		w := &fakeWaiter{}
		client.RegisterWaiter(w, 3)

		require.NotNil(t, w.wake)
		assert.Equal(t, 3, w.flags)
		assert.Equal(t, client.WakeChan(), w.wake)
	})
}

func TestUserAgentHeader(t *testing.T) {
	t.Run("ok, user agent emitted on send", func(t *testing.T) {
		client, ft := setup(t, httpio.WithUserAgent("httpio-test/1.0"))

		req := &httpio.Request{URL: "http://example.com/cs", Out: []byte("{}")}
		client.Post(context.Background(), req, nil)
		require.Equal(t, httpio.StatusInflight, client.Status(req))

		fs := ft.lastStream(t)
		assert.Equal(t, "httpio-test/1.0", fs.reqHeaders["User-Agent"])
	})
}

func TestMetrics(t *testing.T) {
	t.Run("ok, outcome and byte counters", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		client, ft := setup(t, httpio.WithMetrics(reg))

		req := &httpio.Request{URL: "http://example.com/cs", Out: []byte("payload")}
		client.Post(context.Background(), req, nil)
		fs := ft.lastStream(t)
		fs.driveUpload(t)
		fs.serveResponse([]byte("response"))
		require.Equal(t, httpio.StatusSuccess, client.Status(req))

		families, err := reg.Gather()
		require.NoError(t, err)

		byName := map[string]float64{}
		for _, mf := range families {
			for _, m := range mf.GetMetric() {
				name := mf.GetName()
				for _, l := range m.GetLabel() {
					name += "/" + l.GetValue()
				}
				if m.GetCounter() != nil {
					byName[name] = m.GetCounter().GetValue()
				} else if m.GetGauge() != nil {
					byName[name] = m.GetGauge().GetValue()
				}
			}
		}

		assert.Equal(t, float64(1), byName["httpio_exchanges_total/success"])
		assert.Equal(t, float64(0), byName["httpio_exchanges_inflight"])
		assert.Equal(t, float64(len("payload")), byName["httpio_request_bytes_total"])
		assert.Equal(t, float64(len("response")), byName["httpio_response_bytes_total"])
	})

	t.Run("ok, rejected submissions counted", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		client, _ := setup(t, httpio.WithMetrics(reg))

		req := &httpio.Request{URL: "not a url"}
		client.Post(context.Background(), req, nil)
		require.Equal(t, httpio.StatusFailure, client.Status(req))

		families, err := reg.Gather()
		require.NoError(t, err)
		found := false
		for _, mf := range families {
			if mf.GetName() != "httpio_exchanges_total" {
				continue
			}
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetValue() == "rejected" {
						found = true
						assert.Equal(t, float64(1), m.GetCounter().GetValue())
					}
				}
			}
		}
		assert.True(t, found)
	})
}
