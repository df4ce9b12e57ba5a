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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errFinalizeFailure = errors.New("httpio: exchange finished without success")

// startExchangeSpan opens the span covering one exchange from submission to
// its terminal transition.
func startExchangeSpan(ctx context.Context, tracer trace.Tracer, req *Request, tgt target) trace.Span {
	_, span := tracer.Start(ctx, "httpio.Post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("url.full", req.URL),
			attribute.String("server.address", tgt.host),
			attribute.Int("server.port", tgt.port),
			attribute.Bool("tls", tgt.secure),
		),
	)
	return span
}

// endExchangeSpan closes the exchange span with its byte counters and final
// HTTP status. Span ends are idempotent, a stray duplicate terminal event
// cannot corrupt the trace.
func endExchangeSpan(hx *exchange, err error) {
	if hx.span == nil {
		return
	}
	hx.span.SetAttributes(
		attribute.Int("bytes_sent", hx.sent),
		attribute.Int("bytes_received", hx.received),
	)
	if hx.req != nil {
		hx.span.SetAttributes(attribute.Int("http.status_code", hx.req.HTTPStatus))
	}
	if err != nil {
		hx.span.SetStatus(codes.Error, err.Error())
	} else {
		hx.span.SetStatus(codes.Ok, "")
	}
	hx.span.End()
}
