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

// TransportError wraps a provider-level failure with the command that
// produced it. Providers attach it to EventRequestError so callers hooking
// the tracer or a custom provider can tell phases apart; the exchange core
// itself only distinguishes timeout from non-timeout.
type TransportError struct {
	// Op names the failed command, e.g. "send", "read", "receive-response".
	Op string
	// Err is the underlying cause.
	Err error
	// Timeout marks a plain operation timeout.
	Timeout bool
}

func (e *TransportError) Error() string {
	return "httpio: transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
