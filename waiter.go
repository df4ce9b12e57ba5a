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

// Waiter is the external event loop integration. The client never runs a
// loop of its own; it hands the loop its wake channel once and reports
// connectivity transitions as they become provable.
type Waiter interface {
	// RegisterWakeSource receives the session's level-triggered wake channel
	// so the loop can multiplex it alongside its other sources. flags are
	// opaque interest flags forwarded verbatim from RegisterWaiter.
	RegisterWakeSource(wake <-chan struct{}, flags int)
	// NotifyConnectivity reports that the network became reachable or
	// unreachable. Invoked under the session lock; implementations must not
	// call back into the Client.
	NotifyConnectivity(reachable bool)
}

// RegisterWaiter attaches an external waiter to the session and hands it the
// wake channel. At most one waiter is active; registering again replaces it.
func (c *Client) RegisterWaiter(w Waiter, flags int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiter = w
	if w != nil {
		w.RegisterWakeSource(c.wake, flags)
	}
}

// inetStatus pushes a connectivity notification to the registered waiter.
// Only transitions are reported: the first observation, and every change
// after it. Runs with the session lock held.
func (c *Client) inetStatus(up bool) {
	if c.waiter == nil {
		return
	}
	if c.connKnown && c.connUp == up {
		return
	}
	c.connKnown = true
	c.connUp = up
	c.waiter.NotifyConnectivity(up)
}
