// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import "sync"

// result settles one waiter: a new access token or the refresh error.
type result struct {
	token string
	err   error
}

// coordinator is the refresh state for one transport. At most one refresh is
// in flight; waiters are settled in the order they were queued.
type coordinator struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []func(result)
}

// enqueue adds a waiter. Caller holds mu.
func (c *coordinator) enqueue() <-chan result {
	ch := make(chan result, 1) // buffered so settle never blocks on a waiter that gave up
	c.add(func(res result) { ch <- res })
	return ch
}

// add queues deliver behind the current waiters. Caller holds mu.
func (c *coordinator) add(deliver func(result)) {
	c.waiters = append(c.waiters, deliver)
}

// settle ends the cycle and resolves every waiter FIFO with res.
func (c *coordinator) settle(res result) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	for _, deliver := range waiters {
		deliver(res)
	}
}

// pending returns the number of queued waiters.
func (c *coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// refreshing reports whether a refresh is in flight.
func (c *coordinator) refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
