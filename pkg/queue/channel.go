/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package queue holds the bounded FIFO that connects connection readers to
// the single dispatcher.
package queue

import (
	"sync"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

const DefaultCapacity = 1000

// ReplyWriter is the connection handle carried by a Request. The dispatcher
// is the only caller of WriteReply for a given Request.
type ReplyWriter interface {
	WriteReply(resp string) error
}

// Request is one framed message waiting for the dispatcher.
type Request struct {
	Conn    ReplyWriter
	Message string
	// Remote and Transport identify the client for logs and metrics.
	Remote    string
	Transport string
}

// Channel is a bounded circular buffer guarded by one mutex and a pair of
// conditions. Items are delivered in insertion order regardless of which
// producer inserted them.
type Channel struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf    []Request
	head   int
	tail   int
	count  int
	closed bool

	// onDepth sees the new length after every accepted Enqueue and Dequeue.
	onDepth func(depth int)

	// parked producers and consumers, for tests
	waitingProducers int
	waitingConsumers int
}

type Opt func(c *Channel)

// WithDepthObserver reports the queue length after each change. f runs with
// the channel locked and must not call back into it.
func WithDepthObserver(f func(depth int)) Opt {
	return func(c *Channel) {
		c.onDepth = f
	}
}

func NewChannel(capacity int, opts ...Opt) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Channel{buf: make([]Request, capacity)}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Channel) reportDepth() {
	if c.onDepth != nil {
		c.onDepth(c.count)
	}
}

// Enqueue blocks while the channel is full. It returns ErrClosed if the
// channel is closed before the request is accepted.
func (c *Channel) Enqueue(r Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.count == len(c.buf) && !c.closed {
		c.waitingProducers++
		c.notFull.Wait()
		c.waitingProducers--
	}
	if c.closed {
		return errdefs.ErrClosed
	}
	c.buf[c.tail] = r
	c.tail = (c.tail + 1) % len(c.buf)
	c.count++
	c.reportDepth()
	c.notEmpty.Signal()
	return nil
}

// Dequeue blocks while the channel is empty. After Close it keeps handing
// out queued requests and returns ErrClosed once none are left.
func (c *Channel) Dequeue() (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.count == 0 && !c.closed {
		c.waitingConsumers++
		c.notEmpty.Wait()
		c.waitingConsumers--
	}
	if c.count == 0 {
		return Request{}, errdefs.ErrClosed
	}
	r := c.buf[c.head]
	c.buf[c.head] = Request{}
	c.head = (c.head + 1) % len(c.buf)
	c.count--
	c.reportDepth()
	c.notFull.Signal()
	return r, nil
}

// Close rejects further Enqueue calls and wakes every waiter.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
}

// IsEmpty is a non-blocking snapshot.
func (c *Channel) IsEmpty() bool {
	return c.Len() == 0
}

func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Channel) Cap() int {
	return len(c.buf)
}

func (c *Channel) waiters() (producers, consumers int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitingProducers, c.waitingConsumers
}
