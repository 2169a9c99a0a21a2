package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Callback receives either the matching reply or the error that ended the wait
type Callback func(reply *Reply, err error)

// Channel multiplexes concurrent requests over one connection to a worker.
// Each request gets a fresh correlation id. A reply is delivered to the
// callback registered under its id exactly once; replies with no id or an
// unknown id are dropped.
type Channel struct {
	conn   *Conn
	closer io.Closer

	mu      sync.Mutex
	lastID  uint64
	pending map[uint64]Callback
	closed  bool
}

// NewChannel wraps a connection. closer may be nil.
func NewChannel(r io.Reader, w io.Writer, closer io.Closer) *Channel {
	return &Channel{
		conn:    NewConn(r, w),
		closer:  closer,
		lastID:  1, // id 1 is never handed out
		pending: make(map[uint64]Callback),
	}
}

// Send registers cb and writes a request. If the write fails the callback is
// dropped and never invoked.
func (c *Channel) Send(cb Callback) (uint64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrChannelClosed
	}
	c.lastID++
	id := c.lastID
	c.pending[id] = cb
	c.mu.Unlock()

	if err := c.conn.Send(Request{ID: id}); err != nil {
		c.take(id)
		return 0, fmt.Errorf("failed to send request %d: %w", id, err)
	}
	return id, nil
}

// Request sends a request and waits for its reply. When ctx ends first the
// pending id is released and ErrNoReply is returned.
func (c *Channel) Request(ctx context.Context) (*Reply, error) {
	type result struct {
		reply *Reply
		err   error
	}
	done := make(chan result, 1)
	id, err := c.Send(func(reply *Reply, err error) {
		done <- result{reply, err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		return res.reply, res.err
	case <-ctx.Done():
		c.Cancel(id)
		return nil, fmt.Errorf("%w for request %d: %v", ErrNoReply, id, ctx.Err())
	}
}

// Cancel forgets a pending id. It reports whether the id was still pending.
func (c *Channel) Cancel(id uint64) bool {
	return c.take(id) != nil
}

func (c *Channel) take(id uint64) Callback {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return cb
}

// Dispatch delivers a reply to its callback. It reports whether a callback ran.
func (c *Channel) Dispatch(reply *Reply) bool {
	if reply == nil || reply.ID == 0 {
		return false
	}
	cb := c.take(reply.ID)
	if cb == nil {
		return false
	}
	cb(reply, nil)
	return true
}

// Pending returns the number of requests waiting for a reply
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Serve reads replies until the connection ends. Pending requests are then
// failed with ErrChannelClosed. A clean end of stream returns nil.
func (c *Channel) Serve() error {
	for {
		var reply Reply
		if err := c.conn.Receive(&reply); err != nil {
			c.shutdown()
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
		c.Dispatch(&reply)
	}
}

// Close fails every pending request and closes the underlying connection
func (c *Channel) Close() error {
	c.shutdown()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func (c *Channel) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint64]Callback)
	c.mu.Unlock()

	for _, cb := range pending {
		cb(nil, ErrChannelClosed)
	}
}
