// Package channel provides the in-memory duplex byte channel that captures a
// run's streaming output so a later report can replay it.
package channel

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Write after the writer end was closed.
var ErrClosed = errors.New("channel: write on closed channel")

// Channel is an unbounded byte queue with independent ends. Writes never
// block; reads block until data is available or the writer end is closed.
// A Channel is owned by a single artifact and consumed by a single reader.
type Channel struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	closed bool
	err    error
}

// New creates an empty, open Channel.
func New() *Channel {
	c := &Channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Write appends a copy of p.
func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	c.chunks = append(c.chunks, append([]byte(nil), p...))
	c.cond.Broadcast()
	return len(p), nil
}

// Close ends the writer side. Readers drain what was written, then see io.EOF.
func (c *Channel) Close() error {
	return c.CloseWithError(nil)
}

// CloseWithError ends the writer side; readers see err instead of io.EOF once
// the buffered data is drained. Closing twice keeps the first error.
func (c *Channel) CloseWithError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.err = err
	c.cond.Broadcast()
	return nil
}

// Read reads buffered bytes, blocking while the channel is empty and open.
func (c *Channel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.chunks) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := copy(p, c.chunks[0])
	if n == len(c.chunks[0]) {
		c.chunks[0] = nil
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = c.chunks[0][n:]
	}
	return n, nil
}

// Buffered reports the number of unread bytes.
func (c *Channel) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, chunk := range c.chunks {
		n += len(chunk)
	}
	return n
}

var _ io.ReadWriteCloser = (*Channel)(nil)
