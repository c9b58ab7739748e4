// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package pbp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrClientClosed is returned by calls pending when the client's read
// loop ends.
var ErrClientClosed = errors.New("rpc client closed")

// Client multiplexes unary calls and server streams over one framed byte
// stream. Run must be started for any call to complete; when Run returns,
// every pending call and open stream fails.
type Client struct {
	rw  io.ReadWriteCloser
	log logrus.FieldLogger

	wmu sync.Mutex // serializes frame writes

	mu       sync.Mutex
	nextCall uint32
	pending  map[uint32]chan *Packet
	streams  map[uint32]*Stream
	done     chan struct{}
	runErr   error
}

// Stream delivers server-stream messages in arrival order. C is closed
// when the stream ends, whether by error packet or client teardown.
type Stream struct {
	C    <-chan *Packet
	c    chan *Packet
	call uint32
	once sync.Once
}

func (s *Stream) close() {
	s.once.Do(func() { close(s.c) })
}

// NewClient wraps a framed transport in an RPC client.
func NewClient(rw io.ReadWriteCloser, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		rw:      rw,
		log:     log.WithField("component", "pbp-client"),
		pending: make(map[uint32]chan *Packet),
		streams: make(map[uint32]*Stream),
		done:    make(chan struct{}),
	}
}

// Run is the read loop. It decodes frames off the transport and routes
// packets to pending calls and streams until the transport fails or
// ends, then fails all outstanding work and returns the cause.
func (c *Client) Run() error {
	dec := NewDecoder()
	buf := make([]byte, 1024)

	var cause error
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			for _, b := range buf[:n] {
				p, derr := dec.DecodeByte(b)
				if derr != nil {
					c.log.WithError(derr).Trace("dropping frame")
					continue
				}
				if p != nil {
					c.route(p)
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				cause = fmt.Errorf("transport read: %w", err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	c.log.WithField("stats", dec.Stats()).Debug("read loop ended")
	c.teardown(cause)
	return cause
}

// Close closes the underlying transport, which unblocks Run.
func (c *Client) Close() error {
	return c.rw.Close()
}

func (c *Client) teardown(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runErr == nil {
		c.runErr = cause
		if c.runErr == nil {
			c.runErr = ErrClientClosed
		}
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	for id, s := range c.streams {
		s.close()
		delete(c.streams, id)
	}
}

func (c *Client) route(p *Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch p.Type {
	case TypeResponse:
		ch, ok := c.pending[p.Call]
		if !ok {
			c.log.WithField("call", p.Call).Trace("response for unknown call")
			return
		}
		delete(c.pending, p.Call)
		ch <- p
		close(ch)

	case TypeServerStream:
		s, ok := c.streams[p.Call]
		if !ok {
			c.log.WithField("call", p.Call).Trace("message for unknown stream")
			return
		}
		select {
		case s.c <- p:
		default:
			c.log.WithField("call", p.Call).Trace("stream buffer full, dropping message")
		}

	case TypeError:
		if ch, ok := c.pending[p.Call]; ok {
			delete(c.pending, p.Call)
			close(ch)
		}
		if s, ok := c.streams[p.Call]; ok {
			delete(c.streams, p.Call)
			s.close()
		}

	default:
		c.log.WithField("type", p.Type).Trace("unexpected packet type")
	}
}

func (c *Client) send(p *Packet) error {
	frame, err := EncodePacket(p)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.rw.Write(frame); err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}

// Call performs a unary request and waits for the matching response
// payload, bounded by ctx.
func (c *Client) Call(ctx context.Context, channel, service, method uint32, payload []byte) ([]byte, error) {
	c.mu.Lock()
	if c.runErr != nil {
		c.mu.Unlock()
		return nil, c.runErr
	}
	c.nextCall++
	id := c.nextCall
	ch := make(chan *Packet, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := &Packet{
		Channel: channel,
		Type:    TypeRequest,
		Service: service,
		Method:  method,
		Call:    id,
		Payload: payload,
	}
	if err := c.send(req); err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case p, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("call %d failed: %w", id, c.err())
		}
		return p.Payload, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.done:
		c.forget(id)
		return nil, c.err()
	}
}

// Subscribe opens a server stream. Messages are delivered on the
// returned stream's channel, buffered to buf messages; the channel is
// closed when the stream or the client ends.
func (c *Client) Subscribe(channel, service, method uint32, payload []byte, buf int) (*Stream, error) {
	if buf < 1 {
		buf = 1
	}

	c.mu.Lock()
	if c.runErr != nil {
		c.mu.Unlock()
		return nil, c.runErr
	}
	c.nextCall++
	id := c.nextCall
	s := &Stream{c: make(chan *Packet, buf), call: id}
	s.C = s.c
	c.streams[id] = s
	c.mu.Unlock()

	req := &Packet{
		Channel: channel,
		Type:    TypeRequest,
		Service: service,
		Method:  method,
		Call:    id,
		Payload: payload,
	}
	if err := c.send(req); err != nil {
		c.mu.Lock()
		delete(c.streams, id)
		c.mu.Unlock()
		s.close()
		return nil, err
	}
	return s, nil
}

func (c *Client) forget(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runErr != nil {
		return c.runErr
	}
	return ErrClientClosed
}
