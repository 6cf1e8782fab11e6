/*
 *
 * brave-devtools-session - resolves a single Brave remote-debugging session
 * Copyright (C) 2025 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/mailru/easyjson"

	"github.com/liuxd6825/brave-devtools-session/log"
)

// Ensure Connection implements the cdp.Executor interface.
var _ cdp.Executor = &Connection{}

// EventHandler handles a protocol event. ev is the decoded event value,
// e.g. *target.EventTargetCreated.
type EventHandler func(method cdproto.MethodType, ev any)

/*
Connection represents the root "Browser Session" over a Transport.

It reads JSON-RPC messages from the transport and either hands them to the
command waiting for the response, identified by the message ID, or decodes
them as events and passes them to the registered event handlers. Commands
are queued on the outgoing channel and written by a single send loop.

Every command is bounded by the protocol timeout.
*/
type Connection struct {
	logger    *log.Logger
	transport Transport
	timeout   time.Duration

	sendCh chan *cdproto.Message
	done   chan struct{}
	msgID  int64

	mu       sync.Mutex
	pending  map[int64]chan *cdproto.Message
	handlers []EventHandler
	closeErr error

	shutdownOnce sync.Once
}

// NewConnection starts reading and writing protocol messages on t.
// timeout bounds every command sent through Execute.
func NewConnection(t Transport, timeout time.Duration, logger *log.Logger) *Connection {
	c := &Connection{
		logger:    logger,
		transport: t,
		timeout:   timeout,
		sendCh:    make(chan *cdproto.Message, 32), // Avoid blocking in Execute
		done:      make(chan struct{}),
		pending:   make(map[int64]chan *cdproto.Message),
	}

	go c.recvLoop()
	go c.sendLoop()

	return c
}

// OnEvent registers h to receive every protocol event.
func (c *Connection) OnEvent(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Done returns a channel that's closed once the connection is lost.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// IsConnected returns true while the transport is open.
func (c *Connection) IsConnected() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Err returns the reason the connection was closed, or nil while it's open.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// Close closes the connection and its transport.
func (c *Connection) Close() error {
	return c.shutdown(ErrConnectionClosed)
}

func (c *Connection) shutdown(reason error) error {
	var err error
	c.shutdownOnce.Do(func() {
		c.logger.Debugf("Connection:shutdown", "reason: %v", reason)

		c.mu.Lock()
		c.closeErr = reason
		c.pending = make(map[int64]chan *cdproto.Message)
		c.mu.Unlock()

		err = c.transport.Close()
		close(c.done)
	})
	return err
}

func (c *Connection) recvLoop() {
	for {
		buf, err := c.transport.Read()
		if err != nil {
			if !errors.Is(err, ErrConnectionClosed) {
				err = fmt.Errorf("%w: %w", ErrConnectionClosed, err)
			}
			_ = c.shutdown(err)
			return
		}

		c.logger.Tracef("cdp:recv", "<- %s", buf)

		var msg cdproto.Message
		if err := easyjson.Unmarshal(buf, &msg); err != nil {
			c.logger.Errorf("cdp", "decoding message: %v", err)
			continue
		}

		switch {
		case msg.ID != 0:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- &msg
			}
		case msg.Method != "":
			c.emit(&msg)
		default:
			c.logger.Errorf("cdp", "ignoring malformed incoming message (missing id or method): %s", buf)
		}
	}
}

func (c *Connection) emit(msg *cdproto.Message) {
	ev, err := cdproto.UnmarshalMessage(msg)
	if err != nil {
		c.logger.Debugf("cdp", "skipping event %s: %v", msg.Method, err)
		return
	}

	c.mu.Lock()
	handlers := make([]EventHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg.Method, ev)
	}
}

func (c *Connection) sendLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			buf, err := easyjson.Marshal(msg)
			if err != nil {
				c.logger.Errorf("cdp", "encoding message: %v", err)
				continue
			}
			c.logger.Tracef("cdp:send", "-> %s", buf)
			if err := c.transport.Write(buf); err != nil {
				_ = c.shutdown(fmt.Errorf("%w: %w", ErrConnectionClosed, err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// Execute implements cdp.Executor and performs a synchronous send and receive.
func (c *Connection) Execute(
	ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler,
) error {
	msg := &cdproto.Message{
		ID:     atomic.AddInt64(&c.msgID, 1),
		Method: cdproto.MethodType(method),
	}
	if params != nil {
		buf, err := easyjson.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
		msg.Params = buf
	}

	ch := make(chan *cdproto.Message, 1)
	c.mu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mu.Unlock()
		return fmt.Errorf("executing %s: %w", method, err)
	}
	c.pending[msg.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case c.sendCh <- msg:
	case <-c.done:
		return fmt.Errorf("executing %s: %w", method, c.Err())
	case <-tctx.Done():
		return fmt.Errorf("executing %s: %w", method, tctx.Err())
	}

	select {
	case resp := <-ch:
		switch {
		case resp.Error != nil:
			return fmt.Errorf("executing %s: %w", method, resp.Error)
		case res != nil:
			return easyjson.Unmarshal(resp.Result, res) //nolint:wrapcheck
		}
		return nil
	case <-c.done:
		return fmt.Errorf("executing %s: %w", method, c.Err())
	case <-tctx.Done():
		return fmt.Errorf("executing %s: protocol timeout of %s exceeded: %w", method, c.timeout, tctx.Err())
	}
}
