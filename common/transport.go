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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteBufferSize = 1 << 20

// ErrConnectionClosed is returned when the remote-debugging connection is
// closed by the browser or by the client.
var ErrConnectionClosed = errors.New("connection closed")

// Transport carries raw remote-debugging protocol messages between the
// client and a browser.
type Transport interface {
	// Read blocks until the next message is received.
	Read() ([]byte, error)
	// Write sends a single message.
	Write(msg []byte) error
	// Close releases the underlying resources. It's safe to call Close
	// more than once.
	Close() error
}

// wsTransport speaks the protocol over a WebSocket connection.
type wsTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

// DialWebSocket connects to the browser's WebSocket debugger URL.
func DialWebSocket(ctx context.Context, wsURL string) (Transport, error) {
	wsd := websocket.Dialer{
		HandshakeTimeout: time.Second * 60,
		Proxy:            http.ProxyFromEnvironment,
		WriteBufferSize:  wsWriteBufferSize,
	}
	conn, _, err := wsd.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", wsURL, err)
	}

	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Read() ([]byte, error) {
	_, buf, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		return nil, err //nolint:wrapcheck
	}
	return buf, nil
}

func (t *wsTransport) Write(msg []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, msg) //nolint:wrapcheck
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second),
		)
		err = t.conn.Close()
	})
	return err //nolint:wrapcheck
}

// pipeTransport speaks the protocol over a pair of pipes, as set up by
// --remote-debugging-pipe. Messages are NUL terminated.
type pipeTransport struct {
	r *bufio.Reader
	w io.WriteCloser
	c io.Closer

	mu        sync.Mutex
	closeOnce sync.Once
}

// newPipeTransport returns a transport reading from r and writing to w.
func newPipeTransport(r io.ReadCloser, w io.WriteCloser) *pipeTransport {
	return &pipeTransport{
		r: bufio.NewReader(r),
		w: w,
		c: r,
	}
}

func (t *pipeTransport) Read() ([]byte, error) {
	buf, err := t.r.ReadBytes(0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("reading from pipe: %w", err)
	}
	return bytes.TrimSuffix(buf, []byte{0}), nil
}

func (t *pipeTransport) Write(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, msg...)
	buf = append(buf, 0)
	if _, err := t.w.Write(buf); err != nil {
		return fmt.Errorf("writing to pipe: %w", err)
	}
	return nil
}

func (t *pipeTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = errors.Join(t.w.Close(), t.c.Close())
	})
	return err
}
