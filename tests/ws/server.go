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

// Package ws provides a WebSocket server that can be used as a test
// alternative to a real CDP compatible browser.
package ws

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/require"
)

// DefaultTargets is the list of targets CDPDefaultHandler reports from
// Target.getTargets.
const DefaultTargets = `{
	"targetInfos": [
		{"targetId": "T1", "type": "page", "title": "New Tab", "url": "brave://newtab/", "attached": false, "canAccessOpener": false},
		{"targetId": "T2", "type": "page", "title": "Settings", "url": "brave://settings", "attached": false, "canAccessOpener": false},
		{"targetId": "T3", "type": "page", "title": "Example", "url": "https://example.com", "attached": false, "canAccessOpener": false},
		{"targetId": "T4", "type": "page", "title": "DevTools", "url": "devtools://devtools/x", "attached": false, "canAccessOpener": false},
		{"targetId": "T5", "type": "background_page", "title": "Wallet", "url": "brave-extension://abc/bg.html", "attached": false, "canAccessOpener": false}
	]
}`

// Server can be used as a test alternative to a real CDP compatible browser.
type Server struct {
	t          testing.TB
	Mux        *http.ServeMux
	ServerHTTP *httptest.Server

	disconnect     chan struct{}
	disconnectOnce sync.Once
}

// NewServer returns a fully configured and running WS test server.
func NewServer(t testing.TB, opts ...func(*Server)) *Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	s := &Server{
		t:          t,
		Mux:        mux,
		ServerHTTP: server,
		disconnect: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WSURL returns the WebSocket URL of path on the server.
func (s *Server) WSURL(path string) string {
	u, err := url.Parse(s.ServerHTTP.URL)
	require.NoError(s.t, err)
	return fmt.Sprintf("ws://%s%s", u.Host, path)
}

// HTTPURL returns the HTTP URL of the server.
func (s *Server) HTTPURL() string {
	return s.ServerHTTP.URL
}

// WithVersionHandler serves /json/version, advertising the CDP handler
// at wsPath as the browser's WebSocket debugger URL.
func WithVersionHandler(wsPath string) func(*Server) {
	return func(s *Server) {
		s.Mux.HandleFunc("/json/version", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"Browser": "Brave/1.70.0", "Protocol-Version": "1.3", "webSocketDebuggerUrl": %q}`,
				s.WSURL(wsPath))
		})
	}
}

// WithClosureAbnormalHandler attaches an abnormal closure behavior to Server.
func WithClosureAbnormalHandler(path string) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		// This forces a connection closure without a proper WS close message exchange
		_ = conn.Close()
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// WithEchoHandler attaches an echo handler to Server.
func WithEchoHandler(path string) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			messageType, r, err := conn.NextReader()
			if err != nil {
				return
			}
			wc, err := conn.NextWriter(messageType)
			if err != nil {
				return
			}
			if _, err = io.Copy(wc, r); err != nil {
				return
			}
			if err = wc.Close(); err != nil {
				return
			}
		}
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// Recorder records the methods of the commands received by a CDP handler.
type Recorder struct {
	mu      sync.Mutex
	methods []cdproto.MethodType
}

func (r *Recorder) record(m cdproto.MethodType) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = append(r.methods, m)
}

// Methods returns the recorded methods in the order they were received.
func (r *Recorder) Methods() []cdproto.MethodType {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := make([]cdproto.MethodType, len(r.methods))
	copy(m, r.methods)
	return m
}

// CDPHandlerFunc handles a single message received by the CDP server.
// Replies and events are written to writeCh.
type CDPHandlerFunc func(msg *cdproto.Message, writeCh chan<- cdproto.Message, done <-chan struct{})

// WithCDPHandler attaches a custom CDP handler function to Server.
func WithCDPHandler(path string, fn CDPHandlerFunc, rec *Recorder) func(*Server) {
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.serveCDP(w, req, fn, rec)
		}))
	}
}

func (s *Server) serveCDP(w http.ResponseWriter, req *http.Request, fn CDPHandlerFunc, rec *Recorder) {
	conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	writeCh := make(chan cdproto.Message)

	go func() {
		defer close(done)
		for {
			_, buf, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg cdproto.Message
			if err := easyjson.Unmarshal(buf, &msg); err != nil {
				return
			}
			if msg.Method != "" {
				rec.record(msg.Method)
			}
			fn(&msg, writeCh, done)
		}
	}()

	for {
		select {
		case msg := <-writeCh:
			buf, err := easyjson.Marshal(&msg)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				return
			}
		case <-s.disconnect:
			// Drop the connection like a crashing browser would.
			return
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		}
	}
}

// DisconnectClients drops the connections of all the CDP handlers.
func (s *Server) DisconnectClients() {
	s.disconnectOnce.Do(func() { close(s.disconnect) })
}

// Reply writes a result for msg to writeCh.
func Reply(msg *cdproto.Message, result string, writeCh chan<- cdproto.Message, done <-chan struct{}) {
	select {
	case writeCh <- cdproto.Message{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Result:    easyjson.RawMessage(result),
	}:
	case <-done:
	}
}

// Emit writes an event to writeCh.
func Emit(method cdproto.MethodType, params string, writeCh chan<- cdproto.Message, done <-chan struct{}) {
	select {
	case writeCh <- cdproto.Message{
		Method: method,
		Params: easyjson.RawMessage(params),
	}:
	case <-done:
	}
}

// CDPDefaultHandler is a default handler for the CDP WS server. It acts as
// a browser with the DefaultTargets open.
func CDPDefaultHandler(msg *cdproto.Message, writeCh chan<- cdproto.Message, done <-chan struct{}) {
	if msg.ID == 0 {
		return
	}
	switch msg.Method {
	case cdproto.CommandTargetGetTargets:
		Reply(msg, DefaultTargets, writeCh, done)
	case cdproto.CommandBrowserGetVersion:
		Reply(msg, `{
			"protocolVersion": "1.3",
			"product": "Brave/1.70.0",
			"revision": "@abc",
			"userAgent": "Mozilla/5.0",
			"jsVersion": "12.0"
		}`, writeCh, done)
	default:
		Reply(msg, "{}", writeCh, done)
	}
}
