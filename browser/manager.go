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

// Package browser hands out the single remote-debugging session a process
// works with.
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/chromedp/cdproto/target"
	"golang.org/x/sync/singleflight"

	"github.com/liuxd6825/brave-devtools-session/chromium"
	"github.com/liuxd6825/brave-devtools-session/common"
	"github.com/liuxd6825/brave-devtools-session/log"
)

// Options selects how a session is obtained. A non-empty BrowserURL
// attaches to a running browser, the other fields are ignored then.
type Options struct {
	BrowserURL string

	ExecutablePath string
	CustomDevTools string
	UserDataDir    string
	Headless       bool
	Isolated       bool
	LogSink        io.Writer
	Args           []string
}

func (o Options) launchOptions() chromium.LaunchOptions {
	return chromium.LaunchOptions{
		ExecutablePath: o.ExecutablePath,
		CustomDevTools: o.CustomDevTools,
		UserDataDir:    o.UserDataDir,
		Headless:       o.Headless,
		Isolated:       o.Isolated,
		LogSink:        o.LogSink,
		Args:           o.Args,
	}
}

// Session is a live remote-debugging session. It's owned by the Manager
// that returned it.
type Session struct {
	conn     chromium.Conn
	proc     *common.BrowserProcess
	endpoint string

	// unwatched is closed once the Manager stopped watching the session.
	unwatched chan struct{}
}

// NewSession returns a Session over conn. proc is nil for a browser we
// attached to.
func NewSession(conn chromium.Conn, proc *common.BrowserProcess, endpoint string) *Session {
	return &Session{
		conn:      conn,
		proc:      proc,
		endpoint:  endpoint,
		unwatched: make(chan struct{}),
	}
}

// IsConnected reports whether the session is still usable.
func (s *Session) IsConnected() bool { return s.conn.IsConnected() }

// Done is closed once the session is lost.
func (s *Session) Done() <-chan struct{} { return s.conn.Done() }

// Targets returns the browsing contexts visible to automation.
func (s *Session) Targets() []*target.Info { return s.conn.Targets() }

// Endpoint returns the URL the session was attached through. It's empty
// for a browser launched with a pipe transport.
func (s *Session) Endpoint() string { return s.endpoint }

// Process returns the browser process, or nil when the browser wasn't
// launched by us.
func (s *Session) Process() *common.BrowserProcess { return s.proc }

// Close closes the session. A launched browser is shut down.
func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

type sessionBuildFunc func(ctx context.Context, opts Options) (*Session, error)

// sessionKey is the only singleflight key: there's one slot per Manager.
const sessionKey = "session"

// Manager keeps at most one live Session. Concurrent requests for a session
// while none is live share a single launch or connect attempt.
type Manager struct {
	logger *log.Logger

	mu      sync.Mutex
	current *Session

	group   singleflight.Group
	buildFn sessionBuildFunc
}

// NewManager returns a Manager obtaining its sessions through bt.
func NewManager(bt *chromium.BrowserType, logger *log.Logger) *Manager {
	builder := func(ctx context.Context, opts Options) (*Session, error) {
		if opts.BrowserURL != "" {
			conn, err := bt.Connect(ctx, chromium.ConnectOptions{BrowserURL: opts.BrowserURL})
			if err != nil {
				return nil, err //nolint:wrapcheck
			}
			return NewSession(conn, nil, opts.BrowserURL), nil
		}

		conn, proc, err := bt.Launch(ctx, opts.launchOptions())
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		var endpoint string
		if proc != nil {
			endpoint = proc.WsURL()
		}
		return NewSession(conn, proc, endpoint), nil
	}

	return newManager(builder, logger)
}

func newManager(buildFn sessionBuildFunc, logger *log.Logger) *Manager {
	return &Manager{
		logger:  logger,
		buildFn: buildFn,
	}
}

// ResolveSession returns the live session, or obtains one according to
// opts. Options only matter when no session is live.
//
// Callers that arrive while a session is being obtained wait for that
// attempt and share its result, including its error. A failed attempt
// isn't remembered: the next call tries again.
//
// ctx only bounds how long the caller waits. The attempt itself keeps the
// values of the caller that started it but isn't cancelled with it.
func (m *Manager) ResolveSession(ctx context.Context, opts Options) (*Session, error) {
	if s := m.session(); s != nil {
		return s, nil
	}

	ch := m.group.DoChan(sessionKey, func() (any, error) {
		// A previous attempt may have finished after our first check.
		if s := m.session(); s != nil {
			return s, nil
		}
		m.logger.Debugf("Manager:ResolveSession", "obtaining session remote=%t", opts.BrowserURL != "")
		// The attempt is shared: a caller giving up must not fail it for
		// the others.
		s, err := m.buildFn(context.WithoutCancel(ctx), opts)
		if err != nil {
			m.logger.Debugf("Manager:ResolveSession", "obtaining session: %v", err)
			return nil, err
		}
		m.setSession(s)
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err //nolint:wrapcheck
		}
		return res.Val.(*Session), nil //nolint:forcetypeassert
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser session: %w", ctx.Err())
	}
}

// session returns the current session if it's still connected.
func (m *Manager) session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	if !m.current.IsConnected() {
		m.current = nil
		return nil
	}
	return m.current
}

func (m *Manager) setSession(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	go m.watch(s)
}

// watch empties the slot once s is lost, so that the next request obtains
// a new session.
func (m *Manager) watch(s *Session) {
	defer close(s.unwatched)

	<-s.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.logger.Debugf("Manager:watch", "session disconnected")
		m.current = nil
	}
}

// Close closes the current session, if any, and empties the slot.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.Close(ctx); err != nil {
		return fmt.Errorf("closing browser session: %w", err)
	}

	select {
	case <-s.unwatched:
	case <-ctx.Done():
	}

	return nil
}
