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

package browser

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/liuxd6825/brave-devtools-session/chromium"
	"github.com/liuxd6825/brave-devtools-session/common"
	"github.com/liuxd6825/brave-devtools-session/log"
	"github.com/liuxd6825/brave-devtools-session/tests"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	done chan struct{}
	once sync.Once
}

func newFakeConn() *fakeConn { return &fakeConn{done: make(chan struct{})} }

func (c *fakeConn) IsConnected() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *fakeConn) Done() <-chan struct{}   { return c.done }
func (c *fakeConn) Targets() []*target.Info { return nil }

func (c *fakeConn) Close(context.Context) error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// countingBuilder returns a build function that counts its calls and
// hands out sessions over fresh fake connections.
func countingBuilder(calls *atomic.Int32) sessionBuildFunc {
	return func(context.Context, Options) (*Session, error) {
		calls.Add(1)
		return NewSession(newFakeConn(), nil, ""), nil
	}
}

func closeManager(t *testing.T, m *Manager) {
	t.Helper()
	t.Cleanup(func() { require.NoError(t, m.Close(context.Background())) })
}

func TestManagerReusesSession(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	m := newManager(countingBuilder(&calls), log.NewNullLogger())
	closeManager(t, m)

	s1, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)
	s2, err := m.ResolveSession(context.Background(), Options{Headless: true})
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.EqualValues(t, 1, calls.Load())
}

func TestManagerConcurrentCallersShareOneAttempt(t *testing.T) {
	t.Parallel()

	const callers = 50

	var calls atomic.Int32
	release := make(chan struct{})
	build := func(ctx context.Context, opts Options) (*Session, error) {
		<-release
		return countingBuilder(&calls)(ctx, opts)
	}
	m := newManager(build, log.NewNullLogger())
	closeManager(t, m)

	var (
		wg       sync.WaitGroup
		sessions = make([]*Session, callers)
		errs     = make([]error, callers)
		started  sync.WaitGroup
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			sessions[i], errs[i] = m.ResolveSession(context.Background(), Options{})
		}(i)
	}
	started.Wait()
	// Give the callers a chance to join the attempt before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := range sessions {
		require.NoError(t, errs[i])
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestManagerSharesFailure(t *testing.T) {
	t.Parallel()

	errLaunch := errors.New("browser exploded")

	var calls atomic.Int32
	release := make(chan struct{})
	build := func(context.Context, Options) (*Session, error) {
		if calls.Add(1) == 1 {
			<-release
			return nil, errLaunch
		}
		return NewSession(newFakeConn(), nil, ""), nil
	}
	m := newManager(build, log.NewNullLogger())
	closeManager(t, m)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := m.ResolveSession(context.Background(), Options{})
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-errs, errLaunch)
	}

	// The failure isn't remembered.
	s, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, s.IsConnected())
	assert.EqualValues(t, 2, calls.Load())
}

func TestManagerReplacesLostSession(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	m := newManager(countingBuilder(&calls), log.NewNullLogger())
	closeManager(t, m)

	s1, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)

	// The browser went away behind our back.
	require.NoError(t, s1.Close(context.Background()))
	<-s1.unwatched

	s2, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.True(t, s2.IsConnected())
	assert.EqualValues(t, 2, calls.Load())
}

func TestManagerLogsLostSession(t *testing.T) {
	t.Parallel()

	ll := logrus.New()
	lc := tests.AttachLogCache(ll)

	var calls atomic.Int32
	m := newManager(countingBuilder(&calls), log.New(ll))
	closeManager(t, m)

	s, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	<-s.unwatched

	assert.True(t, lc.Contains("session disconnected"))
	assert.Contains(t, lc.Categories(), "Manager:watch")
}

func TestManagerClose(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	m := newManager(countingBuilder(&calls), log.NewNullLogger())

	require.NoError(t, m.Close(context.Background()), "closing an empty manager")

	s1, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)
	require.NoError(t, m.Close(context.Background()))
	assert.False(t, s1.IsConnected())

	s2, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.EqualValues(t, 2, calls.Load())
	require.NoError(t, m.Close(context.Background()))
}

func TestManagerWaiterCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	build := func(context.Context, Options) (*Session, error) {
		<-release
		return NewSession(newFakeConn(), nil, ""), nil
	}
	m := newManager(build, log.NewNullLogger())
	closeManager(t, m)

	first := make(chan error, 1)
	go func() {
		_, err := m.ResolveSession(context.Background(), Options{})
		first <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.ResolveSession(ctx, Options{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-first)
}

func TestManagerFirstCallerCancelled(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	build := func(ctx context.Context, _ Options) (*Session, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return NewSession(newFakeConn(), nil, ""), nil
	}
	m := newManager(build, log.NewNullLogger())
	closeManager(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := m.ResolveSession(ctx, Options{})
		first <- err
	}()
	<-started

	type result struct {
		s   *Session
		err error
	}
	second := make(chan result, 1)
	go func() {
		s, err := m.ResolveSession(context.Background(), Options{})
		second <- result{s, err}
	}()
	// Let the second caller join the attempt.
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.s.IsConnected())

	s, err := m.ResolveSession(context.Background(), Options{})
	require.NoError(t, err)
	assert.Same(t, res.s, s)
}

// recordingDriver is a chromium.Driver that never talks to a browser.
type recordingDriver struct {
	mu      sync.Mutex
	wsURLs  []string
	spawned int
}

func (d *recordingDriver) Connect(
	_ context.Context, wsURL string, _ common.TargetFilterFunc, _ time.Duration,
) (chromium.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wsURLs = append(d.wsURLs, wsURL)
	return newFakeConn(), nil
}

func (d *recordingDriver) Spawn(
	context.Context, common.SpawnOptions, common.TargetFilterFunc, time.Duration,
) (chromium.Conn, *common.BrowserProcess, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spawned++
	return newFakeConn(), nil, nil
}

func TestNewManagerRoutes(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX executable path")
	}

	const exe = "/opt/brave/brave"
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, exe, []byte("#!"), 0o755))

	driver := &recordingDriver{}
	m := NewManager(chromium.NewBrowserType(fs, driver, log.NewNullLogger()), log.NewNullLogger())

	s, err := m.ResolveSession(context.Background(), Options{ExecutablePath: exe, Isolated: true})
	require.NoError(t, err)
	assert.Nil(t, s.Process())
	assert.Equal(t, 1, driver.spawned)
	assert.Empty(t, driver.wsURLs)
	require.NoError(t, m.Close(context.Background()))

	const wsURL = "ws://127.0.0.1:9222/devtools/browser/abc"
	s, err = m.ResolveSession(context.Background(), Options{BrowserURL: wsURL})
	require.NoError(t, err)
	assert.Equal(t, wsURL, s.Endpoint())
	assert.Equal(t, []string{wsURL}, driver.wsURLs)
	assert.Equal(t, 1, driver.spawned)
	require.NoError(t, m.Close(context.Background()))
}
