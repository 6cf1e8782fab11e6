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

package chromium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/target"

	"github.com/liuxd6825/brave-devtools-session/common"
	"github.com/liuxd6825/brave-devtools-session/log"
)

// Conn is a live remote-debugging connection to a browser.
type Conn interface {
	IsConnected() bool
	// Done is closed once the connection is lost.
	Done() <-chan struct{}
	// Targets returns the browsing contexts that passed the target filter.
	Targets() []*target.Info
	Close(ctx context.Context) error
}

// Driver opens remote-debugging connections, either to a running browser
// or to a browser process it starts.
type Driver interface {
	Connect(
		ctx context.Context, wsURL string, filter common.TargetFilterFunc, timeout time.Duration,
	) (Conn, error)
	Spawn(
		ctx context.Context, opts common.SpawnOptions, filter common.TargetFilterFunc, timeout time.Duration,
	) (Conn, *common.BrowserProcess, error)
}

// CDPDriver is the Driver that speaks the Chrome DevTools Protocol through
// the common package.
type CDPDriver struct {
	logger *log.Logger
}

var _ Driver = &CDPDriver{}

// NewCDPDriver returns a new CDPDriver.
func NewCDPDriver(logger *log.Logger) *CDPDriver {
	return &CDPDriver{logger: logger}
}

// Connect attaches to the browser listening on wsURL.
func (d *CDPDriver) Connect(
	ctx context.Context, wsURL string, filter common.TargetFilterFunc, timeout time.Duration,
) (Conn, error) {
	t, err := common.DialWebSocket(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	conn := common.NewConnection(t, timeout, d.logger)
	b, err := common.NewBrowser(ctx, conn, nil, filter, d.logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return b, nil
}

// Spawn starts a browser process and attaches to it. ctx bounds the start
// up; the process itself lives until the returned Conn is closed.
func (d *CDPDriver) Spawn(
	ctx context.Context, opts common.SpawnOptions, filter common.TargetFilterFunc, timeout time.Duration,
) (Conn, *common.BrowserProcess, error) {
	hctx, cancel := context.WithTimeout(ctx, common.DefaultTimeout)
	defer cancel()

	proc, err := common.NewLocalBrowserProcess(context.WithoutCancel(ctx), hctx, opts, d.logger)
	if err != nil {
		return nil, nil, err
	}

	conn := common.NewConnection(proc.Transport(), timeout, d.logger)
	b, err := common.NewBrowser(hctx, conn, proc, filter, d.logger)
	if err != nil {
		_ = conn.Close()
		proc.Terminate()
		<-proc.Done()
		// The browser usually explains why it went away on stderr.
		if perr := proc.Err(); perr != nil && !errors.Is(err, perr) {
			err = fmt.Errorf("%w: %w", err, perr)
		}
		return nil, nil, err
	}

	return b, proc, nil
}
