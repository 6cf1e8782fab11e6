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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"

	"github.com/liuxd6825/brave-devtools-session/log"
)

// Browser is a remote-debugging session with a browser, either spawned by
// us or attached to. It keeps track of the browsing contexts that pass its
// target filter.
type Browser struct {
	conn        *Connection
	browserProc *BrowserProcess // nil when attached to a remote browser
	filter      TargetFilterFunc
	logger      *log.Logger

	targetsMu sync.RWMutex
	targets   map[target.ID]*target.Info
	// seen holds the targets reported by events. They take precedence
	// over the initial Target.getTargets snapshot.
	seen map[target.ID]struct{}
}

// NewBrowser starts discovering the targets of the browser behind conn.
// browserProc is nil for a remote browser.
func NewBrowser(
	ctx context.Context, conn *Connection, browserProc *BrowserProcess,
	filter TargetFilterFunc, logger *log.Logger,
) (*Browser, error) {
	if filter == nil {
		filter = TargetFilter
	}
	b := &Browser{
		conn:        conn,
		browserProc: browserProc,
		filter:      filter,
		logger:      logger,
		targets:     make(map[target.ID]*target.Info),
		seen:        make(map[target.ID]struct{}),
	}
	if err := b.initEvents(ctx); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Browser) initEvents(ctx context.Context) error {
	b.conn.OnEvent(func(method cdproto.MethodType, ev any) {
		switch ev := ev.(type) {
		case *target.EventTargetCreated:
			b.logger.Debugf("Browser:initEvents:onTargetCreated", "tid=%v url=%q", ev.TargetInfo.TargetID, ev.TargetInfo.URL)
			b.updateTarget(ev.TargetInfo, true)
		case *target.EventTargetInfoChanged:
			b.logger.Debugf("Browser:initEvents:onTargetInfoChanged", "tid=%v url=%q", ev.TargetInfo.TargetID, ev.TargetInfo.URL)
			b.updateTarget(ev.TargetInfo, true)
		case *target.EventTargetDestroyed:
			b.logger.Debugf("Browser:initEvents:onTargetDestroyed", "tid=%v", ev.TargetID)
			b.removeTarget(ev.TargetID)
		}
	})

	cctx := cdp.WithExecutor(ctx, b.conn)
	action := target.SetDiscoverTargets(true)
	if err := action.Do(cctx); err != nil {
		return fmt.Errorf("executing %T: %w", action, err)
	}
	infos, err := target.GetTargets().Do(cctx)
	if err != nil {
		return fmt.Errorf("getting targets: %w", err)
	}
	for _, info := range infos {
		b.updateTarget(info, false)
	}

	return nil
}

// updateTarget stores info when it passes the filter. A target whose URL
// changed to a hidden one is forgotten.
func (b *Browser) updateTarget(info *target.Info, fromEvent bool) {
	if info == nil {
		return
	}
	b.targetsMu.Lock()
	defer b.targetsMu.Unlock()
	if fromEvent {
		b.seen[info.TargetID] = struct{}{}
	} else if _, ok := b.seen[info.TargetID]; ok {
		return
	}
	if !b.filter(info.URL) {
		delete(b.targets, info.TargetID)
		return
	}
	b.targets[info.TargetID] = info
}

func (b *Browser) removeTarget(id target.ID) {
	b.targetsMu.Lock()
	defer b.targetsMu.Unlock()
	b.seen[id] = struct{}{}
	delete(b.targets, id)
}

// Targets returns the browsing contexts visible to automation, ordered by ID.
func (b *Browser) Targets() []*target.Info {
	b.targetsMu.RLock()
	defer b.targetsMu.RUnlock()

	infos := make([]*target.Info, 0, len(b.targets))
	for _, info := range b.targets {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].TargetID < infos[j].TargetID
	})
	return infos
}

// IsConnected returns true while the remote-debugging connection is alive.
func (b *Browser) IsConnected() bool {
	return b.conn.IsConnected()
}

// Done returns a channel that's closed once the connection is lost.
func (b *Browser) Done() <-chan struct{} {
	return b.conn.Done()
}

// Process returns the spawned browser process, or nil when the browser
// was attached to.
func (b *Browser) Process() *BrowserProcess {
	return b.browserProc
}

// Executor returns the protocol executor of this session.
func (b *Browser) Executor() cdp.Executor {
	return b.conn
}

// Version returns the controlled browser's version.
func (b *Browser) Version(ctx context.Context) (string, error) {
	action := cdpbrowser.GetVersion()
	_, product, _, _, _, err := action.Do(cdp.WithExecutor(ctx, b.conn))
	if err != nil {
		return "", fmt.Errorf("getting browser version: %w", err)
	}
	i := strings.Index(product, "/")
	if i == -1 {
		return product, nil
	}
	return product[i+1:], nil
}

// Close shuts down a spawned browser, or disconnects from a remote one.
func (b *Browser) Close(ctx context.Context) error {
	if b.browserProc == nil {
		b.logger.Debugf("Browser:Close", "disconnecting from remote browser")
		return b.conn.Close()
	}

	b.logger.Debugf("Browser:Close", "closing browser pid=%d", b.browserProc.Pid())
	defer b.browserProc.Terminate()

	action := cdpbrowser.Close()
	if err := action.Do(cdp.WithExecutor(ctx, b.conn)); err != nil && !errors.Is(err, ErrConnectionClosed) {
		b.logger.Warnf("Browser:Close", "executing %T: %v", action, err)
	}

	select {
	case <-b.browserProc.Done():
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		b.logger.Warnf("Browser:Close", "browser did not exit in time, terminating")
	}

	return b.conn.Close()
}
