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
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoDebuggerURL is returned when a remote-debugging endpoint doesn't
// advertise a WebSocket debugger URL.
var ErrNoDebuggerURL = errors.New("endpoint did not report a webSocketDebuggerUrl")

// ResolveWebSocketURL returns the browser WebSocket URL for a
// remote-debugging endpoint. WebSocket URLs are returned as they are; for
// HTTP endpoints the URL is read from /json/version.
func ResolveWebSocketURL(ctx context.Context, client *http.Client, browserURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(browserURL))
	if err != nil {
		return "", fmt.Errorf("parsing browser URL %q: %w", browserURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return u.String(), nil
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported browser URL scheme %q in %q", u.Scheme, browserURL)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/json/version") {
		u.Path += "/json/version"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %s", u, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", u, err)
	}
	wsURL := gjson.GetBytes(body, "webSocketDebuggerUrl")
	if !wsURL.Exists() || wsURL.String() == "" {
		return "", fmt.Errorf("fetching %s: %w", u, ErrNoDebuggerURL)
	}

	return wsURL.String(), nil
}
