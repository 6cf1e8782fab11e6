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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/brave-devtools-session/tests/ws"
)

func TestResolveWebSocketURL(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithVersionHandler("/devtools/browser/abc"))
	empty := ws.NewServer(t, func(s *ws.Server) {
		s.Mux.HandleFunc("/json/version", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"Browser": "Brave"}`))
		})
	})

	tests := map[string]struct {
		url     string
		want    string
		wantErr error
		anyErr  bool
	}{
		"http_endpoint": {
			url:  server.HTTPURL(),
			want: server.WSURL("/devtools/browser/abc"),
		},
		"http_endpoint_trailing_slash": {
			url:  server.HTTPURL() + "/",
			want: server.WSURL("/devtools/browser/abc"),
		},
		"http_version_endpoint": {
			url:  server.HTTPURL() + "/json/version",
			want: server.WSURL("/devtools/browser/abc"),
		},
		"ws_endpoint": {
			url:  "ws://127.0.0.1:9222/devtools/browser/xyz",
			want: "ws://127.0.0.1:9222/devtools/browser/xyz",
		},
		"missing_debugger_url": {
			url:     empty.HTTPURL(),
			wantErr: ErrNoDebuggerURL,
		},
		"not_found": {
			url:    server.HTTPURL() + "/nope",
			anyErr: true,
		},
		"bad_scheme": {
			url:    "ftp://127.0.0.1:9222",
			anyErr: true,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveWebSocketURL(context.Background(), http.DefaultClient, tt.url)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
