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

import "time"

const (
	// Defaults

	// DefaultTimeout bounds the launch handshake with a new browser process.
	DefaultTimeout time.Duration = 30 * time.Second

	// ProtocolTimeout bounds a single remote-debugging command. No single
	// command is expected to take longer than this.
	ProtocolTimeout time.Duration = 10 * time.Second

	// Browser specific

	// NewTabURL is the URL of the browser's default new tab page.
	NewTabURL = "brave://newtab/"
)
