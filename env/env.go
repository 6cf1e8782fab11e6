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

// Package env provides types to interact with environment setup.
package env

import (
	"os"
)

// Execution specific.
const (
	// LogLevel sets the session logger level. The value is parsed by
	// logrus (panic, fatal, error, warn, info, debug, trace).
	LogLevel = "BRAVE_SESSION_LOG"

	// LogCaller enables reporting the caller file and function in the
	// log entries when set to any value.
	LogCaller = "BRAVE_SESSION_CALLER"

	// LogFile is the path to a file where the browser process output is
	// written to.
	LogFile = "BRAVE_SESSION_LOG_FILE"
)

// Browser process specific.
const (
	// BrowserURL is the remote-debugging endpoint of a running browser.
	// When set, the session attaches to it instead of launching a new one.
	BrowserURL = "BRAVE_BROWSER_URL"

	// ExecutablePath overrides the browser executable discovery.
	ExecutablePath = "BRAVE_EXECUTABLE_PATH"

	// CustomDevTools is a local path to a custom devtools frontend.
	CustomDevTools = "BRAVE_CUSTOM_DEVTOOLS"

	// UserDataDir is the profile directory used by the launched browser.
	UserDataDir = "BRAVE_USER_DATA_DIR"

	// Headless launches the browser without a window.
	Headless = "BRAVE_HEADLESS"

	// Isolated makes the launched browser use its own profile directory.
	Isolated = "BRAVE_ISOLATED"
)

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Lookup is the default LookupFunc that reads from the process environment.
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// EmptyLookup is a placeholder environment lookup function that always
// returns false.
func EmptyLookup(_ string) (string, bool) { return "", false }

// ConstLookup is a placeholder environment lookup function that returns
// the given value if the key matches.
func ConstLookup(k, v string) LookupFunc {
	return func(key string) (string, bool) {
		if key == k {
			return v, true
		}
		return "", false
	}
}

// MapLookup returns a LookupFunc backed by the given map.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}
