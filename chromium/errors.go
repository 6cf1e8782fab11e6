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
	"fmt"
	"strings"

	"github.com/liuxd6825/brave-devtools-session/errext"
)

// AlreadyRunningError is returned when the browser could not be launched
// because another browser instance holds the profile directory.
type AlreadyRunningError struct {
	UserDataDir string
	Err         error
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf(
		"the browser is already running for %s. Use --isolated to run multiple browser instances",
		e.UserDataDir,
	)
}

func (e *AlreadyRunningError) Unwrap() error { return e.Err }

// Hint implements errext.HasHint.
func (e *AlreadyRunningError) Hint() string {
	return "close the other browser using " + e.UserDataDir + " or pass --isolated"
}

var _ errext.HasHint = &AlreadyRunningError{}

// LaunchError is returned for any other failure to launch the browser.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching browser: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// alreadyRunningPatterns are the fragments of a launch error that tell us
// another process is using the profile directory: the browser either says
// so, or hands over to the running instance and exits, which closes the
// connection right away.
//
// These depend on the browser's and the transport's wording. If the
// wording changes, this is the place to update.
var alreadyRunningPatterns = [...]string{
	"already running",
	"target closed",
	"connection closed",
}

// classifyLaunchError turns a failure to spawn the browser into an
// AlreadyRunningError or a LaunchError. Conflicts are only reported when
// the browser was started with a profile directory.
func classifyLaunchError(err error, userDataDir string) error {
	if err == nil {
		return nil
	}
	if userDataDir != "" {
		msg := strings.ToLower(err.Error())
		for _, p := range alreadyRunningPatterns {
			if strings.Contains(msg, p) {
				return &AlreadyRunningError{UserDataDir: userDataDir, Err: err}
			}
		}
	}
	return &LaunchError{Err: err}
}
