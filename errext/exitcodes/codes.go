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

// Package exitcodes lists the exit codes of the brave-devtools-session
// command.
package exitcodes

// ExitCode is a process exit code.
type ExitCode uint8

// Values stay below 126, the shells reserve the codes above.
const (
	InvalidConfig         ExitCode = 104
	BrowserNotFound       ExitCode = 110
	InvalidExecutable     ExitCode = 111
	BrowserAlreadyRunning ExitCode = 112
	BrowserLaunchFailed   ExitCode = 113
	BrowserConnectFailed  ExitCode = 114
	SessionLost           ExitCode = 115
)
