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

package errext

import "errors"

// Format returns the message of err and the fields to log it with: its
// hint and its exit code, when err carries them.
func Format(err error) (string, map[string]any) {
	if err == nil {
		return "", nil
	}

	fields := make(map[string]any)
	var herr HasHint
	if errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}
	if code, ok := ExitCodeOf(err); ok {
		fields["exit_code"] = code
	}

	return err.Error(), fields
}
