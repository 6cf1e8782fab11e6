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

import "strings"

// TargetFilterFunc decides whether a browsing context with the given URL
// is visible to automation.
type TargetFilterFunc func(url string) bool

// internalURLPrefixes lists the schemes of browser internal pages,
// extension pages, and devtools pages.
var internalURLPrefixes = [...]string{
	"brave://",
	"brave-extension://",
	"devtools://",
}

// TargetFilter hides internal and administrative pages from automation,
// except for the default new tab page.
func TargetFilter(url string) bool {
	if url == NewTabURL {
		return true
	}
	for _, prefix := range internalURLPrefixes {
		if strings.HasPrefix(url, prefix) {
			return false
		}
	}
	return true
}
