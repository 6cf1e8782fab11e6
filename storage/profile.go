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

// Package storage manages the on-disk state used by the browser process.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	// cacheDirName is the per-user cache directory of the session core.
	cacheDirName = "brave-devtools-mcp"

	// profileDirName is the name of the shared profile directory.
	profileDirName = "brave-profile"
)

// DefaultProfileDir returns the shared profile directory for the user whose
// home directory is home. It is a pure function of home.
func DefaultProfileDir(home string) string {
	return filepath.Join(home, ".cache", cacheDirName, profileDirName)
}

// ProfileDir resolves the profile directory a launched browser should use.
//
// An explicit directory is returned unchanged, and created if it's missing.
// In isolated mode without an explicit directory, ProfileDir returns an
// empty path: the shared default is never handed out and the spawn makes a
// temporary directory instead (see Dir). Otherwise the shared default under
// home is created and returned.
func ProfileDir(fs afero.Fs, home string, isolated bool, explicit string) (string, error) {
	dir := explicit
	switch {
	case dir != "":
	case isolated:
		return "", nil
	default:
		if home == "" {
			return "", fmt.Errorf("resolving profile directory: unknown home directory")
		}
		dir = DefaultProfileDir(home)
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating profile directory %q: %w", dir, err)
	}

	return dir, nil
}
