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

package storage

import (
	"fmt"

	"github.com/spf13/afero"
)

const tempProfilePrefix = "brave-devtools-session-profile-"

// Dir is the profile directory of a browser process. When no directory is
// given, Make creates a temporary one that Cleanup removes.
type Dir struct {
	Dir string

	fs     afero.Fs
	remove bool
}

// Make sets the directory to dir, or creates a new temporary directory
// under tmpDir when dir is empty. An empty tmpDir means the system's
// temporary directory.
func (d *Dir) Make(fs afero.Fs, tmpDir, dir string) error {
	d.fs = fs
	if dir != "" {
		d.Dir = dir
		return nil
	}

	var err error
	if d.Dir, err = afero.TempDir(fs, tmpDir, tempProfilePrefix); err != nil {
		return fmt.Errorf("creating temporary profile directory: %w", err)
	}
	d.remove = true

	return nil
}

// IsTemp reports whether the directory was created by Make.
func (d *Dir) IsTemp() bool {
	return d.remove
}

// Cleanup removes a temporary directory. Directories that weren't created
// by Make are left alone.
func (d *Dir) Cleanup() error {
	if !d.remove {
		return nil
	}
	d.remove = false
	if err := d.fs.RemoveAll(d.Dir); err != nil {
		return fmt.Errorf("removing profile directory %q: %w", d.Dir, err)
	}
	return nil
}
