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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// browserName is matched case-insensitively against the file name of a
// user provided executable.
const browserName = "brave"

var (
	// ErrExecutableNotFound is returned when no browser executable was found
	// in the default install locations.
	ErrExecutableNotFound = errors.New(
		"brave browser not found, install Brave or specify the executable path with --executablePath",
	)

	// ErrInvalidExecutable is returned when the user provided executable
	// path does not point to a Brave browser.
	ErrInvalidExecutable = errors.New(
		"the specified executable path does not appear to be a valid Brave browser",
	)
)

// CandidatePaths returns the default install locations of the browser on
// platform, in lookup order. home is the user's home directory and is used
// for per-user installations. Unknown platforms have no candidates.
func CandidatePaths(platform, home string) []string {
	switch platform {
	case "darwin":
		return []string{
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
			filepath.Join(home, "Applications/Brave Browser.app/Contents/MacOS/Brave Browser"),
		}
	case "windows":
		return []string{
			`C:\Program Files\BraveSoftware\Brave-Browser\Application\brave.exe`,
			`C:\Program Files (x86)\BraveSoftware\Brave-Browser\Application\brave.exe`,
			filepath.Join(home, `AppData\Local\BraveSoftware\Brave-Browser\Application\brave.exe`),
		}
	case "linux":
		return []string{
			"/usr/bin/brave-browser",
			"/usr/bin/brave",
			"/opt/brave.com/brave/brave-browser",
			"/snap/bin/brave",
			"/var/lib/flatpak/app/com.brave.Browser/current/active/export/bin/com.brave.Browser",
			filepath.Join(home, ".local/share/flatpak/app/com.brave.Browser/current/active/export/bin/com.brave.Browser"),
		}
	}
	return nil
}

// ExecutablePath returns the path of the browser executable to launch.
//
// A user provided path is returned unchanged when it points to an
// executable Brave browser, otherwise ErrInvalidExecutable is returned. A
// blank path counts as no path. Without a user
// provided path, the first executable found in the platform's candidate
// paths is returned, or ErrExecutableNotFound.
func ExecutablePath(fs afero.Fs, platform, home, path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		if !isExecutable(fs, platform, path) {
			return "", fmt.Errorf("%w: %s", ErrInvalidExecutable, path)
		}
		// the file name check uses the platform's separators
		if !strings.Contains(strings.ToLower(baseName(platform, path)), browserName) {
			return "", fmt.Errorf("%w: %s", ErrInvalidExecutable, path)
		}
		return path, nil
	}

	for _, path := range CandidatePaths(platform, home) {
		if isExecutable(fs, platform, path) {
			return path, nil
		}
	}

	return "", ErrExecutableNotFound
}

// isExecutable reports whether path is a regular file that, except on
// windows, has at least one executable bit set.
func isExecutable(fs afero.Fs, platform, path string) bool {
	fi, err := fs.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	if platform == "windows" {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}

func baseName(platform, path string) string {
	if platform == "windows" {
		if i := strings.LastIndexAny(path, `\/`); i >= 0 {
			return path[i+1:]
		}
		return path
	}
	return filepath.Base(path)
}

// userHomeDir returns the current user's home directory, or an empty
// string when it can't be determined.
func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
