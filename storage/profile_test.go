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
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileDir(t *testing.T) {
	t.Parallel()

	home := filepath.Join(string(filepath.Separator), "home", "alice")
	explicit := filepath.Join(string(filepath.Separator), "tmp", "brave-isolated-1")

	tests := map[string]struct {
		isolated bool
		explicit string
		wantDir  string
	}{
		"shared_default": {
			wantDir: filepath.Join(home, ".cache", "brave-devtools-mcp", "brave-profile"),
		},
		"shared_explicit": {
			explicit: explicit,
			wantDir:  explicit,
		},
		"isolated_explicit": {
			isolated: true,
			explicit: explicit,
			wantDir:  explicit,
		},
		"relative_explicit": {
			explicit: filepath.Join("profiles", "p1"),
			wantDir:  filepath.Join("profiles", "p1"),
		},
		"isolated_without_dir": {
			isolated: true,
			wantDir:  "",
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			dir, err := ProfileDir(fs, home, tt.isolated, tt.explicit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDir, dir)

			if dir == "" {
				return
			}
			ok, err := afero.DirExists(fs, dir)
			require.NoError(t, err)
			assert.True(t, ok, "profile directory should exist")
		})
	}
}

func TestProfileDirDeterministic(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	home := filepath.Join(string(filepath.Separator), "home", "bob")

	first, err := ProfileDir(fs, home, false, "")
	require.NoError(t, err)
	second, err := ProfileDir(fs, home, false, "")
	require.NoError(t, err, "an existing directory must not fail resolution")

	assert.Equal(t, first, second)
	assert.Equal(t, DefaultProfileDir(home), first)
}

func TestProfileDirIsolatedNeverShared(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	home := filepath.Join(string(filepath.Separator), "home", "carol")

	dir, err := ProfileDir(fs, home, true, "")
	require.NoError(t, err)
	assert.NotEqual(t, DefaultProfileDir(home), dir)

	ok, err := afero.DirExists(fs, DefaultProfileDir(home))
	require.NoError(t, err)
	assert.False(t, ok, "isolated mode must not create the shared profile")
}

func TestProfileDirErrors(t *testing.T) {
	t.Parallel()

	t.Run("no_home", func(t *testing.T) {
		t.Parallel()

		_, err := ProfileDir(afero.NewMemMapFs(), "", false, "")
		assert.Error(t, err)
	})

	t.Run("read_only_fs", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		_, err := ProfileDir(fs, filepath.Join(string(filepath.Separator), "home", "dave"), false, "")
		assert.Error(t, err)
	})
}
