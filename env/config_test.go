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

package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		c, err := LoadConfig(EmptyLookup)
		require.NoError(t, err)
		assert.False(t, c.BrowserURL.Valid)
		assert.False(t, c.Headless.Bool)
		assert.False(t, c.Isolated.Bool)
	})

	t.Run("from_env", func(t *testing.T) {
		t.Parallel()

		c, err := LoadConfig(MapLookup(map[string]string{
			BrowserURL:     "http://127.0.0.1:9222",
			ExecutablePath: "/usr/bin/brave",
			UserDataDir:    "/tmp/profile",
			Headless:       "true",
			Isolated:       "true",
		}))
		require.NoError(t, err)
		assert.Equal(t, null.StringFrom("http://127.0.0.1:9222"), c.BrowserURL)
		assert.Equal(t, null.StringFrom("/usr/bin/brave"), c.ExecutablePath)
		assert.Equal(t, null.StringFrom("/tmp/profile"), c.UserDataDir)
		assert.True(t, c.Headless.Bool)
		assert.True(t, c.Isolated.Bool)
	})

	t.Run("invalid_bool", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfig(ConstLookup(Headless, "maybe"))
		require.Error(t, err)
	})
}

func TestConfigApply(t *testing.T) {
	t.Parallel()

	base := Config{
		BrowserURL: null.StringFrom("http://a"),
		Headless:   null.BoolFrom(true),
	}
	got := base.Apply(Config{
		BrowserURL: null.StringFrom("http://b"),
		Isolated:   null.BoolFrom(true),
	})

	assert.Equal(t, "http://b", got.BrowserURL.String)
	assert.True(t, got.Headless.Bool)
	assert.True(t, got.Isolated.Bool)
	assert.False(t, got.UserDataDir.Valid)
}
