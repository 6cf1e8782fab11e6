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
	"fmt"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"
)

// Config holds the session options that can be set through the environment
// or through command line flags. Unset values are kept invalid so that the
// sources can be layered with Apply.
type Config struct {
	BrowserURL     null.String `envconfig:"BRAVE_BROWSER_URL"`
	ExecutablePath null.String `envconfig:"BRAVE_EXECUTABLE_PATH"`
	CustomDevTools null.String `envconfig:"BRAVE_CUSTOM_DEVTOOLS"`
	UserDataDir    null.String `envconfig:"BRAVE_USER_DATA_DIR"`
	Headless       null.Bool   `envconfig:"BRAVE_HEADLESS"`
	Isolated       null.Bool   `envconfig:"BRAVE_ISOLATED"`
	LogFile        null.String `envconfig:"BRAVE_SESSION_LOG_FILE"`
}

// NewConfig returns a Config with the default values.
func NewConfig() Config {
	return Config{
		Headless: null.NewBool(false, false),
		Isolated: null.NewBool(false, false),
	}
}

// Apply saves config non-zero config values from the passed config in the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.BrowserURL.Valid {
		c.BrowserURL = cfg.BrowserURL
	}
	if cfg.ExecutablePath.Valid {
		c.ExecutablePath = cfg.ExecutablePath
	}
	if cfg.CustomDevTools.Valid {
		c.CustomDevTools = cfg.CustomDevTools
	}
	if cfg.UserDataDir.Valid {
		c.UserDataDir = cfg.UserDataDir
	}
	if cfg.Headless.Valid {
		c.Headless = cfg.Headless
	}
	if cfg.Isolated.Valid {
		c.Isolated = cfg.Isolated
	}
	if cfg.LogFile.Valid {
		c.LogFile = cfg.LogFile
	}
	return c
}

// LoadConfig reads the Config from the environment through lookup and
// applies it on top of the defaults.
func LoadConfig(lookup LookupFunc) (Config, error) {
	envConfig := Config{}
	if err := envconfig.Process("", &envConfig, func(key string) (string, bool) {
		return lookup(key)
	}); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	return NewConfig().Apply(envConfig), nil
}
