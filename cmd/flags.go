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

package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/brave-devtools-session/env"
)

// sessionFlagSet returns the flags that mirror env.Config. The defaults
// only show up in the usage message: flags that weren't set don't override
// the environment.
func sessionFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringP("browser-url", "u", "",
		"attach to a running browser, http://host:port or ws://host:port/devtools/browser/<id>")
	flags.StringP("executable-path", "e", "", "path of the Brave executable to launch")
	flags.String("custom-devtools", "", "local directory with a DevTools frontend to load")
	flags.String("user-data-dir", "", "profile directory of the launched browser")
	flags.Bool("headless", false, "launch the browser without a window")
	flags.Bool("isolated", false, "don't use the shared profile directory")
	flags.String("log-file", "", "append the browser's output to this file")
	flags.StringArray("browser-arg", nil, "extra command line argument for the launched browser, can be repeated")
	flags.BoolP("exit", "x", false, "close the session right after printing it")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	return flags
}

// loadConfig layers the flags that were set on top of the environment.
func loadConfig(lookup env.LookupFunc, flags *pflag.FlagSet) (env.Config, error) {
	cfg, err := env.LoadConfig(lookup)
	if err != nil {
		return env.Config{}, err //nolint:wrapcheck
	}
	flagCfg, err := getConfigFromFlags(flags)
	if err != nil {
		return env.Config{}, err
	}
	return cfg.Apply(flagCfg), nil
}

func getConfigFromFlags(flags *pflag.FlagSet) (cfg env.Config, err error) {
	if cfg.BrowserURL, err = getNullString(flags, "browser-url"); err != nil {
		return cfg, err
	}
	if cfg.ExecutablePath, err = getNullString(flags, "executable-path"); err != nil {
		return cfg, err
	}
	if cfg.CustomDevTools, err = getNullString(flags, "custom-devtools"); err != nil {
		return cfg, err
	}
	if cfg.UserDataDir, err = getNullString(flags, "user-data-dir"); err != nil {
		return cfg, err
	}
	if cfg.LogFile, err = getNullString(flags, "log-file"); err != nil {
		return cfg, err
	}
	if cfg.Headless, err = getNullBool(flags, "headless"); err != nil {
		return cfg, err
	}
	if cfg.Isolated, err = getNullBool(flags, "isolated"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func getNullBool(flags *pflag.FlagSet, key string) (null.Bool, error) {
	v, err := flags.GetBool(key)
	if err != nil {
		return null.Bool{}, fmt.Errorf("reading flag %s: %w", key, err)
	}
	return null.NewBool(v, flags.Changed(key)), nil
}

func getNullString(flags *pflag.FlagSet, key string) (null.String, error) {
	v, err := flags.GetString(key)
	if err != nil {
		return null.String{}, fmt.Errorf("reading flag %s: %w", key, err)
	}
	return null.NewString(v, flags.Changed(key)), nil
}
