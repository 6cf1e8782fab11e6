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
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/liuxd6825/brave-devtools-session/common"
	"github.com/liuxd6825/brave-devtools-session/log"
	"github.com/liuxd6825/brave-devtools-session/storage"
)

// LaunchOptions configures a new browser process.
type LaunchOptions struct {
	// ExecutablePath overrides the executable lookup.
	ExecutablePath string
	// CustomDevTools is a local directory with a DevTools frontend.
	CustomDevTools string
	// UserDataDir overrides the profile directory.
	UserDataDir string
	Headless    bool
	// Isolated starts the browser without the shared profile.
	Isolated bool
	// LogSink receives the browser's stdout and stderr.
	LogSink io.Writer
	// Args are extra command line arguments, such as "--lang=en" or a URL.
	Args []string
}

// ConnectOptions configures attaching to a running browser.
type ConnectOptions struct {
	// BrowserURL is either the HTTP remote-debugging endpoint, such as
	// http://127.0.0.1:9222, or the browser WebSocket URL.
	BrowserURL string
}

// BrowserType launches a Brave browser or connects to a running one.
type BrowserType struct {
	fs       afero.Fs
	platform string
	home     string
	driver   Driver
	client   *http.Client
	logger   *log.Logger
}

// NewBrowserType returns a BrowserType for the current platform and user.
func NewBrowserType(fs afero.Fs, driver Driver, logger *log.Logger) *BrowserType {
	return &BrowserType{
		fs:       fs,
		platform: runtime.GOOS,
		home:     userHomeDir(),
		driver:   driver,
		client:   &http.Client{Timeout: common.ProtocolTimeout},
		logger:   logger,
	}
}

// Connect attaches to the browser behind opts.BrowserURL.
func (b *BrowserType) Connect(ctx context.Context, opts ConnectOptions) (Conn, error) {
	wsURL, err := common.ResolveWebSocketURL(ctx, b.client, opts.BrowserURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	b.logger.Debugf("BrowserType:Connect", "wsURL=%q", wsURL)

	conn, err := b.driver.Connect(ctx, wsURL, common.TargetFilter, common.ProtocolTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to browser at %s: %w", wsURL, err)
	}

	return conn, nil
}

// Launch starts a new browser process and attaches to it.
//
// A process that can't start because another browser uses the same profile
// directory is reported as *AlreadyRunningError, every other start up
// failure as *LaunchError.
func (b *BrowserType) Launch(ctx context.Context, opts LaunchOptions) (Conn, *common.BrowserProcess, error) {
	path, err := ExecutablePath(b.fs, b.platform, b.home, opts.ExecutablePath)
	if err != nil {
		return nil, nil, err
	}
	dataDir, err := storage.ProfileDir(b.fs, b.home, opts.Isolated, opts.UserDataDir)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	args, err := parseArgs(prepareFlags(opts))
	if err != nil {
		return nil, nil, err
	}
	spawn := common.SpawnOptions{
		ExecutablePath: path,
		Args:           args,
		UserDataDir:    dataDir,
		Headless:       opts.Headless,
		Pipe:           b.platform != "windows",
		LogSink:        opts.LogSink,
		FS:             b.fs,
	}
	b.logger.Debugf("BrowserType:Launch", "path=%q dataDir=%q args=%q", path, dataDir, args)

	conn, proc, err := b.driver.Spawn(ctx, spawn, common.TargetFilter, common.ProtocolTimeout)
	if err != nil {
		return nil, nil, classifyLaunchError(err, dataDir)
	}
	if proc != nil {
		b.logger.Debugf("BrowserType:Launch", "browser started pid=%d", proc.Pid())
	}

	return conn, proc, nil
}

// flags holds the browser command line flags by name, without the leading
// dashes, plus arguments that aren't flags.
type flags struct {
	named      map[string]any
	positional []string
}

func prepareFlags(opts LaunchOptions) flags {
	f := flags{named: map[string]any{
		"hide-crash-restore-bubble":              true,
		"no-first-run":                           true,
		"no-default-browser-check":               true,
		"disable-background-networking":          true,
		"disable-background-timer-throttling":    true,
		"disable-backgrounding-occluded-windows": true,
		"disable-breakpad":                       true,
		"disable-hang-monitor":                   true,
		"disable-prompt-on-repost":               true,
		"disable-renderer-backgrounding":         true,
		"metrics-recording-only":                 true,
		"password-store":                         "basic",
		"use-mock-keychain":                      true,
		"no-service-autorun":                     true,
	}}
	if opts.Headless {
		f.named["hide-scrollbars"] = true
		f.named["mute-audio"] = true
	}
	if opts.CustomDevTools != "" {
		f.named["custom-devtools-frontend"] = "file://" + opts.CustomDevTools
	}
	setFlagsFromArgs(&f, opts.Args)

	return f
}

// setFlagsFromArgs merges user provided "--name=value" and "--name"
// arguments into f, overriding the defaults. Anything that isn't a flag is
// kept as a positional argument.
func setFlagsFromArgs(f *flags, args []string) {
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if !strings.HasPrefix(arg, "-") {
			if arg != "" {
				f.positional = append(f.positional, arg)
			}
			continue
		}
		pair := strings.SplitN(strings.TrimLeft(arg, "-"), "=", 2)
		name := strings.TrimSpace(pair[0])
		if len(pair) == 1 {
			f.named[name] = true
			continue
		}
		f.named[name] = trimQuotes(strings.TrimSpace(pair[1]))
	}
}

// parseArgs renders f as command line arguments. Flags come first, sorted
// by name, followed by the positional arguments.
func parseArgs(f flags) ([]string, error) {
	names := make([]string, 0, len(f.named))
	for name := range f.named {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names)+len(f.positional))
	for _, name := range names {
		switch value := f.named[name].(type) {
		case string:
			args = append(args, fmt.Sprintf("--%s=%s", name, value))
		case bool:
			if value {
				args = append(args, "--"+name)
			}
		default:
			return nil, fmt.Errorf(`invalid browser command line flag: "%s=%v"`, name, value)
		}
	}

	return append(args, f.positional...), nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if c := s[len(s)-1]; s[0] == c && (c == '"' || c == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
