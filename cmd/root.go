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

// Package cmd implements the brave-devtools-session command.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/liuxd6825/brave-devtools-session/browser"
	"github.com/liuxd6825/brave-devtools-session/chromium"
	"github.com/liuxd6825/brave-devtools-session/common"
	"github.com/liuxd6825/brave-devtools-session/env"
	"github.com/liuxd6825/brave-devtools-session/errext"
	"github.com/liuxd6825/brave-devtools-session/errext/exitcodes"
	"github.com/liuxd6825/brave-devtools-session/log"
)

var errSessionLost = errors.New("browser session ended")

type rootCommand struct {
	gs  *globalState
	cmd *cobra.Command
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{gs: gs}
	c.cmd = &cobra.Command{
		Use:   "brave-devtools-session",
		Short: "Resolve a single Brave remote-debugging session",
		Long: `Attach to a running Brave browser, or find the Brave executable and launch it,
then print the session's endpoint and the browsing contexts visible to automation.

Every flag can also be set through the environment, flags take precedence:
  BRAVE_BROWSER_URL, BRAVE_EXECUTABLE_PATH, BRAVE_CUSTOM_DEVTOOLS,
  BRAVE_USER_DATA_DIR, BRAVE_HEADLESS, BRAVE_ISOLATED, BRAVE_SESSION_LOG_FILE.
The log level is read from BRAVE_SESSION_LOG.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}
	c.cmd.Flags().AddFlagSet(sessionFlagSet())
	c.cmd.SetOut(gs.stdOut)
	c.cmd.SetErr(gs.stdErr)

	return c
}

func (c *rootCommand) run(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	cfg, err := loadConfig(c.gs.lookupEnv, flags)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	logger, err := log.NewFromEnv(c.gs.stdErr, c.gs.lookupEnv)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		_ = logger.SetLevel("debug")
	}
	browserArgs, err := flags.GetStringArray("browser-arg")
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	opts := sessionOptions(cfg, browserArgs)
	if path := cfg.LogFile.String; path != "" {
		f, err := c.gs.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errext.WithExitCodeIfNone(fmt.Errorf("opening log file: %w", err), exitcodes.InvalidConfig)
		}
		defer func() { _ = f.Close() }()
		opts.LogSink = f
	}

	bt := chromium.NewBrowserType(c.gs.fs, chromium.NewCDPDriver(logger), logger)
	m := browser.NewManager(bt, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), common.DefaultTimeout)
		defer cancel()
		if err := m.Close(ctx); err != nil {
			logger.Warnf("cmd:run", "%v", err)
		}
	}()

	s, err := m.ResolveSession(c.gs.ctx, opts)
	if err != nil {
		return errext.WithExitCodeIfNone(err, sessionExitCode(err, opts))
	}
	printSession(c.gs.stdOut, c.gs.stdOut.isTTY, s)

	if exit, _ := flags.GetBool("exit"); exit {
		return nil
	}

	return c.waitSession(s, logger)
}

// waitSession blocks until the session is lost, the command is interrupted
// or its context is done.
func (c *rootCommand) waitSession(s *browser.Session, logger *log.Logger) error {
	sigC := make(chan os.Signal, 2)
	c.gs.signalNotify(sigC, os.Interrupt, syscall.SIGTERM)
	defer c.gs.signalStop(sigC)

	select {
	case sig := <-sigC:
		logger.Debugf("cmd:waitSession", "received %s, closing the session", sig)
		return nil
	case <-c.gs.ctx.Done():
		return nil
	case <-s.Done():
		return errext.WithExitCodeIfNone(errSessionLost, exitcodes.SessionLost)
	}
}

func sessionOptions(cfg env.Config, browserArgs []string) browser.Options {
	return browser.Options{
		BrowserURL:     cfg.BrowserURL.String,
		ExecutablePath: cfg.ExecutablePath.String,
		CustomDevTools: cfg.CustomDevTools.String,
		UserDataDir:    cfg.UserDataDir.String,
		Headless:       cfg.Headless.Bool,
		Isolated:       cfg.Isolated.Bool,
		Args:           browserArgs,
	}
}

// sessionExitCode returns the exit code for a failure to obtain a session.
func sessionExitCode(err error, opts browser.Options) exitcodes.ExitCode {
	var (
		alreadyRunning *chromium.AlreadyRunningError
		launchErr      *chromium.LaunchError
	)
	switch {
	case errors.Is(err, chromium.ErrExecutableNotFound):
		return exitcodes.BrowserNotFound
	case errors.Is(err, chromium.ErrInvalidExecutable):
		return exitcodes.InvalidExecutable
	case errors.As(err, &alreadyRunning):
		return exitcodes.BrowserAlreadyRunning
	case errors.As(err, &launchErr):
		return exitcodes.BrowserLaunchFailed
	case opts.BrowserURL != "":
		return exitcodes.BrowserConnectFailed
	default:
		return exitcodes.BrowserLaunchFailed
	}
}

func printSession(w io.Writer, colorize bool, s *browser.Session) {
	title := color.New(color.FgCyan, color.Bold)
	if colorize {
		title.EnableColor()
	} else {
		title.DisableColor()
	}

	endpoint := s.Endpoint()
	if p := s.Process(); p != nil {
		if endpoint == "" {
			endpoint = "pipe"
		}
		endpoint = fmt.Sprintf("%s (pid %d)", endpoint, p.Pid())
		if dir := p.UserDataDir(); dir != "" {
			_, _ = fmt.Fprintf(w, "%s %s\n", title.Sprint("profile: "), dir)
		}
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", title.Sprint("endpoint:"), endpoint)

	targets := s.Targets()
	_, _ = fmt.Fprintf(w, "%s %d\n", title.Sprint("targets: "), len(targets))
	for _, t := range targets {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", t.TargetID, t.Type, t.URL)
	}
}

// Execute runs the command and exits the process with the exit code of
// the error, if any. It's called by main.main().
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gs := newGlobalState(ctx)
	c := newRootCommand(gs)
	if err := c.cmd.Execute(); err != nil {
		exitCode := -1
		if code, ok := errext.ExitCodeOf(err); ok {
			exitCode = int(code)
		}
		msg, fields := errext.Format(err)
		gs.logger.WithFields(logrus.Fields(fields)).Error(msg)
		cancel()
		gs.osExit(exitCode)
	}
}
