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
	"context"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/brave-devtools-session/env"
)

// globalState contains the process wide things the command depends on.
// Tests swap them out for in-memory versions.
type globalState struct {
	ctx context.Context

	fs        afero.Fs
	lookupEnv env.LookupFunc

	stdOut, stdErr *consoleWriter
	// logger reports command failures. Browser session logs go through
	// the log package.
	logger *logrus.Logger

	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
	osExit       func(int)
}

func newGlobalState(ctx context.Context) *globalState {
	// https://no-color.org/, even an empty value disables colors.
	_, noColor := os.LookupEnv("NO_COLOR")

	outMutex := &sync.Mutex{}
	stdOut := newConsoleWriter(os.Stdout, outMutex, noColor)
	stdErr := newConsoleWriter(os.Stderr, outMutex, noColor)

	return &globalState{
		ctx:       ctx,
		fs:        afero.NewOsFs(),
		lookupEnv: env.Lookup,
		stdOut:    stdOut,
		stdErr:    stdErr,
		logger: &logrus.Logger{
			Out: stdErr,
			Formatter: &logrus.TextFormatter{
				ForceColors:   stdErr.isTTY,
				DisableColors: !stdErr.isTTY,
			},
			Hooks: make(logrus.LevelHooks),
			Level: logrus.InfoLevel,
		},
		signalNotify: signal.Notify,
		signalStop:   signal.Stop,
		osExit:       os.Exit,
	}
}

// consoleWriter syncs writes to stdout and stderr with a mutex.
type consoleWriter struct {
	io.Writer
	isTTY bool
	mutex *sync.Mutex
}

func newConsoleWriter(f *os.File, mu *sync.Mutex, noColor bool) *consoleWriter {
	isTTY := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	if noColor || !isTTY {
		return &consoleWriter{colorable.NewNonColorable(f), false, mu}
	}
	return &consoleWriter{colorable.NewColorable(f), true, mu}
}

func (w *consoleWriter) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.Writer.Write(p) //nolint:wrapcheck
}
