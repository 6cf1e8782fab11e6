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

package common

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/liuxd6825/brave-devtools-session/log"
	"github.com/liuxd6825/brave-devtools-session/storage"
)

// SpawnOptions describes how to start a local browser process.
type SpawnOptions struct {
	ExecutablePath string
	Args           []string
	Env            []string
	Headless       bool

	// UserDataDir is the profile directory. When it's empty, a temporary
	// directory is created and removed once the process exits.
	UserDataDir string

	// FS is where the temporary profile directory is created. It defaults
	// to the OS filesystem.
	FS afero.Fs

	// Pipe selects --remote-debugging-pipe over --remote-debugging-port.
	Pipe bool

	// LogSink receives the process's stdout and stderr. The streams are
	// attached before the process starts.
	LogSink io.Writer
}

// BrowserProcess is a browser process started by us.
type BrowserProcess struct {
	cancel context.CancelFunc

	pid         int
	userDataDir string
	wsURL       string
	transport   Transport

	processDone chan struct{}
	output      *outputParser

	logger *log.Logger
}

// NewLocalBrowserProcess starts a local browser process and returns a new
// BrowserProcess instance to interact with it.
//
// ctx controls the lifetime of the process: the process is killed when ctx
// is done. handshakeCtx only bounds waiting for the remote-debugging
// endpoint to come up.
func NewLocalBrowserProcess(
	ctx, handshakeCtx context.Context, opts SpawnOptions, logger *log.Logger,
) (_ *BrowserProcess, rerr error) {
	pctx, cancel := context.WithCancel(ctx)
	defer func() {
		if rerr != nil {
			cancel()
		}
	}()

	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dataDir := &storage.Dir{}
	if err := dataDir.Make(fs, "", opts.UserDataDir); err != nil {
		return nil, err //nolint:wrapcheck
	}
	opts.UserDataDir = dataDir.Dir

	cmd, err := execute(pctx, opts, dataDir, logger)
	if err != nil {
		return nil, err
	}

	p := &BrowserProcess{
		cancel:      cancel,
		pid:         cmd.Process.Pid,
		userDataDir: opts.UserDataDir,
		processDone: cmd.done,
		output:      cmd.output,
		logger:      logger,
	}
	if cmd.pipe != nil {
		p.transport = cmd.pipe
		return p, nil
	}

	p.wsURL, err = parseDevToolsURL(handshakeCtx, cmd)
	if err != nil {
		return nil, err
	}
	if p.transport, err = DialWebSocket(handshakeCtx, p.wsURL); err != nil {
		return nil, err
	}

	return p, nil
}

// spawnArgs returns the command line arguments for the process.
func spawnArgs(opts SpawnOptions) []string {
	args := make([]string, 0, len(opts.Args)+3)
	args = append(args, opts.Args...)
	if opts.UserDataDir != "" {
		args = append(args, "--user-data-dir="+opts.UserDataDir)
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if opts.Pipe {
		args = append(args, "--remote-debugging-pipe")
	} else {
		args = append(args, "--remote-debugging-port=0")
	}
	return args
}

// Terminate triggers the termination of the browser process.
func (p *BrowserProcess) Terminate() {
	p.logger.Debugf("BrowserProcess:Terminate", "pid=%d", p.pid)
	p.cancel()
}

// Done returns a channel that's closed once the process has exited.
func (p *BrowserProcess) Done() <-chan struct{} {
	return p.processDone
}

// Transport returns the transport to the process's remote-debugging endpoint.
func (p *BrowserProcess) Transport() Transport {
	return p.transport
}

// WsURL returns the WebSocket URL the browser listens on for CDP clients.
// It's empty when the process was started in pipe mode.
func (p *BrowserProcess) WsURL() string {
	return p.wsURL
}

// Pid returns the browser process ID.
func (p *BrowserProcess) Pid() int {
	return p.pid
}

// UserDataDir returns the profile directory the process was started with.
func (p *BrowserProcess) UserDataDir() string {
	return p.userDataDir
}

// Err returns the first error the browser reported on its standard error.
func (p *BrowserProcess) Err() error {
	return p.output.err()
}

type command struct {
	*exec.Cmd
	done   chan struct{}
	output *outputParser
	pipe   *pipeTransport
}

// execute starts the process. dataDir is cleaned up once the process has
// exited, or right away if it couldn't start.
func execute(
	ctx context.Context, opts SpawnOptions, dataDir *storage.Dir, logger *log.Logger,
) (_ command, rerr error) {
	defer func() {
		if rerr != nil {
			cleanupDataDir(dataDir, logger)
		}
	}()

	cmd := exec.CommandContext(ctx, opts.ExecutablePath, spawnArgs(opts)...) //nolint:gosec
	killAfterParent(cmd)
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return command{}, fmt.Errorf("getting stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return command{}, fmt.Errorf("getting stderr pipe: %w", err)
	}

	var (
		pipe       *pipeTransport
		childFiles []*os.File
	)
	if opts.Pipe {
		// The browser reads commands from fd 3 and writes to fd 4.
		childRead, parentWrite, err := os.Pipe()
		if err != nil {
			return command{}, fmt.Errorf("creating pipe: %w", err)
		}
		parentRead, childWrite, err := os.Pipe()
		if err != nil {
			_ = childRead.Close()
			_ = parentWrite.Close()
			return command{}, fmt.Errorf("creating pipe: %w", err)
		}
		childFiles = []*os.File{childRead, childWrite}
		cmd.ExtraFiles = childFiles
		pipe = newPipeTransport(parentRead, parentWrite)
	}

	err = cmd.Start()
	for _, f := range childFiles {
		_ = f.Close()
	}
	if err != nil {
		if pipe != nil {
			_ = pipe.Close()
		}
		if errors.Is(err, os.ErrNotExist) {
			return command{}, fmt.Errorf("file does not exist: %s", opts.ExecutablePath)
		}
		return command{}, fmt.Errorf("starting browser: %w", err)
	}

	sink := newSinkWriter(opts.LogSink, logger)
	output := newOutputParser()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(sink, stdout)
	}()
	go func() {
		defer wg.Done()
		output.consume(io.TeeReader(stderr, sink))
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)

		// Wait must only be called once the pipes are drained.
		wg.Wait()
		if err := cmd.Wait(); err != nil {
			logger.Debugf("browser", "process with PID %d ended: %v", cmd.Process.Pid, err)
		}
		if pipe != nil {
			_ = pipe.Close()
		}
		cleanupDataDir(dataDir, logger)
	}()

	return command{cmd, done, output, pipe}, nil
}

func cleanupDataDir(dataDir *storage.Dir, logger *log.Logger) {
	if err := dataDir.Cleanup(); err != nil {
		logger.Errorf("browser", "cleaning up the user data directory: %v", err)
	}
}

// parseDevToolsURL waits for the WebSocket address in the browser's output
// and returns it. If the process ends abruptly, it returns the first error
// the browser reported.
func parseDevToolsURL(ctx context.Context, cmd command) (string, error) {
	select {
	case url := <-cmd.output.urlCh:
		return url, nil
	case <-cmd.done:
		err := fmt.Errorf("browser process ended unexpectedly: %w", ErrConnectionClosed)
		if oerr := cmd.output.err(); oerr != nil {
			err = fmt.Errorf("%w: %w", err, oerr)
		}
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for the devtools endpoint: %w", ctx.Err())
	}
}

// outputParser scans the browser's standard error for the DevTools
// endpoint and for error lines.
type outputParser struct {
	urlCh chan string

	mu   sync.Mutex
	errs []error
}

func newOutputParser() *outputParser {
	return &outputParser{urlCh: make(chan string, 1)}
}

func (p *outputParser) consume(r io.Reader) {
	const urlPrefix = "DevTools listening on "

	var found bool
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !found && strings.HasPrefix(line, urlPrefix) {
			found = true
			p.urlCh <- strings.TrimPrefix(strings.TrimSpace(line), urlPrefix)
		}
		if strings.Contains(line, ":ERROR:") {
			if i := strings.Index(line, "] "); i > 0 {
				p.addErr(errors.New(line[i+2:]))
			}
		}
	}
	// Keep draining so that the browser never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func (p *outputParser) addErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *outputParser) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) > 0 {
		return p.errs[0]
	}
	return nil
}

// sinkWriter serializes writes from the stdout and stderr readers into the
// log sink. Write errors are logged once and otherwise ignored so that the
// browser output keeps being drained.
type sinkWriter struct {
	mu      sync.Mutex
	w       io.Writer
	logger  *log.Logger
	errOnce sync.Once
}

func newSinkWriter(w io.Writer, logger *log.Logger) io.Writer {
	if w == nil {
		return io.Discard
	}
	return &sinkWriter{w: w, logger: logger}
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(p); err != nil {
		s.errOnce.Do(func() {
			s.logger.Warnf("browser", "writing browser output to the log sink: %v", err)
		})
	}
	return len(p), nil
}
