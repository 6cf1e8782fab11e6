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

// Package errext attaches user facing details to errors: hints on how to fix
// them and the exit code of the command that failed with them.
package errext

import (
	"errors"

	"github.com/liuxd6825/brave-devtools-session/errext/exitcodes"
)

// HasHint is an error that carries a human readable suggestion.
type HasHint interface {
	error
	Hint() string
}

// HasExitCode is an error that carries the exit code of the command.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// WithHint attaches hint to err. A hint already present in err's chain is
// kept in parentheses: "new hint (old hint)". A nil err stays nil.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return withHint{err, hint}
}

type withHint struct {
	error
	hint string
}

func (wh withHint) Unwrap() error { return wh.error }

func (wh withHint) Hint() string {
	var inner HasHint
	if errors.As(wh.error, &inner) {
		return wh.hint + " (" + inner.Hint() + ")"
	}
	return wh.hint
}

// WithExitCodeIfNone attaches code to err unless err's chain already has
// an exit code. A nil err stays nil.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	if _, ok := ExitCodeOf(err); ok {
		return err
	}
	return withExitCode{err, code}
}

// ExitCodeOf returns the exit code attached to err, if any.
func ExitCodeOf(err error) (exitcodes.ExitCode, bool) {
	var ecerr HasExitCode
	if !errors.As(err, &ecerr) {
		return 0, false
	}
	return ecerr.ExitCode(), true
}

type withExitCode struct {
	error
	code exitcodes.ExitCode
}

func (we withExitCode) Unwrap() error { return we.error }

func (we withExitCode) ExitCode() exitcodes.ExitCode { return we.code }

var (
	_ HasHint     = withHint{}
	_ HasExitCode = withExitCode{}
)
