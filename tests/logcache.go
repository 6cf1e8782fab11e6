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

// Package tests contains helpers shared by the package tests.
package tests

import (
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogCache implements the logrus.Hook interface and could be used to check
// if log messages were outputted.
type LogCache struct {
	HookedLevels []logrus.Level

	mu      sync.RWMutex
	entries []logrus.Entry
}

// Levels just returns whatever was stored in the HookedLevels slice.
func (lc *LogCache) Levels() []logrus.Level {
	return lc.HookedLevels
}

// Fire saves whatever message the logrus library passed in the cache.
func (lc *LogCache) Fire(e *logrus.Entry) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.entries = append(lc.entries, *e)
	return nil
}

// Contains returns true if msg is contained in any of the cached logged
// events or false otherwise.
func (lc *LogCache) Contains(msg string) bool {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	for _, evt := range lc.entries {
		if strings.Contains(evt.Message, msg) {
			return true
		}
	}
	return false
}

// Categories returns the category field of the cached events, in order.
func (lc *LogCache) Categories() []string {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	var cats []string
	for _, evt := range lc.entries {
		if c, ok := evt.Data["category"].(string); ok {
			cats = append(cats, c)
		}
	}
	return cats
}

var _ logrus.Hook = &LogCache{}

// AttachLogCache sets logger to DebugLevel, attaches a LogCache hook and
// returns it.
func AttachLogCache(logger *logrus.Logger) *LogCache {
	lc := &LogCache{HookedLevels: []logrus.Level{logrus.DebugLevel, logrus.WarnLevel}}
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(lc)
	logger.SetOutput(io.Discard)
	return lc
}
