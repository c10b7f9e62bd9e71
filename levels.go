// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package slogsns

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Level represents the severity of a log event. It extends slog.Level with
// the TRACE and FATAL severities commonly used by paging setups while keeping
// the integer representation compatible with slog.Level.
type Level slog.Level

const (
	// LevelTrace sits below Debug for very chatty diagnostics.
	LevelTrace Level = -8

	// LevelDebug matches slog.LevelDebug.
	LevelDebug Level = Level(slog.LevelDebug) // -4

	// LevelInfo matches slog.LevelInfo.
	LevelInfo Level = Level(slog.LevelInfo) // 0

	// LevelWarn matches slog.LevelWarn.
	LevelWarn Level = Level(slog.LevelWarn) // 4

	// LevelError matches slog.LevelError and is the default notification
	// threshold.
	LevelError Level = Level(slog.LevelError) // 8

	// LevelFatal marks events after which the process is not expected to
	// continue.
	LevelFatal Level = 12
)

// String returns the canonical name of the level ("TRACE", "DEBUG", "INFO",
// "WARN", "ERROR", "FATAL"). Levels between the defined constants are named
// after the nearest lower constant plus the offset, for example "ERROR+2".
// The value is published as the severity message attribute.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	}

	var (
		base Level
		name string
	)
	switch {
	case l < LevelTrace:
		return slog.Level(l).String()
	case l < LevelDebug:
		base, name = LevelTrace, "TRACE"
	case l < LevelInfo:
		base, name = LevelDebug, "DEBUG"
	case l < LevelWarn:
		base, name = LevelInfo, "INFO"
	case l < LevelError:
		base, name = LevelWarn, "WARN"
	case l < LevelFatal:
		base, name = LevelError, "ERROR"
	default:
		base, name = LevelFatal, "FATAL"
	}
	return fmt.Sprintf("%s+%d", name, int(l-base))
}

// Level returns the underlying slog.Level so Level satisfies slog.Leveler.
func (l Level) Level() slog.Level {
	return slog.Level(l)
}

// ParseLevel converts a level name or integer into a slog.Level. Names are
// case-insensitive; "warning" is accepted as an alias for "warn". The second
// return value reports whether value was recognised.
func ParseLevel(value string) (slog.Level, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch trimmed {
	case "":
		return 0, false
	case "trace":
		return LevelTrace.Level(), true
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "fatal":
		return LevelFatal.Level(), true
	}
	if lv, err := strconv.Atoi(trimmed); err == nil {
		return slog.Level(lv), true
	}
	return 0, false
}
