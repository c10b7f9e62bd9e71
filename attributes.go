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
	"context"
	"log/slog"
	"strings"
)

const (
	// SeverityAttribute is the message attribute carrying the level name.
	SeverityAttribute = "severity"

	// MaxMessageAttributes is the SNS limit on attributes per message.
	MaxMessageAttributes = 10

	maxAttributeNameLen = 256
)

// messageAttributes assembles the String attributes for one event. The
// severity comes first, then trace context, then flattened record attributes
// until the SNS limit is reached.
func (a *appender) messageAttributes(ctx context.Context, ev Event) map[string]string {
	var attrs map[string]string
	if a.severityAttr {
		attrs = map[string]string{SeverityAttribute: Level(ev.Level).String()}
	}
	if a.propagateTrace {
		attrs = injectTrace(ctx, attrs, a.propagator, a.cloudTrace)
	}
	if a.recordAttrs && len(ev.Attrs) > 0 {
		if attrs == nil {
			attrs = make(map[string]string, len(ev.Attrs))
		}
		flattenAttrs(attrs, "", ev.Attrs)
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// flattenAttrs writes attrs into dst using dotted group paths. Existing keys
// win, empty values are skipped and writing stops at MaxMessageAttributes.
func flattenAttrs(dst map[string]string, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if len(dst) >= MaxMessageAttributes {
			return
		}
		attr.Value = attr.Value.Resolve()
		if attr.Equal(slog.Attr{}) {
			continue
		}
		key := attr.Key
		if prefix != "" && key != "" {
			key = prefix + "." + key
		} else if key == "" {
			key = prefix
		}
		if attr.Value.Kind() == slog.KindGroup {
			flattenAttrs(dst, key, attr.Value.Group())
			continue
		}
		name, ok := attributeName(key)
		if !ok {
			continue
		}
		if _, exists := dst[name]; exists {
			continue
		}
		value := attr.Value.String()
		if value == "" {
			continue
		}
		dst[name] = value
	}
}

// attributeName maps key onto the SNS attribute name alphabet. Names that
// are empty, reserved for AWS, or too long are rejected.
func attributeName(key string) (string, bool) {
	key = strings.Trim(key, ".")
	if key == "" || len(key) > maxAttributeNameLen {
		return "", false
	}
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "aws.") || strings.HasPrefix(lower, "amazon.") {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(key))
	prevDot := false
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
			prevDot = false
		case r == '.':
			if !prevDot {
				b.WriteRune(r)
			}
			prevDot = true
		default:
			b.WriteByte('_')
			prevDot = false
		}
	}
	return b.String(), true
}

// wrapInGroups nests attrs inside groups, outermost first.
func wrapInGroups(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 || len(attrs) == 0 {
		return attrs
	}
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	wrapped := slog.Group(groups[len(groups)-1], args...)
	for i := len(groups) - 2; i >= 0; i-- {
		wrapped = slog.Group(groups[i], wrapped)
	}
	return []slog.Attr{wrapped}
}
