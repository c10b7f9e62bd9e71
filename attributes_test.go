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
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestAttributeName covers sanitizing and reserved prefixes.
func TestAttributeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"host", "host", true},
		{"req.id", "req.id", true},
		{"http status", "http_status", true},
		{"a..b", "a.b", true},
		{".leading.", "leading", true},
		{"AWS.reserved", "", false},
		{"amazon.reserved", "", false},
		{"", "", false},
		{"...", "", false},
		{strings.Repeat("k", maxAttributeNameLen+1), "", false},
		{"ünicode", "_nicode", true},
	}

	for _, tt := range tests {
		got, ok := attributeName(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("attributeName(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// TestFlattenAttrs verifies dotted group paths, inline groups and skips.
func TestFlattenAttrs(t *testing.T) {
	t.Parallel()

	dst := map[string]string{}
	flattenAttrs(dst, "", []slog.Attr{
		slog.String("host", "a"),
		slog.Group("req", slog.Int("id", 7), slog.Group("user", slog.String("name", "ada"))),
		slog.Group("", slog.Bool("inline", true)),
		slog.String("blank", ""),
		{},
		slog.String("host", "duplicate"),
		slog.Duration("took", 1500*time.Millisecond),
	})

	want := map[string]string{
		"host":          "a",
		"req.id":        "7",
		"req.user.name": "ada",
		"inline":        "true",
		"took":          "1.5s",
	}
	if !reflect.DeepEqual(dst, want) {
		t.Fatalf("flattenAttrs() = %v, want %v", dst, want)
	}
}

// TestFlattenAttrsStopsAtLimit ensures the map never exceeds the SNS limit.
func TestFlattenAttrsStopsAtLimit(t *testing.T) {
	t.Parallel()

	dst := map[string]string{SeverityAttribute: "ERROR"}
	attrs := make([]slog.Attr, 0, 20)
	for i := 0; i < 20; i++ {
		attrs = append(attrs, slog.Int("k"+strings.Repeat("x", i), i))
	}
	flattenAttrs(dst, "", attrs)
	if len(dst) != MaxMessageAttributes {
		t.Fatalf("len(dst) = %d, want %d", len(dst), MaxMessageAttributes)
	}
}

// TestWrapInGroups nests attributes under every open group.
func TestWrapInGroups(t *testing.T) {
	t.Parallel()

	attrs := []slog.Attr{slog.String("k", "v")}
	if got := wrapInGroups(nil, attrs); !reflect.DeepEqual(got, attrs) {
		t.Fatalf("wrapInGroups(nil) = %v, want unchanged", got)
	}

	wrapped := wrapInGroups([]string{"outer", "inner"}, attrs)
	dst := map[string]string{}
	flattenAttrs(dst, "", wrapped)
	if dst["outer.inner.k"] != "v" || len(dst) != 1 {
		t.Fatalf("flattened wrapped attrs = %v, want outer.inner.k=v", dst)
	}
}

// TestMessageAttributesOrder keeps severity ahead of record attributes when
// the limit is reached.
func TestMessageAttributesOrder(t *testing.T) {
	t.Parallel()

	a := &appender{severityAttr: true, recordAttrs: true}
	attrs := make([]slog.Attr, 0, MaxMessageAttributes)
	for i := 0; i < MaxMessageAttributes; i++ {
		attrs = append(attrs, slog.Int(string(rune('a'+i)), i))
	}
	got := a.messageAttributes(context.Background(), Event{Level: slog.LevelWarn, Attrs: attrs})
	if got[SeverityAttribute] != "WARN" {
		t.Fatalf("severity = %q, want WARN", got[SeverityAttribute])
	}
	if len(got) != MaxMessageAttributes {
		t.Fatalf("len(attrs) = %d, want %d", len(got), MaxMessageAttributes)
	}
	if _, ok := got[string(rune('a'+MaxMessageAttributes-1))]; ok {
		t.Fatalf("last record attribute kept despite limit: %v", got)
	}
}

// TestMessageAttributesEmpty returns nil when nothing is enabled.
func TestMessageAttributesEmpty(t *testing.T) {
	t.Parallel()

	a := &appender{}
	if got := a.messageAttributes(context.Background(), Event{Attrs: []slog.Attr{slog.String("k", "v")}}); got != nil {
		t.Fatalf("messageAttributes() = %v, want nil", got)
	}
}
