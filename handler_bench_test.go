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
	"testing"
	"time"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, PublishInput) (Receipt, error) {
	return Receipt{MessageID: "m"}, nil
}

func (discardPublisher) Shutdown() error { return nil }

func newBenchHandler(b *testing.B, opts ...Option) *Handler {
	b.Helper()
	base := []Option{
		WithTopic("bench"),
		WithClientFactory(func(context.Context, Credentials) (Publisher, error) {
			return discardPublisher{}, nil
		}),
		WithErrorHandler(ErrorHandlerFunc(func(string) {})),
	}
	h, err := NewHandler(append(base, opts...)...)
	if err != nil {
		b.Fatalf("NewHandler() returned %v", err)
	}
	b.Cleanup(func() { _ = h.Close() })
	return h
}

// BenchmarkHandlerHandle measures the per-record overhead around the client.
func BenchmarkHandlerHandle(b *testing.B) {
	h := newBenchHandler(b)
	r := slog.NewRecord(time.Now(), slog.LevelError, "disk full", 0)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		_ = h.Handle(ctx, r)
	}
}

// BenchmarkHandlerHandleWithAttributes includes attribute flattening.
func BenchmarkHandlerHandleWithAttributes(b *testing.B) {
	h := newBenchHandler(b, WithRecordAttributes(true)).WithAttrs([]slog.Attr{slog.String("host", "a")}).WithGroup("req")
	r := slog.NewRecord(time.Now(), slog.LevelError, "disk full", 0)
	r.AddAttrs(slog.Int("id", 7), slog.String("path", "/var"))
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		_ = h.Handle(ctx, r)
	}
}

// BenchmarkHandlerParallel exercises the shared client lock.
func BenchmarkHandlerParallel(b *testing.B) {
	h := newBenchHandler(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			h.Append(ctx, Event{Level: slog.LevelError, Message: "disk full"})
		}
	})
}
