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
	"errors"
	"log/slog"
	"testing"
)

type countingPublisher struct {
	shutdowns int
	err       error
}

func (p *countingPublisher) Publish(context.Context, PublishInput) (Receipt, error) {
	return Receipt{}, nil
}

func (p *countingPublisher) Shutdown() error {
	p.shutdowns++
	return p.err
}

// TestStateString covers named and unknown states.
func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateUninitialized: "uninitialized",
		StateReady:         "ready",
		StateClosed:        "closed",
		State(9):           "state(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

// TestClientHandleRejectsEmptyTopicBeforeConstruction ensures the factory
// never runs without a destination.
func TestClientHandleRejectsEmptyTopicBeforeConstruction(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newClientHandle(AppenderConfig{AccessKey: "AK", SecretKey: "SK"}, func(context.Context, Credentials) (Publisher, error) {
		calls++
		return &countingPublisher{}, nil
	}, nil)

	_, _, err := c.acquire(context.Background())
	if !errors.Is(err, ErrMissingTopic) {
		t.Fatalf("acquire() error = %v, want ErrMissingTopic", err)
	}
	var pe *PublishError
	if !errors.As(err, &pe) {
		t.Fatalf("acquire() error = %T, want *PublishError", err)
	}
	if calls != 0 {
		t.Fatalf("factory called %d times, want 0", calls)
	}
}

// TestClientHandleConstructionErrors normalises every factory failure into a
// CredentialError.
func TestClientHandleConstructionErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("denied")
	tests := []struct {
		name    string
		factory ClientFactory
		wantIs  error
	}{
		{name: "nil_factory", factory: nil},
		{name: "error", factory: func(context.Context, Credentials) (Publisher, error) { return nil, cause }, wantIs: cause},
		{name: "credential_error_kept", factory: func(context.Context, Credentials) (Publisher, error) {
			return nil, &CredentialError{Err: ErrMissingCredentials}
		}, wantIs: ErrMissingCredentials},
		{name: "nil_publisher", factory: func(context.Context, Credentials) (Publisher, error) { return nil, nil }},
		{name: "panic", factory: func(context.Context, Credentials) (Publisher, error) { panic("kaboom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClientHandle(AppenderConfig{Topic: "t"}, tt.factory, nil)
			_, _, err := c.acquire(context.Background())
			var credErr *CredentialError
			if !errors.As(err, &credErr) {
				t.Fatalf("acquire() error = %v, want *CredentialError", err)
			}
			if errors.As(credErr.Err, new(*CredentialError)) {
				t.Fatalf("CredentialError wrapped twice: %v", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
			if got := c.state(); got != StateUninitialized {
				t.Fatalf("state() = %v, want %v", got, StateUninitialized)
			}
		})
	}
}

// TestClientHandleShutdownOnce releases the client exactly once and wraps
// teardown failures.
func TestClientHandleShutdownOnce(t *testing.T) {
	t.Parallel()

	pub := &countingPublisher{err: errors.New("close failed")}
	c := newClientHandle(AppenderConfig{Topic: "t"}, func(context.Context, Credentials) (Publisher, error) {
		return pub, nil
	}, nil)
	if _, _, err := c.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() returned %v", err)
	}

	err := c.shutdown()
	var td *TeardownError
	if !errors.As(err, &td) {
		t.Fatalf("shutdown() error = %v, want *TeardownError", err)
	}
	if err := c.shutdown(); err != nil {
		t.Fatalf("second shutdown() returned %v, want nil", err)
	}
	if pub.shutdowns != 1 {
		t.Fatalf("Shutdown called %d times, want 1", pub.shutdowns)
	}
	if _, _, err := c.acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("acquire() after shutdown = %v, want ErrClosed", err)
	}
}

// TestLoadConfigFromEnv reads every SLOGSNS_* variable and keeps defaults
// for invalid values.
func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(envAccessKey, "AK")
	t.Setenv(envSecretKey, "SK")
	t.Setenv(envTopic, " arn:aws:sns:eu-west-1:1:alerts ")
	t.Setenv(envRegion, "eu-west-1")
	t.Setenv(envEndpoint, "http://localhost:4566")
	t.Setenv(envSubject, "Alert")
	t.Setenv(envLevel, "warn")
	t.Setenv(envMessageAttributes, "true")

	cfg := loadConfigFromEnv(slog.New(slog.DiscardHandler))
	want := handlerConfig{
		AccessKey:         "AK",
		SecretKey:         "SK",
		Topic:             "arn:aws:sns:eu-west-1:1:alerts",
		Region:            "eu-west-1",
		Endpoint:          "http://localhost:4566",
		Subject:           "Alert",
		Level:             slog.LevelWarn,
		MessageAttributes: true,
	}
	if cfg != want {
		t.Fatalf("loadConfigFromEnv() = %+v, want %+v", cfg, want)
	}

	t.Setenv(envLevel, "loud")
	t.Setenv(envMessageAttributes, "sometimes")
	cfg = loadConfigFromEnv(nil)
	if cfg.Level != slog.LevelError {
		t.Fatalf("Level = %v, want default %v for invalid value", cfg.Level, slog.LevelError)
	}
	if cfg.MessageAttributes {
		t.Fatalf("MessageAttributes = true, want default false for invalid value")
	}
}

// TestApplyOptionsOverridesEnvironment lets options win over environment
// values.
func TestApplyOptionsOverridesEnvironment(t *testing.T) {
	t.Parallel()

	cfg := handlerConfig{AccessKey: "env", Topic: "env", Level: slog.LevelError}
	o := &options{}
	WithAccessKey("opt")(o)
	WithTopic("opt-topic")(o)
	WithRegion(" ap-south-1 ")(o)
	WithLevel(slog.LevelInfo)(o)
	applyOptions(&cfg, o)

	if cfg.AccessKey != "opt" || cfg.Topic != "opt-topic" || cfg.Region != "ap-south-1" || cfg.Level != slog.LevelInfo {
		t.Fatalf("applyOptions() = %+v", cfg)
	}
}
