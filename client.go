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
	"fmt"
	"strings"
	"sync"
)

// Credentials are the two values the notification client is built from.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// PublishInput is a single outbound notification.
type PublishInput struct {
	// Topic is the destination exactly as configured.
	Topic string
	// Message is the rendered log message, unmodified.
	Message string
	// Subject is optional and only used by email subscriptions.
	Subject string
	// Attributes are published as String message attributes.
	Attributes map[string]string
	// GroupID and DeduplicationID are set for FIFO topics only.
	GroupID         string
	DeduplicationID string
}

// Receipt identifies an accepted notification.
type Receipt struct {
	MessageID      string
	SequenceNumber string
}

// Publisher is the notification client capability consumed by [Handler].
// Shutdown must be idempotent.
type Publisher interface {
	Publish(ctx context.Context, in PublishInput) (Receipt, error)
	Shutdown() error
}

// ClientFactory builds a Publisher from credentials. It is invoked at most
// once per successful construction, on the first publish attempt.
type ClientFactory func(ctx context.Context, creds Credentials) (Publisher, error)

// AppenderConfig holds the externally supplied properties of a [Handler].
type AppenderConfig struct {
	AccessKey string
	SecretKey string
	Topic     string
}

// State reports the lifecycle stage of a [Handler]'s client.
type State int

const (
	// StateUninitialized means no client has been constructed yet.
	StateUninitialized State = iota
	// StateReady means the client exists and is shared by all callers.
	StateReady
	// StateClosed means Close has run; no client will be constructed again.
	StateClosed
)

// String returns a lowercase name for s.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// clientHandle owns the lazily constructed Publisher. The presence check,
// construction and store happen under one lock so concurrent first use
// yields exactly one client.
type clientHandle struct {
	mu      sync.Mutex
	cfg     AppenderConfig
	built   AppenderConfig
	factory ClientFactory
	client  Publisher
	closed  bool
	metrics *publishMetrics
}

// newClientHandle returns an uninitialized handle.
func newClientHandle(cfg AppenderConfig, factory ClientFactory, metrics *publishMetrics) *clientHandle {
	return &clientHandle{cfg: cfg, factory: factory, metrics: metrics}
}

func (c *clientHandle) setAccessKey(v string) {
	c.mu.Lock()
	c.cfg.AccessKey = v
	c.mu.Unlock()
}

func (c *clientHandle) setSecretKey(v string) {
	c.mu.Lock()
	c.cfg.SecretKey = v
	c.mu.Unlock()
}

func (c *clientHandle) setTopic(v string) {
	c.mu.Lock()
	c.cfg.Topic = v
	c.mu.Unlock()
}

// config reports the effective configuration: the values the client was
// built from once it exists, the pending values before that.
func (c *clientHandle) config() AppenderConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.built
	}
	return c.cfg
}

// state reports the current lifecycle stage.
func (c *clientHandle) state() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return StateClosed
	case c.client != nil:
		return StateReady
	default:
		return StateUninitialized
	}
}

// acquire returns the shared client and the topic it publishes to,
// constructing the client on first use. Failed constructions are not
// cached, so a later call retries with the then-current configuration.
func (c *clientHandle) acquire(ctx context.Context) (Publisher, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, "", ErrClosed
	}
	if c.client != nil {
		return c.client, c.built.Topic, nil
	}
	if strings.TrimSpace(c.cfg.Topic) == "" {
		return nil, c.cfg.Topic, newPublishError(c.cfg.Topic, ErrMissingTopic)
	}

	client, err := c.construct(ctx, Credentials{AccessKey: c.cfg.AccessKey, SecretKey: c.cfg.SecretKey})
	if err != nil {
		return nil, c.cfg.Topic, err
	}
	c.client = client
	c.built = c.cfg
	c.metrics.clientConstructed()
	return client, c.built.Topic, nil
}

// construct invokes the factory, normalising every failure mode into a
// *CredentialError.
func (c *clientHandle) construct(ctx context.Context, creds Credentials) (client Publisher, err error) {
	if c.factory == nil {
		return nil, &CredentialError{Err: errors.New("no client factory configured")}
	}
	defer func() {
		if r := recover(); r != nil {
			client = nil
			err = &CredentialError{Err: fmt.Errorf("client factory panicked: %v", r)}
		}
	}()

	client, err = c.factory(ctx, creds)
	if err != nil {
		var credErr *CredentialError
		if errors.As(err, &credErr) {
			return nil, err
		}
		return nil, &CredentialError{Err: err}
	}
	if client == nil {
		return nil, &CredentialError{Err: errors.New("client factory returned nil publisher")}
	}
	return client, nil
}

// shutdown releases the client exactly once. A handle that never built a
// client has nothing to release.
func (c *clientHandle) shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := safeShutdown(client); err != nil {
		return &TeardownError{Err: err}
	}
	return nil
}

// safeShutdown calls client.Shutdown, converting a panic into an error.
func safeShutdown(client Publisher) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("shutdown panicked: %v", r)
		}
	}()
	return client.Shutdown()
}
