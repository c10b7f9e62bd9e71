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

// Package snstest provides in-memory doubles for exercising slogsns handlers
// without talking to AWS.
//
// A [Recorder] acts as the client factory and records every client it
// builds, every notification published, and every shutdown:
//
//	rec := snstest.NewRecorder()
//	errs := &snstest.ErrorLog{}
//	h, _ := slogsns.NewHandler(
//		slogsns.WithClientFactory(rec.Factory()),
//		slogsns.WithErrorHandler(errs),
//		slogsns.WithTopic("notify-admin"),
//		slogsns.WithCredentials("AK", "SK"),
//	)
//	slog.New(h).Error("disk full")
//	_ = rec.Published() // one PublishInput with Message "disk full"
package snstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pjscruggs/slogsns"
)

// Published is a notification captured by a [Recorder], tagged with the ID
// of the client that sent it.
type Published struct {
	slogsns.PublishInput
	ClientID int
}

// Recorder is a fake SNS client factory. It is safe for concurrent use.
type Recorder struct {
	mu            sync.Mutex
	credentials   []slogsns.Credentials
	published     []Published
	shutdowns     int
	constructErr  error
	publishErr    error
	onConstruct   func()
	onPublish     func(slogsns.PublishInput)
	nextMessageID int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Factory returns a ClientFactory that builds a new recording client on
// each call.
func (r *Recorder) Factory() slogsns.ClientFactory {
	return func(_ context.Context, creds slogsns.Credentials) (slogsns.Publisher, error) {
		r.mu.Lock()
		hook := r.onConstruct
		r.mu.Unlock()
		if hook != nil {
			hook()
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.credentials = append(r.credentials, creds)
		if r.constructErr != nil {
			return nil, r.constructErr
		}
		return &Client{rec: r, id: len(r.credentials)}, nil
	}
}

// FailConstruction makes subsequent factory calls return err. Pass nil to
// succeed again.
func (r *Recorder) FailConstruction(err error) {
	r.mu.Lock()
	r.constructErr = err
	r.mu.Unlock()
}

// FailPublish makes subsequent publishes return err. Pass nil to succeed
// again.
func (r *Recorder) FailPublish(err error) {
	r.mu.Lock()
	r.publishErr = err
	r.mu.Unlock()
}

// OnConstruct registers fn to run, unlocked, at the start of every factory
// call.
func (r *Recorder) OnConstruct(fn func()) {
	r.mu.Lock()
	r.onConstruct = fn
	r.mu.Unlock()
}

// OnPublish registers fn to run, unlocked, at the start of every publish.
func (r *Recorder) OnPublish(fn func(slogsns.PublishInput)) {
	r.mu.Lock()
	r.onPublish = fn
	r.mu.Unlock()
}

// Constructions reports how many times the factory was called.
func (r *Recorder) Constructions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.credentials)
}

// Credentials returns the credentials of every factory call, in order.
func (r *Recorder) Credentials() []slogsns.Credentials {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]slogsns.Credentials(nil), r.credentials...)
}

// Published returns every notification accepted so far, in order.
func (r *Recorder) Published() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.published...)
}

// Shutdowns reports how many shutdowns had an effect.
func (r *Recorder) Shutdowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdowns
}

// Client is the Publisher built by a Recorder's factory.
type Client struct {
	rec      *Recorder
	id       int
	shutOnce sync.Once
}

// ID is the 1-based construction order of the client.
func (c *Client) ID() int { return c.id }

// Publish records in unless the Recorder is set to fail.
func (c *Client) Publish(_ context.Context, in slogsns.PublishInput) (slogsns.Receipt, error) {
	c.rec.mu.Lock()
	hook := c.rec.onPublish
	c.rec.mu.Unlock()
	if hook != nil {
		hook(in)
	}

	c.rec.mu.Lock()
	defer c.rec.mu.Unlock()
	if c.rec.publishErr != nil {
		return slogsns.Receipt{}, c.rec.publishErr
	}
	c.rec.published = append(c.rec.published, Published{PublishInput: clone(in), ClientID: c.id})
	c.rec.nextMessageID++
	return slogsns.Receipt{MessageID: fmt.Sprintf("msg-%d", c.rec.nextMessageID)}, nil
}

// Shutdown counts the first call only.
func (c *Client) Shutdown() error {
	c.shutOnce.Do(func() {
		c.rec.mu.Lock()
		c.rec.shutdowns++
		c.rec.mu.Unlock()
	})
	return nil
}

func clone(in slogsns.PublishInput) slogsns.PublishInput {
	if in.Attributes != nil {
		attrs := make(map[string]string, len(in.Attributes))
		for k, v := range in.Attributes {
			attrs[k] = v
		}
		in.Attributes = attrs
	}
	return in
}

// ErrorLog is an ErrorHandler that keeps every description it receives.
type ErrorLog struct {
	mu           sync.Mutex
	descriptions []string
}

// Report records description.
func (l *ErrorLog) Report(description string) {
	l.mu.Lock()
	l.descriptions = append(l.descriptions, description)
	l.mu.Unlock()
}

// Descriptions returns the recorded descriptions in order.
func (l *ErrorLog) Descriptions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.descriptions...)
}

// Len reports how many descriptions were recorded.
func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.descriptions)
}

var (
	_ slogsns.Publisher    = (*Client)(nil)
	_ slogsns.ErrorHandler = (*ErrorLog)(nil)
)
