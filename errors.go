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
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/aws/smithy-go"
)

var (
	// ErrClosed is reported when a record reaches a handler after Close.
	ErrClosed = errors.New("slogsns: handler closed")

	// ErrMissingCredentials indicates an empty access key or secret key at
	// client construction time.
	ErrMissingCredentials = errors.New("slogsns: access key and secret key are required")

	// ErrMissingTopic indicates a publish attempt without a destination topic.
	ErrMissingTopic = errors.New("slogsns: topic is required")
)

// CredentialError reports a failure to build the notification client from
// the configured credentials.
type CredentialError struct {
	Err error
}

// Error implements error.
func (e *CredentialError) Error() string {
	return fmt.Sprintf("slogsns: construct SNS client: %v", e.Err)
}

// Unwrap exposes the underlying cause.
func (e *CredentialError) Unwrap() error { return e.Err }

// PublishError reports a failed publish call. Code carries the provider
// error code (for example "NotFound" or "Throttling") when the provider
// returned one.
type PublishError struct {
	Topic string
	Code  string
	Err   error
}

// Error implements error.
func (e *PublishError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slogsns: publish to %q (%s): %v", e.Topic, e.Code, e.Err)
	}
	return fmt.Sprintf("slogsns: publish to %q: %v", e.Topic, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *PublishError) Unwrap() error { return e.Err }

// TeardownError reports a failure while shutting down the client.
type TeardownError struct {
	Err error
}

// Error implements error.
func (e *TeardownError) Error() string {
	return fmt.Sprintf("slogsns: shutdown SNS client: %v", e.Err)
}

// Unwrap exposes the underlying cause.
func (e *TeardownError) Unwrap() error { return e.Err }

// newPublishError wraps err for topic, lifting the provider error code when
// err carries a smithy API error.
func newPublishError(topic string, err error) *PublishError {
	pe := &PublishError{Topic: topic, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
	}
	return pe
}

// ErrorHandler receives a human-readable description of every failed
// append. Implementations must be safe for concurrent use.
type ErrorHandler interface {
	Report(description string)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(description string)

// Report calls f(description).
func (f ErrorHandlerFunc) Report(description string) {
	if f != nil {
		f(description)
	}
}

// describeFailure renders err as the description handed to ErrorHandler.
func describeFailure(err error) string {
	return fmt.Sprintf("error sending SNS notification: %v", err)
}

type fallbackLogger interface {
	Printf(format string, args ...any)
}

var fallbackErrorLogger fallbackLogger = log.New(os.Stderr, "", log.LstdFlags)

// stderrErrorHandler is the default ErrorHandler. It writes every
// description to stderr so misconfiguration stays visible without
// disturbing the application's control flow.
type stderrErrorHandler struct {
	mu sync.Mutex
}

// Report writes description to the fallback logger.
func (h *stderrErrorHandler) Report(description string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if fallbackErrorLogger != nil {
		fallbackErrorLogger.Printf("%s", description)
	}
}
