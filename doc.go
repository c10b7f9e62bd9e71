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

// Package slogsns provides an [log/slog] handler that forwards log messages
// at or above a severity threshold to an AWS SNS topic. It is meant to sit
// next to a regular handler so that ERROR and worse page someone while the
// rest of the log stream goes to stdout or a file.
//
// The primary entry point is [NewHandler]. The returned [Handler]:
//   - publishes one SNS notification per handled record, synchronously, with
//     the record's message as the body;
//   - builds the SNS client lazily from an access key and secret key on the
//     first record, exactly once even under concurrent use;
//   - never returns or panics on failure, describing each failed record to
//     an [ErrorHandler] instead (stderr by default);
//   - adds a severity message attribute, W3C baggage and, when a span is
//     active, trace context so subscribers can correlate notifications.
//
// # Quick Start
//
//	notifier, err := slogsns.NewHandler(
//	    slogsns.WithTopic("arn:aws:sns:us-east-1:123456789012:notify-admin"),
//	    slogsns.WithCredentials(accessKey, secretKey),
//	    slogsns.WithLevel(slog.LevelError),
//	)
//	if err != nil {
//	    log.Fatalf("create slogsns handler: %v", err)
//	}
//	defer notifier.Close()
//
//	logger := slog.New(notifier)
//	logger.Warn("this message will NOT go to the SNS topic")
//	logger.Error("this message will be sent to SNS!")
//
// # Configuration
//
// Options such as [WithTopic], [WithCredentials], [WithRegion],
// [WithEndpoint], [WithLevel], [WithErrorHandler] and [WithMetrics] adjust
// the handler programmatically. The SLOGSNS_ACCESS_KEY, SLOGSNS_SECRET_KEY,
// SLOGSNS_TOPIC, SLOGSNS_REGION, SLOGSNS_ENDPOINT, SLOGSNS_LEVEL,
// SLOGSNS_SUBJECT and SLOGSNS_MESSAGE_ATTRIBUTES environment variables
// provide defaults that options override.
//
// # Trace Propagation
//
// Trace attributes come from [WithPropagators] or, when unset, the global
// OpenTelemetry propagator. The OpenTelemetry default is a no-op, so
// applications that do not configure otel.SetTextMapPropagator themselves
// should call [EnsurePropagation] once at startup:
//
//	slogsns.EnsurePropagation()
//
// SNS truncates messages longer than 140 characters for SMS subscriptions.
// slogsns always sends the full message.
package slogsns
