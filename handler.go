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
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/propagation"
)

const (
	envAccessKey         = "SLOGSNS_ACCESS_KEY"
	envSecretKey         = "SLOGSNS_SECRET_KEY"
	envTopic             = "SLOGSNS_TOPIC"
	envRegion            = "SLOGSNS_REGION"
	envEndpoint          = "SLOGSNS_ENDPOINT"
	envLevel             = "SLOGSNS_LEVEL"
	envSubject           = "SLOGSNS_SUBJECT"
	envMessageAttributes = "SLOGSNS_MESSAGE_ATTRIBUTES"

	// DefaultFIFOGroupID is the message group used for FIFO topics when
	// WithFIFOGroupID is not supplied.
	DefaultFIFOGroupID = "slogsns"
)

// Option mutates Handler construction behaviour when supplied to [NewHandler].
// Options are applied in order and override environment variables.
type Option func(*options)

// Event is one log event handed to [Handler.Append]. It has already passed
// the host's severity threshold.
type Event struct {
	Level   slog.Level
	Time    time.Time
	Message string
	Attrs   []slog.Attr
}

// RenderMessage returns the notification body for the event: the message
// text, unmodified.
func (e Event) RenderMessage() string {
	return e.Message
}

// Handler is an [slog.Handler] that publishes every record it handles to an
// SNS topic. The notification client is built on the first publish and
// shared by all handlers derived through WithAttrs and WithGroup.
//
// Publishing is synchronous: each record costs one SNS round trip on the
// calling goroutine. Failures never reach the caller; they are described to
// the configured [ErrorHandler] instead.
type Handler struct {
	app    *appender
	groups []string
	preset []slog.Attr
}

// appender is the state shared by a Handler and its derivatives.
type appender struct {
	handle         *clientHandle
	levelVar       *slog.LevelVar
	errorHandler   ErrorHandler
	internalLogger *slog.Logger
	metrics        *publishMetrics
	subject        string
	groupID        string
	severityAttr   bool
	recordAttrs    bool
	propagateTrace bool
	cloudTrace     bool
	propagator     propagation.TextMapPropagator
	newDedupID     func() string
}

type handlerConfig struct {
	AccessKey         string
	SecretKey         string
	Topic             string
	Region            string
	Endpoint          string
	Subject           string
	Level             slog.Level
	MessageAttributes bool
}

type options struct {
	accessKey      *string
	secretKey      *string
	topic          *string
	region         *string
	endpoint       *string
	subject        *string
	level          *slog.Level
	levelVar       *slog.LevelVar
	recordAttrs    *bool
	severityAttr   *bool
	propagateTrace *bool
	cloudTrace     *bool
	httpTracing    bool
	propagator     propagation.TextMapPropagator
	groupID        *string
	factory        ClientFactory
	errorHandler   ErrorHandler
	internalLogger *slog.Logger
	registerer     prometheus.Registerer
}

// NewHandler builds a Handler. It reads SLOGSNS_* environment overrides and
// then applies opts. The notification client is not constructed until the
// first record is handled, so credentials and topic may still be changed
// with the setter methods.
//
// Example:
//
//	h, err := slogsns.NewHandler(
//		slogsns.WithTopic("arn:aws:sns:us-east-1:123456789012:notify-admin"),
//		slogsns.WithCredentials(os.Getenv("AWS_ACCESS_KEY"), os.Getenv("AWS_SECRET_KEY")),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Close()
//	slog.New(h).Error("disk full on host A")
func NewHandler(opts ...Option) (*Handler, error) {
	builder := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}

	internalLogger := builder.internalLogger
	if internalLogger == nil {
		internalLogger = slog.New(slog.DiscardHandler)
	}

	cfg := loadConfigFromEnv(internalLogger)
	applyOptions(&cfg, builder)

	metrics, err := newPublishMetrics(builder.registerer)
	if err != nil {
		return nil, fmt.Errorf("slogsns: register metrics: %w", err)
	}

	factory := builder.factory
	if factory == nil {
		factory = NewSNSClientFactory(
			WithSNSRegion(cfg.Region),
			WithSNSEndpoint(cfg.Endpoint),
			WithSNSHTTPTracing(builder.httpTracing),
		)
	}

	levelVar := builder.levelVar
	if levelVar == nil {
		levelVar = new(slog.LevelVar)
	}
	levelVar.Set(cfg.Level)

	errorHandler := builder.errorHandler
	if errorHandler == nil {
		errorHandler = &stderrErrorHandler{}
	}

	groupID := DefaultFIFOGroupID
	if builder.groupID != nil && *builder.groupID != "" {
		groupID = *builder.groupID
	}

	app := &appender{
		handle: newClientHandle(AppenderConfig{
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Topic:     cfg.Topic,
		}, factory, metrics),
		levelVar:       levelVar,
		errorHandler:   errorHandler,
		internalLogger: internalLogger,
		metrics:        metrics,
		subject:        cfg.Subject,
		groupID:        groupID,
		severityAttr:   boolOr(builder.severityAttr, true),
		recordAttrs:    cfg.MessageAttributes,
		propagateTrace: boolOr(builder.propagateTrace, true),
		cloudTrace:     boolOr(builder.cloudTrace, false),
		propagator:     builder.propagator,
		newDedupID:     uuid.NewString,
	}

	return &Handler{app: app}, nil
}

// Enabled reports whether level meets the handler's threshold. This is the
// host-side filter; Handle and Append publish whatever they receive.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	if h == nil || h.app == nil {
		return false
	}
	return level >= h.app.levelVar.Level()
}

// Handle publishes r. It always returns nil; failures go to the
// [ErrorHandler].
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h == nil || h.app == nil {
		return nil
	}
	ev := Event{Level: r.Level, Time: r.Time, Message: r.Message}
	if h.app.recordAttrs {
		attrs := make([]slog.Attr, 0, len(h.preset)+r.NumAttrs())
		attrs = append(attrs, h.preset...)
		recordAttrs := make([]slog.Attr, 0, r.NumAttrs())
		r.Attrs(func(attr slog.Attr) bool {
			recordAttrs = append(recordAttrs, attr)
			return true
		})
		ev.Attrs = append(attrs, wrapInGroups(h.groups, recordAttrs)...)
	}
	h.Append(ctx, ev)
	return nil
}

// Append renders ev, obtains the shared client (constructing it on first
// use), and publishes one notification to the configured topic. It never
// panics and never returns an error: every failure is described to the
// [ErrorHandler] exactly once.
func (h *Handler) Append(ctx context.Context, ev Event) {
	if h == nil || h.app == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if isInternal(ctx) {
		return
	}
	if err := h.app.deliver(ctx, ev); err != nil {
		h.app.report(ctx, err)
	}
}

// WithAttrs returns a handler that attaches attrs to every record. The
// derived handler shares the parent's client.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	preset := make([]slog.Attr, 0, len(h.preset)+len(attrs))
	preset = append(preset, h.preset...)
	preset = append(preset, wrapInGroups(h.groups, attrs)...)
	return &Handler{app: h.app, groups: h.groups, preset: preset}
}

// WithGroup returns a handler that nests subsequent attributes under name.
// The derived handler shares the parent's client.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &Handler{app: h.app, groups: groups, preset: h.preset}
}

// SetAccessKey sets the credential identifier. It has no effect once the
// client has been constructed.
func (h *Handler) SetAccessKey(value string) { h.app.handle.setAccessKey(value) }

// SetSecretKey sets the credential secret. It has no effect once the client
// has been constructed.
func (h *Handler) SetSecretKey(value string) { h.app.handle.setSecretKey(value) }

// SetTopic sets the destination topic. It has no effect once the client has
// been constructed.
func (h *Handler) SetTopic(value string) { h.app.handle.setTopic(value) }

// Config reports the configuration in effect: the values the client was
// built from when it exists, the pending values otherwise.
func (h *Handler) Config() AppenderConfig { return h.app.handle.config() }

// State reports whether the client has been constructed or closed.
func (h *Handler) State() State { return h.app.handle.state() }

// RequiresLayout reports whether the handler needs an external formatter.
// It does not: the notification body is the record's message.
func (h *Handler) RequiresLayout() bool { return false }

// SetLevel updates the minimum level accepted by Enabled. Calls are safe for
// concurrent use.
func (h *Handler) SetLevel(level slog.Level) {
	if h == nil || h.app == nil {
		return
	}
	h.app.levelVar.Set(level)
}

// Level reports the current minimum level.
func (h *Handler) Level() slog.Level {
	if h == nil || h.app == nil {
		return slog.LevelError
	}
	return h.app.levelVar.Level()
}

// LevelVar returns the slog.LevelVar gating Enabled.
func (h *Handler) LevelVar() *slog.LevelVar {
	if h == nil || h.app == nil {
		return nil
	}
	return h.app.levelVar
}

// Close releases the notification client. It is safe to call multiple
// times and on a handler that never published; only the first call
// performs work. Close is expected to run after concurrent logging stops.
func (h *Handler) Close() error {
	if h == nil || h.app == nil {
		return nil
	}
	if err := h.app.handle.shutdown(); err != nil {
		h.app.internalLogger.LogAttrs(internalContext(context.Background()), slog.LevelWarn,
			"failed to shut down SNS client", slog.Any("error", err))
		return err
	}
	return nil
}

// deliver performs one publish attempt.
func (a *appender) deliver(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("slogsns: recovered panic while publishing: %v", r)
		}
	}()

	body := ev.RenderMessage()

	client, topic, err := a.handle.acquire(ctx)
	if err != nil {
		a.metrics.observeFailure()
		return err
	}

	in := PublishInput{
		Topic:      topic,
		Message:    body,
		Subject:    a.subject,
		Attributes: a.messageAttributes(ctx, ev),
	}
	if isFIFOTopic(topic) {
		in.GroupID = a.groupID
		in.DeduplicationID = a.newDedupID()
	}

	start := time.Now()
	receipt, err := client.Publish(ctx, in)
	a.metrics.observePublish(err, time.Since(start))
	if err != nil {
		return newPublishError(topic, err)
	}

	a.internalLogger.LogAttrs(internalContext(ctx), slog.LevelDebug, "published notification",
		slog.String("topic", topic),
		slog.String("message_id", receipt.MessageID))
	return nil
}

// report hands err to the ErrorHandler. A panicking ErrorHandler is
// contained here.
func (a *appender) report(ctx context.Context, err error) {
	a.internalLogger.LogAttrs(internalContext(ctx), slog.LevelDebug, "notification failed", slog.Any("error", err))
	defer func() {
		if r := recover(); r != nil {
			a.internalLogger.LogAttrs(internalContext(ctx), slog.LevelWarn, "error handler panicked", slog.Any("panic", r))
		}
	}()
	a.errorHandler.Report(describeFailure(err))
}

type internalKey struct{}

// internalContext marks ctx as carrying the handler's own diagnostics so an
// internal logger that routes back into a Handler does not publish them.
func internalContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalKey{}, true)
}

func isInternal(ctx context.Context) bool {
	v, _ := ctx.Value(internalKey{}).(bool)
	return v
}

// WithCredentials sets both credential values.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = &accessKey
		o.secretKey = &secretKey
	}
}

// WithAccessKey sets the credential identifier.
func WithAccessKey(accessKey string) Option {
	return func(o *options) {
		o.accessKey = &accessKey
	}
}

// WithSecretKey sets the credential secret.
func WithSecretKey(secretKey string) Option {
	return func(o *options) {
		o.secretKey = &secretKey
	}
}

// WithTopic sets the destination topic ARN. The value is sent verbatim.
func WithTopic(topic string) Option {
	return func(o *options) {
		o.topic = &topic
	}
}

// WithRegion selects the AWS region used by the default client factory.
func WithRegion(region string) Option {
	trimmed := strings.TrimSpace(region)
	return func(o *options) {
		o.region = &trimmed
	}
}

// WithEndpoint overrides the SNS endpoint used by the default client
// factory, for example "http://localhost:4566" for LocalStack.
func WithEndpoint(endpoint string) Option {
	trimmed := strings.TrimSpace(endpoint)
	return func(o *options) {
		o.endpoint = &trimmed
	}
}

// WithHTTPTracing wraps the default client's transport with otelhttp.
func WithHTTPTracing(enabled bool) Option {
	return func(o *options) {
		o.httpTracing = enabled
	}
}

// WithClientFactory replaces the SNS client factory. WithRegion,
// WithEndpoint and WithHTTPTracing only affect the default factory.
func WithClientFactory(factory ClientFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithLevel sets the minimum level accepted by Enabled. The default is
// [slog.LevelError].
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithLevelVar shares levelVar with the handler so external code can adjust
// the threshold at runtime. The handler keeps the LevelVar's current value.
func WithLevelVar(levelVar *slog.LevelVar) Option {
	return func(o *options) {
		if levelVar != nil {
			o.levelVar = levelVar
		}
	}
}

// WithErrorHandler installs the callback that receives failure
// descriptions. The default writes them to stderr.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(o *options) {
		o.errorHandler = handler
	}
}

// WithInternalLogger injects a logger for the handler's own diagnostics.
func WithInternalLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.internalLogger = logger
	}
}

// WithSubject sets the subject used by email subscriptions.
func WithSubject(subject string) Option {
	return func(o *options) {
		o.subject = &subject
	}
}

// WithSeverityAttribute toggles the severity message attribute. Enabled by
// default.
func WithSeverityAttribute(enabled bool) Option {
	return func(o *options) {
		o.severityAttr = &enabled
	}
}

// WithRecordAttributes publishes handler and record attributes as String
// message attributes named by their dotted group path. SNS accepts at most
// [MaxMessageAttributes] per message; extras are dropped. Disabled by
// default.
func WithRecordAttributes(enabled bool) Option {
	return func(o *options) {
		o.recordAttrs = &enabled
	}
}

// WithTracePropagation toggles injection of trace context into message
// attributes. Enabled by default.
func WithTracePropagation(enabled bool) Option {
	return func(o *options) {
		o.propagateTrace = &enabled
	}
}

// WithPropagators supplies the propagator used for trace injection. When
// omitted, otel.GetTextMapPropagator() is used.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.propagator = p
	}
}

// WithCloudTraceAttributes additionally injects the X-Cloud-Trace-Context
// attribute for subscribers running on Google Cloud.
func WithCloudTraceAttributes(enabled bool) Option {
	return func(o *options) {
		o.cloudTrace = &enabled
	}
}

// WithFIFOGroupID sets the message group used when the topic is a FIFO
// topic.
func WithFIFOGroupID(id string) Option {
	trimmed := strings.TrimSpace(id)
	return func(o *options) {
		o.groupID = &trimmed
	}
}

// WithMetrics registers publish counters and latency histograms with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// loadConfigFromEnv reads SLOGSNS_* overrides, logging invalid values to
// logger and keeping the defaults for them.
func loadConfigFromEnv(logger *slog.Logger) handlerConfig {
	cfg := handlerConfig{
		Level: slog.LevelError,
	}

	cfg.AccessKey = os.Getenv(envAccessKey)
	cfg.SecretKey = os.Getenv(envSecretKey)
	cfg.Topic = strings.TrimSpace(os.Getenv(envTopic))
	cfg.Region = strings.TrimSpace(os.Getenv(envRegion))
	cfg.Endpoint = strings.TrimSpace(os.Getenv(envEndpoint))
	cfg.Subject = os.Getenv(envSubject)
	cfg.Level = parseLevelEnv(os.Getenv(envLevel), cfg.Level, logger)
	cfg.MessageAttributes = parseBoolEnv(os.Getenv(envMessageAttributes), cfg.MessageAttributes, logger)

	return cfg
}

// applyOptions merges user-supplied options into the derived configuration.
func applyOptions(cfg *handlerConfig, o *options) {
	if o.accessKey != nil {
		cfg.AccessKey = *o.accessKey
	}
	if o.secretKey != nil {
		cfg.SecretKey = *o.secretKey
	}
	if o.topic != nil {
		cfg.Topic = *o.topic
	}
	if o.region != nil {
		cfg.Region = *o.region
	}
	if o.endpoint != nil {
		cfg.Endpoint = *o.endpoint
	}
	if o.subject != nil {
		cfg.Subject = *o.subject
	}
	if o.level != nil {
		cfg.Level = *o.level
	}
	if o.levelVar != nil {
		cfg.Level = o.levelVar.Level()
	}
	if o.recordAttrs != nil {
		cfg.MessageAttributes = *o.recordAttrs
	}
}

// parseBoolEnv interprets truthy environment variable values with validation
// diagnostics.
func parseBoolEnv(value string, current bool, logger *slog.Logger) bool {
	if strings.TrimSpace(value) == "" {
		return current
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		logDiagnostic(logger, slog.LevelWarn, "invalid boolean environment variable", slog.String("value", value), slog.Any("error", err))
		return current
	}
	return b
}

// parseLevelEnv parses a level from an environment variable, retaining the
// current level on failure.
func parseLevelEnv(value string, current slog.Level, logger *slog.Logger) slog.Level {
	if strings.TrimSpace(value) == "" {
		return current
	}
	if lv, ok := ParseLevel(value); ok {
		return lv
	}
	logDiagnostic(logger, slog.LevelWarn, "invalid log level environment variable", slog.String("value", value))
	return current
}

// logDiagnostic emits internal diagnostic messages, guarding against nil
// loggers in tests.
func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(internalContext(context.Background()), level, msg, attrs...)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

var _ slog.Handler = (*Handler)(nil)
