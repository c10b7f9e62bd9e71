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
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRegion is used when neither an option nor the environment names
// an AWS region.
const DefaultRegion = "us-east-1"

// SNSOption configures the client built by [NewSNSClientFactory].
type SNSOption func(*snsConfig)

type snsConfig struct {
	region      string
	endpoint    string
	httpTracing bool
	transport   http.RoundTripper
}

// WithSNSRegion selects the AWS region. Empty keeps the SDK's environment
// lookup with [DefaultRegion] as the final fallback.
func WithSNSRegion(region string) SNSOption {
	return func(cfg *snsConfig) {
		cfg.region = strings.TrimSpace(region)
	}
}

// WithSNSEndpoint overrides the service endpoint, for example to target
// LocalStack.
func WithSNSEndpoint(endpoint string) SNSOption {
	return func(cfg *snsConfig) {
		cfg.endpoint = strings.TrimSpace(endpoint)
	}
}

// WithSNSHTTPTracing wraps the client's HTTP transport with otelhttp so each
// publish call produces a client span.
func WithSNSHTTPTracing(enabled bool) SNSOption {
	return func(cfg *snsConfig) {
		cfg.httpTracing = enabled
	}
}

// WithSNSTransport replaces the base HTTP transport. When omitted the client
// owns a transport built by the SDK, honouring AWS_CA_BUNDLE and the shared
// config's ca_bundle. A supplied transport is used as is.
func WithSNSTransport(rt http.RoundTripper) SNSOption {
	return func(cfg *snsConfig) {
		cfg.transport = rt
	}
}

// NewSNSClientFactory returns a [ClientFactory] that builds an AWS SNS
// client from static credentials.
//
// Messages longer than 140 characters are truncated by SNS for SMS
// subscriptions; the handler sends the full body regardless.
func NewSNSClientFactory(opts ...SNSOption) ClientFactory {
	cfg := &snsConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return func(ctx context.Context, creds Credentials) (Publisher, error) {
		return newSNSPublisher(ctx, cfg, creds)
	}
}

type snsPublisher struct {
	client    *sns.Client
	transport http.RoundTripper
	once      sync.Once
}

// newSNSPublisher validates the credentials and assembles the SDK client.
func newSNSPublisher(ctx context.Context, cfg *snsConfig, creds Credentials) (*snsPublisher, error) {
	if strings.TrimSpace(creds.AccessKey) == "" || strings.TrimSpace(creds.SecretKey) == "" {
		return nil, &CredentialError{Err: ErrMissingCredentials}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, "")),
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient()),
		awsconfig.WithAppID(appID()),
	}
	if cfg.region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, &CredentialError{Err: fmt.Errorf("load AWS config: %w", err)}
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}

	// The buildable client carries shared-config transport settings such as
	// AWS_CA_BUNDLE. A caller-supplied transport replaces it entirely.
	base := cfg.transport
	if base == nil {
		if buildable, ok := awsCfg.HTTPClient.(*awshttp.BuildableClient); ok {
			base = buildable.GetTransport()
		} else {
			base = http.DefaultTransport.(*http.Transport).Clone()
		}
	}
	transport := base
	if cfg.httpTracing {
		transport = otelhttp.NewTransport(base)
	}

	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.HTTPClient = &http.Client{Transport: transport}
		if cfg.endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.endpoint)
		}
	})

	return &snsPublisher{client: client, transport: base}, nil
}

// Publish sends one notification.
func (p *snsPublisher) Publish(ctx context.Context, in PublishInput) (Receipt, error) {
	input := &sns.PublishInput{
		TopicArn: aws.String(in.Topic),
		Message:  aws.String(in.Message),
	}
	if in.Subject != "" {
		input.Subject = aws.String(in.Subject)
	}
	if len(in.Attributes) > 0 {
		input.MessageAttributes = make(map[string]snstypes.MessageAttributeValue, len(in.Attributes))
		for k, v := range in.Attributes {
			input.MessageAttributes[k] = snstypes.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	if in.GroupID != "" {
		input.MessageGroupId = aws.String(in.GroupID)
	}
	if in.DeduplicationID != "" {
		input.MessageDeduplicationId = aws.String(in.DeduplicationID)
	}

	out, err := p.client.Publish(ctx, input)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		MessageID:      aws.ToString(out.MessageId),
		SequenceNumber: aws.ToString(out.SequenceNumber),
	}, nil
}

// Shutdown drops pooled connections held by the client's transport. The SDK
// client itself holds no other resources.
func (p *snsPublisher) Shutdown() error {
	p.once.Do(func() {
		if ci, ok := p.transport.(interface{ CloseIdleConnections() }); ok {
			ci.CloseIdleConnections()
		}
	})
	return nil
}

// isFIFOTopic reports whether topic names a FIFO topic, which requires a
// message group and deduplication ID on every publish.
func isFIFOTopic(topic string) bool {
	return strings.HasSuffix(strings.TrimSpace(topic), ".fifo")
}

var _ Publisher = (*snsPublisher)(nil)
