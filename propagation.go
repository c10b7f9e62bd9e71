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
	"os"
	"strconv"
	"strings"
	"sync"

	gcppropagator "github.com/GoogleCloudPlatform/opentelemetry-operations-go/propagator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const envDisablePropagatorAutoSet = "SLOGSNS_DISABLE_PROPAGATOR_AUTOSET"

var installPropagatorOnce sync.Once

// EnsurePropagation installs a composite OpenTelemetry text map propagator
// made of W3C Trace Context and Baggage as the global propagator. It runs at
// most once per process and does nothing when
// SLOGSNS_DISABLE_PROPAGATOR_AUTOSET is truthy. Applications that already
// configure otel.SetTextMapPropagator should not call it.
func EnsurePropagation() {
	installPropagatorOnce.Do(func() {
		if disableAutoSet() {
			return
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})
}

// disableAutoSet reports whether SLOGSNS_DISABLE_PROPAGATOR_AUTOSET is set to
// a truthy value.
func disableAutoSet() bool {
	raw := strings.TrimSpace(os.Getenv(envDisablePropagatorAutoSet))
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return b
}

// injectTrace writes propagation fields from ctx into attrs using
// propagator, falling back to the global propagator when nil. Baggage is
// carried with or without a span. When cloudTrace is set and a valid span
// is active, the X-Cloud-Trace-Context key is written as well so
// subscribers running on Google Cloud can correlate.
func injectTrace(ctx context.Context, attrs map[string]string, propagator propagation.TextMapPropagator, cloudTrace bool) map[string]string {
	if ctx == nil {
		return attrs
	}
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	if propagator != nil {
		propagator.Inject(ctx, lazyCarrier{attrs: &attrs})
	}
	if cloudTrace && trace.SpanContextFromContext(ctx).IsValid() {
		gcppropagator.CloudTraceFormatPropagator{}.Inject(ctx, lazyCarrier{attrs: &attrs})
	}
	return attrs
}

// lazyCarrier adapts a message attribute map to propagation.TextMapCarrier,
// allocating the map on first Set. Keys are lowercased so subscribers can
// look them up without guessing the propagator's casing.
type lazyCarrier struct {
	attrs *map[string]string
}

func (c lazyCarrier) Get(key string) string {
	if c.attrs == nil || *c.attrs == nil {
		return ""
	}
	return (*c.attrs)[strings.ToLower(key)]
}

func (c lazyCarrier) Set(key, value string) {
	if c.attrs == nil || value == "" {
		return
	}
	if *c.attrs == nil {
		*c.attrs = make(map[string]string)
	}
	(*c.attrs)[strings.ToLower(key)] = value
}

func (c lazyCarrier) Keys() []string {
	if c.attrs == nil || len(*c.attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(*c.attrs))
	for k := range *c.attrs {
		keys = append(keys, k)
	}
	return keys
}
