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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "slogsns"

	resultSuccess = "success"
	resultFailure = "failure"
)

// publishMetrics records publish outcomes. A nil *publishMetrics is valid
// and records nothing.
type publishMetrics struct {
	publishTotal    *prometheus.CounterVec
	publishDuration prometheus.Histogram
	constructions   prometheus.Counter
}

// newPublishMetrics registers the handler collectors with reg. Collectors
// already registered by an earlier handler are reused, so several handlers
// can share one registry.
func newPublishMetrics(reg prometheus.Registerer) (*publishMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	publishTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "publish_total",
		Help:      "Notifications handed to SNS, by result.",
	}, []string{"result"})
	publishDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "publish_duration_seconds",
		Help:      "Latency of SNS publish calls.",
		Buckets:   prometheus.DefBuckets,
	})
	constructions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "client_constructions_total",
		Help:      "SNS clients constructed.",
	})

	var err error
	m := &publishMetrics{}
	if m.publishTotal, err = registerOrReuse(reg, publishTotal); err != nil {
		return nil, err
	}
	if m.publishDuration, err = registerOrReuse(reg, publishDuration); err != nil {
		return nil, err
	}
	if m.constructions, err = registerOrReuse(reg, constructions); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, returning the existing collector when an
// identical one is already registered.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (m *publishMetrics) observePublish(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	m.publishTotal.WithLabelValues(result).Inc()
	m.publishDuration.Observe(elapsed.Seconds())
}

func (m *publishMetrics) observeFailure() {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(resultFailure).Inc()
}

func (m *publishMetrics) clientConstructed() {
	if m == nil {
		return
	}
	m.constructions.Inc()
}
