// Copyright 2025 Poiesic Systems
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

package embedding

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "embedkit"

// Metrics holds the Prometheus collectors updated by TextFunction.
type Metrics struct {
	Requests *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Retries  *prometheus.CounterVec
	Texts    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the embedding collectors and registers them with reg.
// A nil reg leaves them unregistered. Collectors already registered on reg
// are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "embedding_requests_total",
				Help:      "Total number of embedding generator calls",
			},
			[]string{"function", "status"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "embedding_errors_total",
				Help:      "Total embedding errors",
			},
			[]string{"function", "error_type"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "embedding_retries_total",
				Help:      "Total embedding retries after a failed attempt",
			},
			[]string{"function"},
		),
		Texts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "embedding_texts_total",
				Help:      "Total texts sent for embedding",
			},
			[]string{"function"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "embedding_request_duration_seconds",
				Help:      "Embedding generator call duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"function"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	m.Requests, err = register(reg, m.Requests)
	if err != nil {
		return nil, err
	}
	m.Errors, err = register(reg, m.Errors)
	if err != nil {
		return nil, err
	}
	m.Retries, err = register(reg, m.Retries)
	if err != nil {
		return nil, err
	}
	m.Texts, err = register(reg, m.Texts)
	if err != nil {
		return nil, err
	}
	m.Duration, err = register(reg, m.Duration)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(function string, texts int, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		m.Errors.WithLabelValues(function, errorType(err)).Inc()
	}
	m.Requests.WithLabelValues(function, status).Inc()
	m.Texts.WithLabelValues(function).Add(float64(texts))
	m.Duration.WithLabelValues(function).Observe(took.Seconds())
}

func (m *Metrics) retried(function string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(function).Inc()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, errRateLimitWait):
		return "rate_limit"
	default:
		return "generator_error"
	}
}
