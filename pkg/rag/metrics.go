// Copyright 2025 Medvoice AI
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

package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medvoice",
		Name:      "requests_total",
		Help:      "Pipeline requests by terminal state.",
	}, []string{"state"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medvoice",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	retrievedChunks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "medvoice",
		Name:      "retrieved_chunks",
		Help:      "Chunks surviving the similarity threshold per request.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	noContextTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medvoice",
		Name:      "no_context_total",
		Help:      "Requests answered without any retrieved context.",
	})

	ingestedDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medvoice",
		Name:      "ingested_documents_total",
		Help:      "Documents processed during ingestion.",
	})

	ingestedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medvoice",
		Name:      "ingested_chunks_total",
		Help:      "Chunks embedded and indexed during ingestion.",
	})

	indexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "medvoice",
		Name:      "index_entries",
		Help:      "Entries currently stored in the vector index.",
	})
)
