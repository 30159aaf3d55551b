package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	docpipe = "docpipe"

	// Consumer metrics
	messagesConsumedTotal  = "messages_consumed_total"
	entitiesExtractedTotal = "entities_extracted_total"

	// Queue filter metrics
	queueReductionTotal = "queue_reduction_total"

	// Batch search metrics
	batchTransitionsTotal = "batch_search_transitions_total"

	// Labels
	messageTypeLabel = "type"
	filterStageLabel = "stage"
	batchStateLabel  = "state"
)

/**
* Metrics definition
**/
var messagesConsumedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: docpipe,
		Name:      messagesConsumedTotal,
		Help:      "number of bus messages consumed by the extraction worker",
	},
	[]string{messageTypeLabel},
)

var entitiesExtractedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: docpipe,
		Name:      entitiesExtractedTotal,
		Help:      "number of named entities written to the index",
	},
)

var queueReductionTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: docpipe,
		Name:      queueReductionTotal,
		Help:      "number of queue entries removed by the pre-flight filter",
	},
	[]string{filterStageLabel},
)

var batchTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: docpipe,
		Name:      batchTransitionsTotal,
		Help:      "number of batch search state transitions",
	},
	[]string{batchStateLabel},
)

func IncreaseMessagesConsumedMetric(messageType string) {
	messagesConsumedTotalMetric.With(prometheus.Labels{messageTypeLabel: messageType}).Inc()
}

func AddEntitiesExtractedMetric(count int) {
	entitiesExtractedTotalMetric.Add(float64(count))
}

func AddQueueReductionMetric(stage string, count int) {
	queueReductionTotalMetric.With(prometheus.Labels{filterStageLabel: stage}).Add(float64(count))
}

func IncreaseBatchTransitionMetric(state string) {
	batchTransitionsTotalMetric.With(prometheus.Labels{batchStateLabel: state}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(messagesConsumedTotalMetric)
	prometheus.MustRegister(entitiesExtractedTotalMetric)
	prometheus.MustRegister(queueReductionTotalMetric)
	prometheus.MustRegister(batchTransitionsTotalMetric)
}
