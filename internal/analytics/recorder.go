package analytics

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/dispatch"
	"github.com/replenmobile/ordersend/internal/order"
)

// Publisher captures the subset of producer behaviour required by the
// recorder.
type Publisher interface {
	Publish(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// Record is the delivery report written to the analytics topic, one per
// dispatch attempt.
type Record struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Channel     string    `json:"channel"`
	Supplier    string    `json:"supplier"`
	ItemCount   int       `json:"item_count"`
	Total       string    `json:"total"`
	Success     bool      `json:"success"`
	Simulated   bool      `json:"simulated,omitempty"`
	Code        string    `json:"code,omitempty"`
	Message     string    `json:"message,omitempty"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// KafkaRecorder publishes delivery records to a Kafka topic using the shared
// producer. It satisfies the dispatcher's Recorder contract: publish failures
// are logged and never surfaced to the dispatch path.
type KafkaRecorder struct {
	producer Publisher
	topic    string
	logger   zerolog.Logger
}

// NewKafkaRecorder constructs a KafkaRecorder instance.
func NewKafkaRecorder(prod Publisher, topic string, logger zerolog.Logger) *KafkaRecorder {
	if prod == nil || topic == "" {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &KafkaRecorder{
		producer: prod,
		topic:    topic,
		logger:   logger,
	}
}

// RecordDelivery writes one delivery record for the supplied result. A nil
// recorder is a no-op so callers may wire it unconditionally.
func (r *KafkaRecorder) RecordDelivery(ctx context.Context, o *order.Order, result *dispatch.Result) {
	if r == nil || r.producer == nil || o == nil || result == nil {
		return
	}

	record := Record{
		ID:          uuid.NewString(),
		Reference:   result.Reference,
		Channel:     string(result.Channel),
		Supplier:    o.SupplierName,
		ItemCount:   len(o.Items),
		Total:       o.GrandTotal().String(),
		Success:     result.Success,
		Simulated:   result.Simulated,
		Code:        string(result.Code),
		Message:     result.Message,
		ProviderRef: result.ProviderRef,
		CompletedAt: result.CompletedAt,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		r.logger.Error().Err(err).Str("reference", record.Reference).Msg("delivery record marshal failed")
		return
	}

	key := []byte(record.Reference)
	headers := map[string][]byte{
		"content-type": []byte("application/json"),
	}

	if err := r.producer.Publish(r.topic, key, headers, payload); err != nil {
		r.logger.Warn().
			Err(err).
			Str("reference", record.Reference).
			Str("topic", r.topic).
			Msg("delivery record not published")
	}
}
