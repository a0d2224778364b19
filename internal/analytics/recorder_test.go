package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	common "github.com/replenmobile/ordersend/internal/adapters/common"
	"github.com/replenmobile/ordersend/internal/dispatch"
	"github.com/replenmobile/ordersend/internal/order"
)

type capturePublisher struct {
	topic   string
	key     []byte
	headers map[string][]byte
	payload []byte
	calls   int
	err     error
}

func (p *capturePublisher) Publish(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	p.calls++
	p.topic = topic
	p.key = key
	p.headers = headers
	p.payload = payload
	return p.err
}

func recordedOrder() *order.Order {
	return &order.Order{
		Reference:    "ORD-20250825-AAAA0001",
		SupplierName: "やまや商店",
		Method:       order.MethodFax,
		FaxNumber:    "+81312345678",
		Items: []order.LineItem{
			{Name: "ペン", UnitPrice: decimal.NewFromInt(100), Quantity: 3},
			{Name: "ノート", UnitPrice: decimal.NewFromInt(150), Quantity: 2},
		},
	}
}

func TestRecordDeliveryPublishesRecord(t *testing.T) {
	pub := &capturePublisher{}
	recorder := NewKafkaRecorder(pub, "order-delivery-reports", zerolog.Nop())
	if recorder == nil {
		t.Fatal("recorder not constructed")
	}

	completed := time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	result := &dispatch.Result{
		Reference:   "ORD-20250825-AAAA0001",
		Channel:     order.MethodFax,
		Success:     true,
		ProviderRef: "FAX-42",
		Message:     "fax queued",
		CompletedAt: completed,
	}

	recorder.RecordDelivery(context.Background(), recordedOrder(), result)

	if pub.calls != 1 {
		t.Fatalf("publish calls = %d, want 1", pub.calls)
	}
	if pub.topic != "order-delivery-reports" {
		t.Errorf("topic = %q", pub.topic)
	}
	if string(pub.key) != "ORD-20250825-AAAA0001" {
		t.Errorf("key = %q, want the order reference", pub.key)
	}
	if string(pub.headers["content-type"]) != "application/json" {
		t.Errorf("content-type header = %q", pub.headers["content-type"])
	}

	var record Record
	if err := json.Unmarshal(pub.payload, &record); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if record.ID == "" {
		t.Error("record id is empty")
	}
	if record.Supplier != "やまや商店" {
		t.Errorf("supplier = %q", record.Supplier)
	}
	if record.ItemCount != 2 {
		t.Errorf("item count = %d, want 2", record.ItemCount)
	}
	if record.Total != "600" {
		t.Errorf("total = %q, want 600", record.Total)
	}
	if !record.Success || record.Code != "" {
		t.Errorf("success = %v code = %q", record.Success, record.Code)
	}
	if record.ProviderRef != "FAX-42" {
		t.Errorf("provider ref = %q", record.ProviderRef)
	}
	if !record.CompletedAt.Equal(completed) {
		t.Errorf("completed at = %v", record.CompletedAt)
	}
}

func TestRecordDeliveryCarriesFailureCode(t *testing.T) {
	pub := &capturePublisher{}
	recorder := NewKafkaRecorder(pub, "order-delivery-reports", zerolog.Nop())

	result := &dispatch.Result{
		Reference: "ORD-20250825-AAAA0002",
		Channel:   order.MethodLine,
		Success:   false,
		Code:      common.CodeTransportRejected,
		Message:   "line provider: invalid recipient",
	}

	recorder.RecordDelivery(context.Background(), recordedOrder(), result)

	var record Record
	if err := json.Unmarshal(pub.payload, &record); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if record.Code != "TransportRejected" {
		t.Errorf("code = %q, want TransportRejected", record.Code)
	}
	if record.Message == "" {
		t.Error("failure message is empty")
	}
}

func TestRecordDeliverySwallowsPublishErrors(t *testing.T) {
	pub := &capturePublisher{err: errors.New("input buffer full")}
	recorder := NewKafkaRecorder(pub, "order-delivery-reports", zerolog.Nop())

	recorder.RecordDelivery(context.Background(), recordedOrder(), &dispatch.Result{Success: true})

	if pub.calls != 1 {
		t.Fatalf("publish calls = %d, want 1", pub.calls)
	}
}

func TestRecordDeliveryOnNilRecorder(t *testing.T) {
	var recorder *KafkaRecorder

	// Must not panic.
	recorder.RecordDelivery(context.Background(), recordedOrder(), &dispatch.Result{})
}

func TestNewKafkaRecorderGuards(t *testing.T) {
	if NewKafkaRecorder(nil, "topic", zerolog.Nop()) != nil {
		t.Error("expected nil recorder for a nil producer")
	}
	if NewKafkaRecorder(&capturePublisher{}, "", zerolog.Nop()) != nil {
		t.Error("expected nil recorder for an empty topic")
	}
}
