package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers    []string
	SyncTopic  string
	ErrorTopic string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, syncTopic string, errorTopic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	return Config{
		Brokers:    brokerList,
		SyncTopic:  syncTopic,
		ErrorTopic: errorTopic,
	}
}

// Producer publishes order sync lifecycle events to Kafka
type Producer struct {
	writer      *kafka.Writer
	errorWriter *kafka.Writer
	logger      ectologger.Logger
	topic       string
	errorTopic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.SyncTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		// Without this, a first publish may fail with "Unknown Topic Or Partition".
		AllowAutoTopicCreation: true,
	}

	errorWriter := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.ErrorTopic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer:      writer,
		errorWriter: errorWriter,
		logger:      logger,
		topic:       cfg.SyncTopic,
		errorTopic:  cfg.ErrorTopic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	var firstErr error
	if err := p.writer.Close(); err != nil {
		firstErr = err
	}
	if p.errorWriter != nil {
		if err := p.errorWriter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OrderSyncedMessage is a lifecycle event for one order reconciliation.
// Downstream consumers use these to react to orders landing in the CRM.
type OrderSyncedMessage struct {
	Type       string    `json:"type"` // "order.synced" | "order.failed"
	Source     string    `json:"source"`
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	// Tracing
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// PublishOrderSynced publishes an order.synced event
func (p *Producer) PublishOrderSynced(ctx context.Context, msg *OrderSyncedMessage) error {
	if msg.Type == "" {
		msg.Type = "order.synced"
	}
	return p.publish(ctx, p.writer, p.topic, msg)
}

// PublishOrderFailed publishes an order.failed event to the error topic
func (p *Producer) PublishOrderFailed(ctx context.Context, msg *OrderSyncedMessage) error {
	if p.errorWriter == nil {
		return fmt.Errorf("errorWriter is nil (error topic not configured)")
	}
	msg.Type = "order.failed"
	return p.publish(ctx, p.errorWriter, p.errorTopic, msg)
}

func (p *Producer) publish(ctx context.Context, writer *kafka.Writer, topic string, msg *OrderSyncedMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("order_id", msg.OrderID),
		attribute.String("type", msg.Type),
	)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.TraceID = tracing.GetTraceID(ctx)
	msg.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Partition by source + order id so retries of the same order stay ordered
	key := fmt.Sprintf("%s:%s", msg.Source, msg.OrderID)

	headers := []kafka.Header{
		{Key: "source", Value: []byte(msg.Source)},
		{Key: "order_id", Value: []byte(msg.OrderID)},
		{Key: "type", Value: []byte(msg.Type)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		metrics.RecordKafkaPublish(topic, "error")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", topic)
		return err
	}

	span.SetStatus(codes.Ok, "message published")
	metrics.RecordKafkaPublish(topic, "success")
	p.logger.WithContext(ctx).Debugf("Published %s event for order %s trace=%s", msg.Type, msg.OrderID, msg.TraceID)

	return nil
}

// Stats returns producer statistics
func (p *Producer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}
