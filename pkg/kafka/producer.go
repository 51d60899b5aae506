package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/pollen/pkg/metrics"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

const EventChannelEnabled = "channel.enabled"

// Config holds Kafka configuration
type Config struct {
	Brokers      []string
	ChannelTopic string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, channelTopic string) Config {
	var brokerList []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	return Config{
		Brokers:      brokerList,
		ChannelTopic: channelTopic,
	}
}

func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes channel lifecycle events
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.ChannelTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, cfg.ChannelTopic, logger)
}

func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// ChannelEventMessage is emitted when a synchronized channel changes state.
type ChannelEventMessage struct {
	Type      string    `json:"type"` // "channel.enabled"
	ChannelID string    `json:"channel_id"`
	Source    string    `json:"source"`
	PageID    string    `json:"page_id"`
	PageName  string    `json:"page_name"`
	Timestamp time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ChannelEnabled publishes a channel.enabled event keyed by page so events for one page
// stay ordered.
func (p *Producer) ChannelEnabled(ctx context.Context, channel models.Channel) error {
	return p.Publish(ctx, &ChannelEventMessage{
		Type:      EventChannelEnabled,
		ChannelID: channel.ID.String(),
		Source:    string(channel.Source),
		PageID:    channel.PageID,
		PageName:  channel.PageName,
	})
}

func (p *Producer) Publish(ctx context.Context, msg *ChannelEventMessage) error {
	ctx, span := tracing.StartSpan(ctx, "Kafka.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", msg.Type),
		attribute.String("channel.page_id", msg.PageID),
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
		return errors.Wrap(err, "failed to marshal channel event")
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(msg.Type)},
		{Key: "source", Value: []byte(msg.Source)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.Source + ":" + msg.PageID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		metrics.RecordKafkaPublish(p.topic, "error", time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.topic)
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published %s for page %s to Kafka", msg.Type, msg.PageID)
	return nil
}

// Ping dials each broker once; used by startup and health checks.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return errors.Wrapf(lastErr, "none of %d kafka brokers reachable", len(brokers))
}
