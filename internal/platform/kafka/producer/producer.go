// Package producer publishes parent notifications to Kafka with franz-go.
// Records are keyed by parent so one parent's events keep their order.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"

	"purchasegate/internal/platform/config"
)

var (
	producedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_kafka_records_total",
		Help: "Kafka records produced, labeled by topic and outcome",
	}, []string{"topic", "outcome"})
	produceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_kafka_produce_seconds",
		Help:    "Time from produce call to broker acknowledgement",
		Buckets: prometheus.ExponentialBuckets(0.002, 2, 12),
	})
)

// ErrClosed is returned by Produce after Close.
var ErrClosed = errors.New("kafka producer closed")

// Message is one record. An empty Topic goes to the configured default.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Producer struct {
	client       *kgo.Client
	defaultTopic string
	logger       *slog.Logger
	closed       atomic.Bool
}

// New builds the client. Brokers are dialed lazily; use Health to probe.
func New(cfg config.Kafka, logger *slog.Logger) (*Producer, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{client: client, defaultTopic: cfg.Topic, logger: logger}, nil
}

func clientOptions(cfg config.Kafka) ([]kgo.Opt, error) {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("purchasegate"),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	if cfg.Topic != "" {
		opts = append(opts, kgo.DefaultProduceTopic(cfg.Topic))
	}
	if cfg.Retries > 0 {
		opts = append(opts, kgo.RecordRetries(cfg.Retries))
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	switch cfg.Acks {
	case "0":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	case "1":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	case "", "all", "-1":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	default:
		return nil, fmt.Errorf("kafka acks %q: want 0, 1 or all", cfg.Acks)
	}
	return opts, nil
}

func splitBrokers(raw string) []string {
	var brokers []string
	for b := range strings.SplitSeq(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (p *Producer) record(msg *Message) *kgo.Record {
	r := &kgo.Record{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}
	if r.Topic == "" {
		r.Topic = p.defaultTopic
	}
	for k, v := range msg.Headers {
		if v != "" {
			r.Headers = append(r.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}
	return r
}

// Produce blocks until the broker acknowledged the record or ctx ends.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrClosed
	}
	rec := p.record(msg)
	start := time.Now()
	err := p.client.ProduceSync(ctx, rec).FirstErr()
	produceLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		producedRecords.WithLabelValues(rec.Topic, "error").Inc()
		return fmt.Errorf("produce to %s: %w", rec.Topic, err)
	}
	producedRecords.WithLabelValues(rec.Topic, "ok").Inc()
	return nil
}

// Close flushes what is buffered, waiting at most 30s, then closes the
// client. Safe to call more than once.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka producer closed with unflushed records", "error", err)
	}
	p.client.Close()
	return nil
}

// Health pings a broker.
func (p *Producer) Health(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.client.Ping(ctx)
}
