package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries bounds handler attempts per message. After that the
// message is committed and skipped so one bad event cannot stall a partition.
const maxHandlerRetries = 3

const (
	// maxFetchBackoff caps the wait between failed fetches.
	maxFetchBackoff = 30 * time.Second
	// fetchWarnEvery is how many consecutive fetch failures pass between
	// warnings once the first one has been logged.
	fetchWarnEvery = 10
)

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	// StartOffset applies when the group has no committed offset yet.
	// Defaults to kafka.FirstOffset.
	StartOffset int64
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer wraps the kafka-go reader for consuming events.
type Consumer struct {
	reader    messageReader
	topic     string
	group     string
	logger    *slog.Logger
	handler    Handler
	backoff    time.Duration
	maxBackoff time.Duration
	closeOnce  sync.Once
}

// NewConsumer creates a new Kafka consumer for a specific topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: startOffset,
	})

	return newConsumer(r, cfg.Topic, cfg.GroupID, handler, logger)
}

func newConsumer(r messageReader, topic, group string, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		group:   group,
		logger:  logger,
		handler:    handler,
		backoff:    100 * time.Millisecond,
		maxBackoff: maxFetchBackoff,
	}
}

// Start fetches, handles and commits messages until ctx is canceled, then
// closes the reader. A message is committed once handled or given up on.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)

	failures := 0
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			wait := c.fetchBackoff(failures)
			level := slog.LevelDebug
			if failures == 1 || failures%fetchWarnEvery == 0 {
				level = slog.LevelWarn
			}
			c.logger.Log(ctx, level, "failed to fetch message",
				slog.String("topic", c.topic),
				slog.Int("failures", failures),
				slog.Duration("retry_in", wait),
				slog.String("error", err.Error()),
			)
			if !sleepCtx(ctx, wait) {
				break
			}
			continue
		}
		if failures > 0 {
			c.logger.Info("fetch recovered",
				slog.String("topic", c.topic),
				slog.Int("failures", failures),
			)
			failures = 0
		}
		ConsumerMessagesReceived.WithLabelValues(c.topic, c.group).Inc()

		if !c.process(ctx, msg) {
			break
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.String("topic", c.topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.Info("consumer stopping", slog.String("topic", c.topic))
	return c.Close()
}

// process handles one message. It returns false only when ctx was canceled
// mid-retry, in which case the message must not be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	start := time.Now()
	defer func() {
		ConsumerProcessingDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())
	}()

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		ConsumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()
		return true
	}

	err = c.handleWithRetry(ExtractTraceContext(ctx, msg.Headers), event, msg)
	switch {
	case err == nil:
		ConsumerMessagesProcessed.WithLabelValues(c.topic, c.group).Inc()
	case ctx.Err() != nil:
		return false
	default:
		c.logger.Error("handler failed after all retries, skipping message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		ConsumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()
	}
	return true
}

// handleWithRetry calls the handler up to maxHandlerRetries times, waiting
// attempt*backoff between tries.
func (c *Consumer) handleWithRetry(ctx context.Context, event *Event, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		if err = c.handler(ctx, event); err == nil {
			return nil
		}
		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < maxHandlerRetries && !sleepCtx(ctx, time.Duration(attempt)*c.backoff) {
			return ctx.Err()
		}
	}
	return err
}

// fetchBackoff doubles the base backoff per consecutive failure, up to
// maxBackoff.
func (c *Consumer) fetchBackoff(failures int) time.Duration {
	wait := c.backoff
	for i := 1; i < failures; i++ {
		wait *= 2
		if wait >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	return min(wait, c.maxBackoff)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}

// TopicPrefix namespaces every storefront topic.
const TopicPrefix = "storefront"

// Topic returns "storefront.<domain>.<action>".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
