// Package bus provides the Redis Streams transport: the consumer-group
// reader the ingest pipeline drains and the producer the publisher and
// the mock generator write through.
//
// Inbound alerts arrive on one stream per family; converged batches leave
// on a single outbound stream. Every entry carries its JSON payload in a
// single "data" field.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// payloadField is the stream entry field that carries the JSON document.
const payloadField = "data"

// Message is one stream entry handed to the pipeline. Data is nil when the
// entry lacks the payload field, which the pipeline records as invalid.
type Message struct {
	Stream string
	ID     string
	Data   []byte
}

// ===== CONSUMER =====

// Consumer reads inbound alert streams through a consumer group so restarts
// resume from the last acknowledged entry.
type Consumer struct {
	client  *redis.Client
	logger  *slog.Logger
	group   string
	name    string
	streams []string
}

// NewConsumer connects to Redis and verifies the connection. The consumer
// group is created lazily by EnsureGroups.
func NewConsumer(redisURL, group, name string, streams []string, logger *slog.Logger) (*Consumer, error) {
	client, err := connect(redisURL)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		client:  client,
		logger:  logger.With("component", "bus-consumer"),
		group:   group,
		name:    name,
		streams: streams,
	}, nil
}

// EnsureGroups creates the consumer group on every inbound stream, creating
// the streams themselves if they do not exist yet. A group that already
// exists is not an error.
func (c *Consumer) EnsureGroups(ctx context.Context) error {
	for _, stream := range c.streams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("creating consumer group on %s: %w", stream, err)
		}
	}
	return nil
}

// Read blocks up to block waiting for new entries across all inbound
// streams and returns them in delivery order. A nil slice with a nil error
// means the wait timed out with nothing to do.
func (c *Consumer) Read(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	args := make([]string, 0, len(c.streams)*2)
	args = append(args, c.streams...)
	for range c.streams {
		args = append(args, ">")
	}

	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  args,
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading streams: %w", err)
	}

	var msgs []Message
	for _, stream := range res {
		for _, entry := range stream.Messages {
			msgs = append(msgs, Message{
				Stream: stream.Stream,
				ID:     entry.ID,
				Data:   payloadOf(entry.Values),
			})
		}
	}
	return msgs, nil
}

// Ack marks one entry as processed. Unacknowledged entries stay in the
// group's pending list and are redelivered after a restart.
func (c *Consumer) Ack(ctx context.Context, stream, id string) error {
	if err := c.client.XAck(ctx, stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("acking %s on %s: %w", id, stream, err)
	}
	return nil
}

// Pending reports how many delivered-but-unacknowledged entries each
// inbound stream holds.
func (c *Consumer) Pending(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(c.streams))
	for _, stream := range c.streams {
		p, err := c.client.XPending(ctx, stream, c.group).Result()
		if err != nil {
			return nil, fmt.Errorf("reading pending on %s: %w", stream, err)
		}
		out[stream] = p.Count
	}
	return out, nil
}

// Close releases the Redis connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}

// ===== PRODUCER =====

// Producer appends entries to Redis streams. The publisher uses it for
// converged batches; the mock generator uses it to feed the inbound streams.
type Producer struct {
	client *redis.Client
	logger *slog.Logger
}

// NewProducer connects to Redis and verifies the connection.
func NewProducer(redisURL string, logger *slog.Logger) (*Producer, error) {
	client, err := connect(redisURL)
	if err != nil {
		return nil, err
	}

	return &Producer{
		client: client,
		logger: logger.With("component", "bus-producer"),
	}, nil
}

// Publish appends one entry with the payload under the "data" field.
// Callers bound delivery time through ctx.
func (p *Producer) Publish(ctx context.Context, stream string, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("appending to %s: %w", stream, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Producer) Close() error {
	return p.client.Close()
}

// ===== SHARED =====

func connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return client, nil
}

func payloadOf(values map[string]interface{}) []byte {
	if raw, ok := values[payloadField]; ok {
		if s, ok := raw.(string); ok {
			return []byte(s)
		}
	}
	return nil
}
