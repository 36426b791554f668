package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisNotificationQueue moves tasks through a Redis stream so that delivery survives a
// restart and can be spread across processes. As a TaskHandler it only publishes; Consume
// reads the stream with a consumer group and hands each task to a processor.
type RedisNotificationQueue struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
	claimInterval time.Duration
	claimMinIdle  time.Duration
	maxDeliveries int64
}

type RedisQueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	BatchSize     int64
	BlockDuration time.Duration
	// ClaimInterval is how often failed entries are looked for; ClaimMinIdle is how long an
	// entry must sit unacknowledged before it is redelivered.
	ClaimInterval time.Duration
	ClaimMinIdle  time.Duration
	// MaxDeliveries caps redelivery; entries past it are acknowledged and dropped.
	MaxDeliveries int64
}

func NewRedisNotificationQueue(client *redis.Client, cfg RedisQueueConfig) *RedisNotificationQueue {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "ipo-tracker"
	}
	if cfg.ClaimInterval == 0 {
		cfg.ClaimInterval = time.Minute
	}
	if cfg.ClaimMinIdle == 0 {
		cfg.ClaimMinIdle = time.Minute
	}
	if cfg.MaxDeliveries == 0 {
		cfg.MaxDeliveries = 5
	}
	return &RedisNotificationQueue{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		batchSize:     cfg.BatchSize,
		blockDuration: cfg.BlockDuration,
		claimInterval: cfg.ClaimInterval,
		claimMinIdle:  cfg.ClaimMinIdle,
		maxDeliveries: cfg.MaxDeliveries,
	}
}

// Handle publishes task onto the stream.
func (q *RedisNotificationQueue) Handle(ctx context.Context, task *models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal notification task: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"task": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish notification task: %w", err)
	}
	return nil
}

// Consume blocks until ctx is done, delivering stream entries through handler. Entries whose
// handler fails stay pending; every ClaimInterval those idle for ClaimMinIdle are claimed by
// this consumer and delivered again, up to MaxDeliveries times.
func (q *RedisNotificationQueue) Consume(ctx context.Context, handler TaskHandler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	logger := logrus.WithFields(logrus.Fields{
		"component": "RedisNotificationQueue",
		"stream":    q.stream,
		"group":     q.group,
		"consumer":  q.consumer,
	})
	logger.Info("Notification consumer started")

	lastClaim := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification consumer stopping")
			return ctx.Err()
		default:
		}

		if time.Since(lastClaim) >= q.claimInterval {
			lastClaim = time.Now()
			if _, err := q.reclaim(ctx, handler); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("Error reclaiming pending notification entries")
			}
		}

		if err := q.readBatch(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithError(err).Warn("Error reading notification stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (q *RedisNotificationQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (q *RedisNotificationQueue) readBatch(ctx context.Context, handler TaskHandler) error {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    q.batchSize,
		Block:    q.blockDuration,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			q.deliver(ctx, handler, message)
		}
	}
	return nil
}

// reclaim drops pending entries that have used up their deliveries, then claims the
// remaining idle ones and delivers them again. It returns how many were redelivered.
func (q *RedisNotificationQueue) reclaim(ctx context.Context, handler TaskHandler) (int, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  "-",
		End:    "+",
		Count:  q.batchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to list pending entries: %w", err)
	}
	for _, entry := range pending {
		if entry.RetryCount >= q.maxDeliveries {
			logrus.WithFields(logrus.Fields{
				"message_id": entry.ID,
				"deliveries": entry.RetryCount,
			}).Error("Dropping notification entry after repeated delivery failures")
			q.ack(ctx, entry.ID)
		}
	}

	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.claimMinIdle,
		Start:    "0-0",
		Count:    q.batchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to claim pending entries: %w", err)
	}

	for _, message := range messages {
		q.deliver(ctx, handler, message)
	}
	return len(messages), nil
}

// deliver hands one entry to handler and acknowledges it on success. Malformed entries
// are acknowledged so they leave the pending list.
func (q *RedisNotificationQueue) deliver(ctx context.Context, handler TaskHandler, message redis.XMessage) {
	task, err := decodeTask(message)
	if err != nil {
		logrus.WithField("message_id", message.ID).WithError(err).Error("Discarding malformed notification entry")
		q.ack(ctx, message.ID)
		return
	}
	if err := handler.Handle(ctx, task); err != nil {
		return
	}
	q.ack(ctx, message.ID)
}

func (q *RedisNotificationQueue) ack(ctx context.Context, id string) {
	if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		logrus.WithField("message_id", id).WithError(err).Warn("Failed to ACK notification entry")
	}
}

func decodeTask(message redis.XMessage) (*models.NotificationTask, error) {
	raw, ok := message.Values["task"].(string)
	if !ok {
		return nil, errors.New("invalid message format")
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}
