package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TranscribedEvent is emitted when an audio item's transcription is
// committed. The summary stage subscribes to it; nothing watches the
// database directly.
type TranscribedEvent struct {
	ItemID        uuid.UUID
	Transcription string
}

// Handler processes a single transcribed event. Returning an error leaves
// the message un-acked so the stream redelivers it; the handler itself does
// not retry.
type Handler func(ctx context.Context, event TranscribedEvent) error

// Bus is a Redis Streams event bus for pipeline events. Each published
// event lands on one stream; consumers share a consumer group, so an event
// is delivered to exactly one worker at a time and redelivered if that
// worker dies before acking.
type Bus struct {
	rdb    *redis.Client
	stream string
	group  string
	logger *zap.Logger
}

// NewBus creates a new event bus over the given Redis client
func NewBus(rdb *redis.Client, stream, group string, logger *zap.Logger) *Bus {
	return &Bus{
		rdb:    rdb,
		stream: stream,
		group:  group,
		logger: logger,
	}
}

// Publish appends a transcribed event to the stream
func (b *Bus) Publish(ctx context.Context, event TranscribedEvent) error {
	return b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"item_id":       event.ItemID.String(),
			"transcription": event.Transcription,
		},
	}).Err()
}

// Run starts workerCount consumers on the bus's consumer group and blocks
// until ctx is cancelled. Messages are acked only after the handler
// succeeds; failed messages stay pending and are re-read on restart.
func (b *Bus) Run(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 2
	}

	// Ignore BUSYGROUP: the group may already exist from a previous run.
	if err := b.rdb.XGroupCreateMkStream(ctx, b.stream, b.group, "0").Err(); err != nil && err != redis.Nil {
		if b.logger != nil {
			b.logger.Debug("consumer group create", zap.Error(err))
		}
	}

	for i := 0; i < workerCount; i++ {
		consumer := "summary-" + strconv.Itoa(i+1)
		go b.runConsumer(ctx, consumer, handler)
	}
	return nil
}

func (b *Bus) runConsumer(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: consumer,
			Streams:  []string{b.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				event, ok := decodeEvent(msg)
				if !ok {
					// Malformed message: ack so it does not loop forever.
					if b.logger != nil {
						b.logger.Warn("dropping malformed transcribed event",
							zap.String("message_id", msg.ID),
						)
					}
					b.rdb.XAck(ctx, b.stream, b.group, msg.ID)
					continue
				}

				if err := handler(ctx, event); err != nil {
					// Leave un-acked; redelivery is the stream's concern.
					if b.logger != nil {
						b.logger.Error("transcribed event handler failed",
							zap.String("message_id", msg.ID),
							zap.String("item_id", event.ItemID.String()),
							zap.Error(err),
						)
					}
					continue
				}

				b.rdb.XAck(ctx, b.stream, b.group, msg.ID)
			}
		}
	}
}

func decodeEvent(msg redis.XMessage) (TranscribedEvent, bool) {
	rawID, ok := msg.Values["item_id"].(string)
	if !ok {
		return TranscribedEvent{}, false
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return TranscribedEvent{}, false
	}

	text, _ := msg.Values["transcription"].(string)
	return TranscribedEvent{ItemID: id, Transcription: text}, true
}
