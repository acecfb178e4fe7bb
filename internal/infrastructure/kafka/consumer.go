package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const maxApplyAttempts = 3

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// IndexApplier подменяет индекс опубликованной сборкой.
type IndexApplier interface {
	ApplyPublished(ctx context.Context, event *usecase.IndexPublishedEvent) error
}

// Consumer читает события о новых сборках индекса.
// У каждой реплики своя consumer group, поэтому событие получают все реплики.
type Consumer struct {
	reader  messageReader
	applier IndexApplier
	logger  logger.Logger
}

func NewConsumer(cfg *cfg.KafkaCfg, applier IndexApplier, logger logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})

	return newConsumer(reader, applier, logger)
}

func newConsumer(reader messageReader, applier IndexApplier, logger logger.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		applier: applier,
		logger:  logger,
	}
}

// Run блокируется до отмены контекста.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return e.Wrap("fetch index event", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warnf("commit offset %d failed: %v", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	event, err := DecodeIndexPublished(msg.Value)
	if err != nil {
		c.logger.Warnf("skip message at offset %d: %v", msg.Offset, err)
		return
	}

	log := c.logger.With("build_id", event.BuildID)
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		err = c.applier.ApplyPublished(ctx, event)
		if err == nil {
			log.Infof("index build applied")
			return
		}
		if errors.Is(err, e.ErrModelVersionMismatch) || ctx.Err() != nil {
			break
		}
		if sleepErr := jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 10*time.Second, attempt, jitter.DefaultJitter)); sleepErr != nil {
			break
		}
	}

	log.Errorf(err, "failed to apply index build")
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
