package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is done and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	defaultRetries = 5
	defaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

type Consumer struct {
	r       *kafka.Reader
	workers int
	retries int
	backoff time.Duration
	log     *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		r:       r,
		workers: workers,
		retries: defaultRetries,
		backoff: defaultBackoff,
		log:     log.With(zap.String("topic", topic), zap.String("group", group)),
	}
}

// Start fetches until ctx is cancelled, fanning messages out to workers.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := c.handle(ctx, h, m); err != nil {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds, retrying with doubling backoff. A later
// commit on the same partition moves the group past any message that is
// still failing after the last retry, so that case is logged as an error.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	wait := c.backoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		if attempt >= c.retries {
			break
		}
		c.log.Warn("handler failed, retrying",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt+1), zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, maxBackoff)
	}
	c.log.Error("handler gave up, skipping message",
		zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
		zap.Int("attempts", c.retries+1), zap.Error(err))
	return err
}
