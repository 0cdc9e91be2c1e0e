package workers

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	DefaultArchiveStream = "interview:archive"
	DefaultArchiveGroup  = "archive-workers"
)

// RedisArchiveQueue publishes completed sessions for archiving. It
// satisfies interview.Archiver.
type RedisArchiveQueue struct {
	Redis  *redis.Client
	Stream string
}

func (q *RedisArchiveQueue) Enqueue(ctx context.Context, sessionID string) error {
	stream := q.Stream
	if stream == "" {
		stream = DefaultArchiveStream
	}
	return q.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"session_id":  sessionID,
			"enqueued_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

// ArchiveWorkerPool consumes the archive stream through a consumer group
// and copies each completed transcript into Postgres.
type ArchiveWorkerPool struct {
	Redis         *redis.Client
	Conversations services.ConversationService
	NumWorkers    int
	Attempts      int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string

	wg sync.WaitGroup
}

func (p *ArchiveWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Conversations == nil {
		return errors.New("ArchiveWorkerPool missing dependency: Redis/Conversations must be set")
	}
	p.defaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runConsumer(ctx, consumer)
		}()
	}
	return nil
}

// Wait blocks until every consumer has stopped. Cancel the Start context first.
func (p *ArchiveWorkerPool) Wait() { p.wg.Wait() }

func (p *ArchiveWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultArchiveStream
	}
	if p.Group == "" {
		p.Group = DefaultArchiveGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func (p *ArchiveWorkerPool) runConsumer(ctx context.Context, consumer string) {
	log := p.Logger.WithField("consumer", consumer)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warn("archive stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, log, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *ArchiveWorkerPool) handleMsg(ctx context.Context, log *logrus.Entry, msg redis.XMessage) {
	sessionID, _ := msg.Values["session_id"].(string)
	log = log.WithFields(logrus.Fields{"msg_id": msg.ID, "session_id": sessionID})
	if sessionID == "" {
		log.Warn("archive job without session_id dropped")
		return
	}

	backoff := 200 * time.Millisecond
	for attempt := 1; ; attempt++ {
		n, err := p.Conversations.ArchiveSession(ctx, sessionID)
		if err == nil {
			log.WithField("rows", n).Info("transcript archived")
			return
		}
		if !retryable(err) || attempt >= p.Attempts {
			log.WithError(err).WithField("attempt", attempt).Error("archive transcript")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func retryable(err error) bool {
	switch utils.CodeOf(err) {
	case utils.CodeInvalidArgument, utils.CodeNotFound, utils.CodeFailedPrecondition:
		return false
	}
	return true
}
