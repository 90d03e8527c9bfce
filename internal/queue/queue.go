package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// MeetingSummaries carries ended meetings to the summary workers.
const MeetingSummaries = "meeting-summaries"

// Stream is the Redis stream key behind a named queue.
func Stream(name string) string { return "queue:" + name }

// StreamClient is the slice of go-redis the queue uses.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (id string, err error)
}

// RedisQueue appends JSON payloads to a capped stream per queue name.
type RedisQueue struct {
	rdb    StreamClient
	maxLen int64
}

func NewRedisQueue(rdb StreamClient) *RedisQueue {
	return &RedisQueue{rdb: rdb, maxLen: 10000}
}

func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	if name == "" {
		return "", errors.New("queue: name is required")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream(name),
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"payload":     string(b),
			"enqueued_at": strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Result()
}

type Message struct {
	ID      string
	Payload []byte
}

// Handler processes one message. The message is acked whatever it returns; a failed
// task is reported by the handler, not redelivered.
type Handler func(ctx context.Context, msg Message) error

// ConsumerGroup runs Workers consumers of one queue.
type ConsumerGroup struct {
	Redis          StreamClient
	Queue          string
	Group          string
	ConsumerPrefix string
	Workers        int
	Block          time.Duration
	Logger         logrus.FieldLogger
}

// Run starts the consumers and blocks until ctx ends and they have all returned.
func (g *ConsumerGroup) Run(ctx context.Context, h Handler) error {
	if g.Redis == nil || g.Queue == "" || h == nil {
		return errors.New("queue: consumer group needs Redis, Queue and a handler")
	}
	if g.Group == "" {
		g.Group = g.Queue + "-workers"
	}
	if g.ConsumerPrefix == "" {
		g.ConsumerPrefix = "c"
	}
	if g.Workers <= 0 {
		g.Workers = 1
	}
	if g.Block <= 0 {
		g.Block = 5 * time.Second
	}
	if g.Logger == nil {
		g.Logger = logrus.StandardLogger()
	}

	// BUSYGROUP means it exists already.
	_ = g.Redis.XGroupCreateMkStream(ctx, Stream(g.Queue), g.Group, "0").Err()

	var wg sync.WaitGroup
	for i := 0; i < g.Workers; i++ {
		wg.Add(1)
		consumer := g.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go func() {
			defer wg.Done()
			g.consume(ctx, consumer, h)
		}()
	}
	wg.Wait()
	return nil
}

func (g *ConsumerGroup) consume(ctx context.Context, consumer string, h Handler) {
	stream := Stream(g.Queue)
	log := g.Logger.WithFields(logrus.Fields{"queue": g.Queue, "consumer": consumer})

	for ctx.Err() == nil {
		res, err := g.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    g.Group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    g.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warn("xreadgroup failed")
			select {
			case <-ctx.Done():
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		for _, s := range res {
			for _, m := range s.Messages {
				raw, _ := m.Values["payload"].(string)
				if err := h(ctx, Message{ID: m.ID, Payload: []byte(raw)}); err != nil {
					log.WithError(err).WithField("redis_id", m.ID).Error("task failed")
				}
				if err := g.Redis.XAck(ctx, stream, g.Group, m.ID).Err(); err != nil {
					log.WithError(err).WithField("redis_id", m.ID).Warn("xack failed")
				}
			}
		}
	}
}
