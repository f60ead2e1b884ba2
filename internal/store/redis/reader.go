package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader consumes published risk and position updates for the gateway:
// live messages via PubSub, missed messages via stream replay.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis-reader] connected to %s", cfg.Addr)
	return &Reader{client: client}, nil
}

// Message is one published update with its source channel.
type Message struct {
	Channel string
	Data    []byte
}

// Subscribe listens on the given PubSub channels and forwards payloads to
// out. Blocks until ctx is cancelled; out is not closed.
func (r *Reader) Subscribe(ctx context.Context, channels []string, out chan<- Message) error {
	sub := r.client.Subscribe(ctx, channels...)
	defer sub.Close()

	// Fail fast when the subscription itself is broken.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %v: %w", channels, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			select {
			case out <- Message{Channel: msg.Channel, Data: []byte(msg.Payload)}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// StreamEntry is one replayed stream record.
type StreamEntry struct {
	ID   string
	Data []byte
}

// ReplayStream returns entries with ID strictly greater than afterID,
// oldest first. Pass "0" to replay the whole retained stream window.
func (r *Reader) ReplayStream(ctx context.Context, stream, afterID string) ([]StreamEntry, error) {
	if afterID == "" {
		afterID = "0"
	}
	msgs, err := r.client.XRange(ctx, stream, "("+afterID, "+").Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis xrange %s: %w", stream, err)
	}

	entries := make([]StreamEntry, 0, len(msgs))
	for _, m := range msgs {
		data, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		entries = append(entries, StreamEntry{ID: m.ID, Data: []byte(data)})
	}
	return entries, nil
}

// RecentStream returns the newest limit entries of a stream with ID at or
// below beforeID ("+" for no bound), oldest first.
func (r *Reader) RecentStream(ctx context.Context, stream, beforeID string, limit int64) ([]StreamEntry, error) {
	if beforeID == "" {
		beforeID = "+"
	}
	msgs, err := r.client.XRevRangeN(ctx, stream, beforeID, "-", limit).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis xrevrange %s: %w", stream, err)
	}

	entries := make([]StreamEntry, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		data, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		entries = append(entries, StreamEntry{ID: msgs[i].ID, Data: []byte(data)})
	}
	return entries, nil
}

// Ping checks connectivity.
func (r *Reader) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// LatestJSON returns the value of a latest-snapshot key, or nil when the key
// does not exist.
func (r *Reader) LatestJSON(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
