package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"
	"unsafe"

	"risk-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: a busy session produces a few updates per second;
	// this keeps roughly a full trading day.
	riskStreamMaxLen     = 100000
	positionStreamMaxLen = 20000
	defaultLatestTTL     = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes risk and position updates to Redis and stores monitor
// checkpoints. Satisfies model.CheckpointStore; the monitor consumes it
// through BufferedWriter, which adds circuit breaking and replay.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
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

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// WriteRiskUpdate performs pipelined writes for one risk result:
// SET latest + XADD to the instrument stream + PUBLISH for live subscribers.
// The pipeline error is returned so callers can buffer and replay.
func (w *Writer) WriteRiskUpdate(ctx context.Context, u model.RiskUpdate) error {
	jsonBytes := u.JSON()
	// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
	jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

	pipe := w.client.Pipeline()

	// SET latest risk snapshot with TTL
	pipe.Set(ctx, u.LatestKey(), jsonData, defaultLatestTTL)

	// XADD to stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: u.StreamKey(),
		MaxLen: riskStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	// PUBLISH to pubsub channel
	pipe.Publish(ctx, u.PubSubChannel(), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] risk pipeline error for %s: %v", u.Key(), err)
		return err
	}
	return nil
}

// WritePositionUpdate performs pipelined writes for one position change.
func (w *Writer) WritePositionUpdate(ctx context.Context, u model.PositionUpdate) error {
	jsonBytes := u.JSON()
	jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

	pipe := w.client.Pipeline()

	pipe.Set(ctx, "positions:latest:"+u.Exchange+":"+u.Contract, jsonData, defaultLatestTTL)

	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: u.StreamKey(),
		MaxLen: positionStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	pipe.Publish(ctx, u.PubSubChannel(), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] position pipeline error for %s: %v", u.Key(), err)
		return err
	}
	return nil
}

// RunRiskUpdates drains a channel of risk updates into Redis.
// Blocks until ctx is cancelled or the channel is closed.
func (w *Writer) RunRiskUpdates(ctx context.Context, ch <-chan model.RiskUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			w.WriteRiskUpdate(ctx, u)
		}
	}
}

// SaveCheckpoint persists the monitor's progress cursor for an account.
// The checkpoint is advisory: recovery validates it by full replay.
func (w *Writer) SaveCheckpoint(ctx context.Context, account string, cursor int64) error {
	key := "monitor:checkpoint:" + account
	if err := w.client.Set(ctx, key, cursor, 0).Err(); err != nil {
		return fmt.Errorf("redis save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the saved cursor for an account, or 0 when no
// checkpoint exists.
func (w *Writer) LoadCheckpoint(ctx context.Context, account string) (int64, error) {
	key := "monitor:checkpoint:" + account
	val, err := w.client.Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("redis load checkpoint: %w", err)
	}
	cursor, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis checkpoint parse %q: %w", val, err)
	}
	return cursor, nil
}

// LatestRiskJSON returns the latest risk snapshot for one instrument as raw
// JSON, or nil when none exists. Used by the gateway's snapshot endpoint.
func (w *Writer) LatestRiskJSON(ctx context.Context, exchange, contract string) ([]byte, error) {
	key := "risk:latest:" + exchange + ":" + contract
	val, err := w.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
