package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// ExportTracker remembers which question ids earlier runs exported.
type ExportTracker struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

// NewExportTracker keeps marks for ttl.
func NewExportTracker(client *redis.Client, ttl time.Duration, log logger.Logger) *ExportTracker {
	if log == nil {
		log = logger.NewNop()
	}
	return &ExportTracker{
		client: client,
		ttl:    ttl,
		log:    log.With(logger.Component("export_tracker")),
	}
}

func (t *ExportTracker) key(questionID string) string {
	return fmt.Sprintf("exported:question:%s", questionID)
}

// FilterNew returns the ids not exported before, in input order. On Redis
// errors every id counts as new.
func (t *ExportTracker) FilterNew(ctx context.Context, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}

	pipe := t.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, t.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.log.Error("Redis error checking exported questions",
			logger.Int("count", len(ids)),
			logger.Error(err),
		)
		return append([]string(nil), ids...)
	}

	fresh := make([]string, 0, len(ids))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			fresh = append(fresh, ids[i])
		}
	}

	t.log.Debug("Checked exported questions",
		logger.Int("count", len(ids)),
		logger.Int("new", len(fresh)),
	)
	return fresh
}

// MarkExported records ids with the tracker TTL.
func (t *ExportTracker) MarkExported(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := t.client.Pipeline()
	for _, id := range ids {
		pipe.Set(ctx, t.key(id), "1", t.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.log.Error("Redis error marking exported questions",
			logger.Int("count", len(ids)),
			logger.Duration("ttl", t.ttl),
			logger.Error(err),
		)
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}
