package bootstrap

import (
	"context"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/retry"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
)

// setupSinks connects every enabled sink. An unreachable configured store
// is a startup error.
func (a *App) setupSinks(ctx context.Context) error {
	cfg := a.Config

	if cfg.Postgres.Enabled {
		pgCfg := sink.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}
		db, err := retry.Value(ctx, a.retry, func(ctx context.Context) (*sqlx.DB, error) {
			return sink.OpenPostgres(ctx, pgCfg)
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.addCloser(db.Close)
		a.Sinks = append(a.Sinks, sink.NewPostgresSink(db, cfg.Postgres.Table, a.Logger))
		a.Logger.Info("Connected to PostgreSQL",
			logger.String("host", cfg.Postgres.Host),
			logger.String("table", cfg.Postgres.Table),
		)
	}

	if cfg.Elasticsearch.Enabled {
		esCfg := sink.ElasticsearchConfig{
			URL:      cfg.Elasticsearch.URL,
			Username: cfg.Elasticsearch.Username,
			Password: cfg.Elasticsearch.Password,
			APIKey:   cfg.Elasticsearch.APIKey,
		}
		client, err := retry.Value(ctx, a.retry, func(ctx context.Context) (*es.Client, error) {
			return sink.NewElasticsearchClient(ctx, esCfg)
		})
		if err != nil {
			return fmt.Errorf("connect elasticsearch: %w", err)
		}
		esSink, err := sink.NewElasticsearchSink(client, cfg.Elasticsearch.Index, a.Logger)
		if err != nil {
			return err
		}
		a.Sinks = append(a.Sinks, esSink)
		a.Logger.Info("Connected to Elasticsearch",
			logger.String("url", cfg.Elasticsearch.URL),
			logger.String("index", cfg.Elasticsearch.Index),
		)
	}

	return nil
}

// setupTracker connects the Redis export tracker when enabled.
func (a *App) setupTracker(ctx context.Context) error {
	cfg := a.Config.Redis
	if !cfg.Enabled {
		return nil
	}

	redisCfg := sink.RedisConfig{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	client, err := retry.Value(ctx, a.retry, func(ctx context.Context) (*redis.Client, error) {
		return sink.NewRedisClient(ctx, redisCfg)
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.addCloser(client.Close)

	a.Tracker = sink.NewExportTracker(client, cfg.TTL, a.Logger)
	a.Logger.Info("Connected to Redis", logger.String("address", cfg.Address))
	return nil
}
