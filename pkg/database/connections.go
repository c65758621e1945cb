package database

import (
	"context"
	"database/sql"

	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/logging"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Connections holds the enabled storage backends. Disabled backends are nil.
type Connections struct {
	Postgres *sql.DB
	Redis    *redis.Client
	Neo4j    neo4j.DriverWithContext
}

// Open connects to every enabled backend and ensures the Postgres schema.
// On failure the connections opened so far are closed.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Connections, error) {
	logger = logging.OrNop(logger)
	conns := &Connections{}

	if cfg.Postgres.Enabled {
		db, err := NewPostgresDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		conns.Postgres = db
		if err := NewStore(db).EnsureSchema(ctx); err != nil {
			conns.Close(ctx)
			return nil, err
		}
		logger.Info("Connected to PostgreSQL", zap.String("host", cfg.Postgres.Host), zap.String("database", cfg.Postgres.Database))
	}

	if cfg.Redis.Enabled {
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			conns.Close(ctx)
			return nil, err
		}
		conns.Redis = client
		logger.Info("Connected to Redis", zap.String("host", cfg.Redis.Host), zap.String("stream", cfg.Redis.Stream))
	}

	if cfg.Neo4j.Enabled {
		driver, err := NewNeo4jDriver(ctx, cfg.Neo4j)
		if err != nil {
			conns.Close(ctx)
			return nil, err
		}
		conns.Neo4j = driver
		logger.Info("Connected to Neo4j", zap.String("uri", cfg.Neo4j.URI))
	}

	return conns, nil
}

// Store returns the run store, or nil when Postgres is disabled
func (c *Connections) Store() *Store {
	if c.Postgres == nil {
		return nil
	}
	return NewStore(c.Postgres)
}

// Close closes every open backend
func (c *Connections) Close(ctx context.Context) {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.Neo4j != nil {
		c.Neo4j.Close(ctx)
	}
}
