package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/types"
	"github.com/carefully-app/carefully-backend/internal/utils"
)

// CatalogCache is a read-through cache for the scenario catalog. The catalog
// is immutable while the server runs, so a short TTL is only there to pick up
// reseeded rows after a deploy. All methods are safe to skip: a cache miss or
// a redis error just falls back to the database.
type CatalogCache interface {
	GetAll(ctx context.Context) ([]*types.Scenario, bool)
	SetAll(ctx context.Context, scenarios []*types.Scenario)
	Close() error
}

type catalogCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
	key string
}

// NewCatalogCache returns an error when REDIS_ADDR is unset or unreachable;
// the caller treats that as "run without the cache".
func NewCatalogCache(log *logger.Logger) (CatalogCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	ttlSeconds := utils.GetEnvAsInt("SCENARIO_CACHE_TTL_SECONDS", 300, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &catalogCache{
		log: log.With("service", "RedisCatalogCache"),
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
		key: "carefully:scenario_catalog",
	}, nil
}

func (c *catalogCache) GetAll(ctx context.Context) ([]*types.Scenario, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Catalog cache read failed", "error", err)
		}
		return nil, false
	}
	var scenarios []*types.Scenario
	if err := json.Unmarshal(raw, &scenarios); err != nil {
		c.log.Warn("Catalog cache entry corrupt, ignoring", "error", err)
		return nil, false
	}
	return scenarios, true
}

func (c *catalogCache) SetAll(ctx context.Context, scenarios []*types.Scenario) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(scenarios)
	if err != nil {
		c.log.Warn("Catalog cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Catalog cache write failed", "error", err)
	}
}

func (c *catalogCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
