package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/storage/cache/rediscache"
	"github.com/trezcool/tutorcenter/storage/database"
	"github.com/trezcool/tutorcenter/storage/database/inmem"
	"github.com/trezcool/tutorcenter/storage/database/sqlx"
	"github.com/trezcool/tutorcenter/storage/mongodb"
)

// Repository is what every storage driver serves.
type Repository interface {
	attendance.Store
	attendance.EntityDirectory
	attendance.CenterDirectory
	attendance.Registry
}

var (
	_ Repository = (*inmemdb.Repository)(nil) // interface compliance check
	_ Repository = (*sqlxrepos.Repository)(nil)
	_ Repository = (*mongodb.Repository)(nil)
)

// Backend is the storage selected by core.Config.Storage.
type Backend struct {
	Repo Repository
	// Centers is Repo, behind the redis cache when one is configured.
	Centers attendance.CenterDirectory
	// SQL is only set for the postgres driver.
	SQL *sql.DB

	cache   *rediscache.CenterCache
	closers []func() error
}

// Open sets up the configured storage driver: postgres databases are created and migrated,
// mongo indexes are ensured.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Backend, error) {
	b := new(Backend)

	switch conf.Storage {
	case core.StoragePostgres, "":
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		b.closers = append(b.closers, db.Close)
		if err = database.Migrate(db); err != nil {
			_ = b.Close()
			return nil, errors.Wrap(err, "migrating database")
		}
		b.SQL = db
		b.Repo = sqlxrepos.NewRepository(db)

	case core.StorageMongo:
		client, err := mongodb.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { return client.Disconnect(context.Background()) })
		db := client.Database(conf.Mongo.Database)
		if err = mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Repo = mongodb.NewRepository(db)

	case core.StorageMemory:
		db := inmemdb.Open()
		b.closers = append(b.closers, db.Close)
		b.Repo = inmemdb.NewRepository(db)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", conf.Storage)
	}

	b.Centers = b.Repo
	if conf.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Address,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		// an unreachable redis only costs cache misses
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn(fmt.Sprintf("redis at %s is not answering: %v", conf.Redis.Address, err))
		}
		b.closers = append(b.closers, client.Close)
		b.cache = rediscache.NewCenterCache(client, b.Repo, conf.Redis.CenterCacheTTL, logger)
		b.Centers = b.cache
	}
	return b, nil
}

// CreateCenter creates or updates a center, dropping any cached copy of it.
func (b *Backend) CreateCenter(ctx context.Context, ctr attendance.Center) (attendance.Center, error) {
	ctr, err := b.Repo.CreateCenter(ctx, ctr)
	if err != nil {
		return attendance.Center{}, err
	}
	if b.cache != nil {
		if err = b.cache.Invalidate(ctx, ctr.ID); err != nil {
			return ctr, errors.Wrap(err, "invalidating cached center")
		}
	}
	return ctr, nil
}

// Close releases the connections in reverse opening order.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}
