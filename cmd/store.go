package cmd

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"

	"github.com/lovewall/love-wall/internal/web/notes/dao"
	"github.com/lovewall/love-wall/library/db/mongo"
	"github.com/lovewall/love-wall/library/db/redis"
	"github.com/lovewall/love-wall/library/log"
)

const (
	driverMongo  = "mongo"
	driverRedis  = "redis"
	driverMemory = "memory"

	defaultMongoAddr = "localhost:27017"
	defaultMongoDB   = "love_wall"
)

var storeDrivers = []string{driverMongo, driverRedis, driverMemory}

// noteStore is the configured backend plus optional background preparation.
type noteStore struct {
	dao.Store
	prepare func(ctx context.Context) error
}

func settingString(key, def string) string {
	if v := strings.TrimSpace(gconfig.Shared.GetString(key)); v != "" {
		return v
	}
	return def
}

// newNoteStore connects the backend selected by settings.db.notes.driver.
func newNoteStore(ctx context.Context) (*noteStore, error) {
	driver := configuredDriver(func(key string) any { return gconfig.Shared.Get(key) })
	logger := log.Logger.Named("notes_store").With(zap.String("driver", driver))

	switch driver {
	case driverMongo:
		db, err := mongo.NewDB(ctx, mongo.DialInfo{
			URI:    gconfig.Shared.GetString("settings.db.notes.uri"),
			Addr:   settingString("settings.db.notes.addr", defaultMongoAddr),
			DBName: settingString("settings.db.notes.db", defaultMongoDB),
			User:   gconfig.Shared.GetString("settings.db.notes.user"),
			Pwd:    gconfig.Shared.GetString("settings.db.notes.pwd"),
			AuthDB: gconfig.Shared.GetString("settings.db.notes.auth_db"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}

		store, err := dao.NewMongo(logger, db,
			settingString("settings.db.notes.collection", dao.DefaultCollection))
		if err != nil {
			_ = db.Close(ctx)
			return nil, errors.Wrap(err, "new mongo store")
		}
		return &noteStore{Store: store, prepare: store.EnsureIndexes}, nil

	case driverRedis:
		db, err := redis.NewDB(ctx, redis.Options{
			Addr:      gconfig.Shared.GetString("settings.db.redis.addr"),
			Password:  gconfig.Shared.GetString("settings.db.redis.pwd"),
			DB:        gconfig.Shared.GetInt("settings.db.redis.db"),
			KeyPrefix: gconfig.Shared.GetString("settings.db.redis.key_prefix"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}

		store, err := dao.NewRedis(logger, db)
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "new redis store")
		}
		return &noteStore{Store: store}, nil

	case driverMemory:
		logger.Warn("notes are kept in memory and lost on exit")
		return &noteStore{Store: dao.NewMemory()}, nil

	default:
		return nil, errors.Errorf("unknown note store driver %q", driver)
	}
}
