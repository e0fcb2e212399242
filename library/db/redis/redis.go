// Package redis wraps the go-redis client used by the redis note store.
package redis

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"

	"github.com/lovewall/love-wall/library/log"
)

// Options configures NewDB.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// DB is a redis client with a key namespace.
type DB struct {
	cli    *redis.Client
	prefix string
}

// NewDB dials redis and pings it once so a bad address fails at startup.
func NewDB(ctx context.Context, opt Options) (*DB, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, errors.Wrapf(err, "ping redis `%s`", opt.Addr)
	}

	log.Logger.Info("connected to redis",
		zap.String("addr", opt.Addr),
		zap.Int("db", opt.DB))
	return NewDBFromClient(cli, opt.KeyPrefix), nil
}

// NewDBFromClient wraps an existing client. An empty prefix means DefaultKeyPrefix.
func NewDBFromClient(cli *redis.Client, prefix string) *DB {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &DB{cli: cli, prefix: prefix}
}

// Client returns the underlying go-redis client.
func (d *DB) Client() *redis.Client {
	return d.cli
}

// Key joins parts under the configured prefix, e.g. Key("notes", id).
func (d *DB) Key(parts ...string) string {
	return d.prefix + strings.Join(parts, "/")
}

// Close closes the client.
func (d *DB) Close() error {
	if err := d.cli.Close(); err != nil {
		return errors.Wrap(err, "close redis")
	}
	return nil
}
