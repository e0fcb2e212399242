// Package mongo provides a shared, lazily dialed MongoDB client.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lovewall/love-wall/library/log"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultHeartbeat = 10 * time.Second
)

// DB is the handle handed to data access objects.
type DB interface {
	Close(ctx context.Context) error
	GetCol(colName string) *mongo.Collection
	CurrentDB() *mongo.Database
}

// DialInfo describes how to reach MongoDB.
//
// URI wins over Addr/User/Pwd/AuthDB when set. DBName always selects
// the database returned by CurrentDB.
type DialInfo struct {
	URI    string
	Addr   string
	DBName string
	User   string
	Pwd    string
	AuthDB string
}

type db struct {
	shared *sharedClient
	dbName string
}

// sharedClient is one mongo.Client reused by every DB with the same URI.
type sharedClient struct {
	mu       sync.RWMutex
	cli      *mongo.Client
	uri      string
	refCount int
	ready    chan struct{}
	err      error
}

var (
	sharedClientsMu sync.Mutex
	sharedClients   = map[string]*sharedClient{}
)

// driver hooks, replaced in tests
var (
	connectMongo = func(ctx context.Context, clientOpts *options.ClientOptions) (*mongo.Client, error) {
		return mongo.Connect(ctx, clientOpts)
	}
	pingMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Ping(ctx, readpref.Primary())
	}
	disconnectMongo = func(ctx context.Context, cli *mongo.Client) error {
		return cli.Disconnect(ctx)
	}
)

// buildMongoURI returns the connection string for dialInfo.
func buildMongoURI(dialInfo DialInfo) string {
	if uri := strings.TrimSpace(dialInfo.URI); uri != "" {
		return uri
	}

	uri := &url.URL{
		Scheme: "mongodb",
		Host:   dialInfo.Addr,
		Path:   "/" + dialInfo.DBName,
	}
	if dialInfo.User != "" || dialInfo.Pwd != "" {
		uri.User = url.UserPassword(dialInfo.User, dialInfo.Pwd)
	}
	if dialInfo.AuthDB != "" {
		query := url.Values{}
		query.Set("authSource", dialInfo.AuthDB)
		uri.RawQuery = query.Encode()
	}
	return uri.String()
}

// redactURI hides credentials before the URI reaches a log line.
func redactURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.User == nil {
		return uri
	}
	parsed.User = url.User(parsed.User.Username())
	return parsed.String()
}

// NewDB returns a DB bound to dialInfo.DBName. Callers with the same
// connection URI share one underlying client until the last one closes.
func NewDB(ctx context.Context, dialInfo DialInfo) (DB, error) {
	uri := buildMongoURI(dialInfo)
	log.Logger.Info("try to connect to mongodb",
		zap.String("uri", redactURI(uri)),
		zap.String("db", dialInfo.DBName),
	)

	shared, err := acquireSharedClient(ctx, uri)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	return &db{shared: shared, dbName: dialInfo.DBName}, nil
}

// acquireSharedClient returns the shared client for uri, dialing it if
// nobody holds it yet. Concurrent callers wait on the first dial.
func acquireSharedClient(ctx context.Context, uri string) (*sharedClient, error) {
	sharedClientsMu.Lock()
	if sc := sharedClients[uri]; sc != nil {
		sc.refCount++
		sharedClientsMu.Unlock()

		select {
		case <-sc.ready:
		case <-ctx.Done():
			sc.release()
			return nil, errors.Wrap(ctx.Err(), "wait for mongo connect")
		}
		if sc.err != nil {
			sc.release()
			return nil, errors.Wrap(sc.err, "connect")
		}

		return sc, nil
	}

	sc := &sharedClient{
		uri:      uri,
		refCount: 1,
		ready:    make(chan struct{}),
	}
	sharedClients[uri] = sc
	sharedClientsMu.Unlock()

	if err := sc.dial(ctx); err != nil {
		sc.err = err
		close(sc.ready)
		sc.release()
		return nil, errors.Wrap(err, "connect")
	}

	close(sc.ready)
	return sc, nil
}

// release drops one reference and forgets the client when unused.
// It reports whether this was the last reference.
func (s *sharedClient) release() bool {
	sharedClientsMu.Lock()
	defer sharedClientsMu.Unlock()

	s.refCount--
	if s.refCount > 0 {
		return false
	}
	if sharedClients[s.uri] == s {
		delete(sharedClients, s.uri)
	}
	return true
}

func (s *sharedClient) dial(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(s.uri).
		SetConnectTimeout(defaultTimeout).
		SetServerSelectionTimeout(defaultTimeout).
		SetHeartbeatInterval(defaultHeartbeat).
		SetRetryReads(true).
		SetRetryWrites(true).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(300 * time.Second)

	cli, err := connectMongo(ctx, clientOpts)
	if err != nil {
		return errors.Wrap(err, "connect db")
	}

	// fail at startup rather than on the first request
	if err := pingMongo(ctx, cli); err != nil {
		_ = disconnectMongo(context.Background(), cli)
		return errors.Wrap(err, "ping db")
	}

	s.mu.Lock()
	s.cli = cli
	s.mu.Unlock()
	return nil
}

func (s *sharedClient) client() *mongo.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cli
}

// CurrentDB returns the database named in DialInfo.
func (d *db) CurrentDB() *mongo.Database {
	return d.shared.client().Database(d.dbName)
}

// GetCol returns a collection in the current database.
func (d *db) GetCol(colName string) *mongo.Collection {
	return d.CurrentDB().Collection(colName)
}

// Close releases this handle. The client is disconnected when the last
// handle sharing it is closed.
func (d *db) Close(ctx context.Context) error {
	if d.shared == nil {
		return nil
	}
	shared := d.shared
	d.shared = nil

	if !shared.release() {
		return nil
	}

	cli := shared.client()
	if cli == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	closeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := disconnectMongo(closeCtx, cli)
	shared.mu.Lock()
	shared.cli = nil
	shared.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "disconnect")
	}
	return nil
}

// String implements fmt.Stringer without leaking credentials.
func (d *db) String() string {
	if d.shared == nil {
		return fmt.Sprintf("mongo(closed, db=%s)", d.dbName)
	}
	return fmt.Sprintf("mongo(%s, db=%s)", redactURI(d.shared.uri), d.dbName)
}
