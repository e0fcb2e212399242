package dao

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"

	"github.com/lovewall/love-wall/internal/web/notes/model"
	rdb "github.com/lovewall/love-wall/library/db/redis"
)

// hash fields of a stored note
const (
	fieldText      = "text"
	fieldImageURL  = "imageUrl"
	fieldSenderIP  = "senderIp"
	fieldCreatedAt = "createdAt"
	fieldSeq       = "seq"
	fieldLikes     = "likes"
)

// script results shared by the lua scripts below
const (
	scriptNotFound     = -1
	scriptAlreadyLiked = -2
	scriptForbidden    = 0
	scriptDeleted      = 1
)

// KEYS: note hash, likers set. ARGV: caller id.
var toggleLikeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
	redis.call('SREM', KEYS[2], ARGV[1])
else
	redis.call('SADD', KEYS[2], ARGV[1])
end
local n = redis.call('SCARD', KEYS[2])
redis.call('HSET', KEYS[1], 'likes', n)
return n
`)

// KEYS: note hash, likers set. ARGV: caller id.
var likeOnceScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
	return -2
end
local n = redis.call('SCARD', KEYS[2])
redis.call('HSET', KEYS[1], 'likes', n)
return n
`)

// KEYS: note hash, likers set, recent index. ARGV: owner id, note id.
var deleteOwnedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local owner = redis.call('HGET', KEYS[1], 'senderIp')
if not owner or owner == '' or owner ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1], KEYS[2])
redis.call('ZREM', KEYS[3], ARGV[2])
return 1
`)

// Redis is the redis note store.
//
// Each note is a hash plus a set of likers. A sorted set scored by a
// store-wide sequence keeps the creation order.
type Redis struct {
	logger logSDK.Logger
	db     *rdb.DB
}

// NewRedis returns a store on db.
func NewRedis(logger logSDK.Logger, db *rdb.DB) (*Redis, error) {
	if db == nil {
		return nil, errors.New("redis db is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Redis{logger: logger, db: db}, nil
}

func (d *Redis) noteKey(id string) string {
	return d.db.Key("note", id)
}

func (d *Redis) likersKey(id string) string {
	return d.db.Key("note", id, "likers")
}

func (d *Redis) recentKey() string {
	return d.db.Key("notes", "recent")
}

func (d *Redis) seqKey() string {
	return d.db.Key("notes", "seq")
}

type redisEntry struct {
	note *model.Note
	seq  uint64
}

// load reads the notes of ids in one round trip. Missing ids are skipped.
func (d *Redis) load(ctx context.Context, ids ...string) ([]*redisEntry, error) {
	cli := d.db.Client()
	hashes := make([]*redis.MapStringStringCmd, len(ids))
	likers := make([]*redis.StringSliceCmd, len(ids))
	if _, err := cli.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			hashes[i] = p.HGetAll(ctx, d.noteKey(id))
			likers[i] = p.SMembers(ctx, d.likersKey(id))
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "load notes")
	}

	entries := make([]*redisEntry, 0, len(ids))
	for i, id := range ids {
		fields := hashes[i].Val()
		if len(fields) == 0 {
			continue
		}

		ent, err := decodeRedisNote(id, fields, likers[i].Val())
		if err != nil {
			return nil, err
		}
		entries = append(entries, ent)
	}

	return entries, nil
}

func decodeRedisNote(id string, fields map[string]string, likedBy []string) (*redisEntry, error) {
	seq, err := strconv.ParseUint(fields[fieldSeq], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parse seq of note %q", id)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, errors.Wrapf(err, "parse createdAt of note %q", id)
	}

	sort.Strings(likedBy)
	if likedBy == nil {
		likedBy = []string{}
	}

	return &redisEntry{
		seq: seq,
		note: &model.Note{
			ID:        id,
			Text:      fields[fieldText],
			ImageURL:  fields[fieldImageURL],
			Likes:     len(likedBy),
			LikedBy:   likedBy,
			SenderIP:  fields[fieldSenderIP],
			CreatedAt: createdAt,
		},
	}, nil
}

// List implements Store.
func (d *Redis) List(ctx context.Context, order model.SortOrder) ([]*model.Note, error) {
	ids, err := d.db.Client().ZRevRange(ctx, d.recentKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list note ids")
	}

	entries, err := d.load(ctx, ids...)
	if err != nil {
		return nil, err
	}

	sortEntries(entries, order, func(e *redisEntry) (int, uint64) {
		return e.note.Likes, e.seq
	})

	notes := make([]*model.Note, 0, len(entries))
	for _, ent := range entries {
		notes = append(notes, ent.note)
	}
	return notes, nil
}

// Insert implements Store.
func (d *Redis) Insert(ctx context.Context, note *model.Note) (*model.Note, error) {
	cli := d.db.Client()
	seq, err := cli.Incr(ctx, d.seqKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "next note seq")
	}

	stored := note.Clone()
	stored.ID = newNoteID()
	stored.Likes = 0
	stored.LikedBy = []string{}

	if _, err = cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, d.noteKey(stored.ID), map[string]any{
			fieldText:      stored.Text,
			fieldImageURL:  stored.ImageURL,
			fieldSenderIP:  stored.SenderIP,
			fieldCreatedAt: stored.CreatedAt.UTC().Format(time.RFC3339Nano),
			fieldSeq:       seq,
			fieldLikes:     0,
		})
		p.ZAdd(ctx, d.recentKey(), redis.Z{Score: float64(seq), Member: stored.ID})
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "insert note")
	}

	d.logger.Debug("inserted note", zap.String("id", stored.ID), zap.Int64("seq", seq))
	return stored, nil
}

// Get implements Store.
func (d *Redis) Get(ctx context.Context, id string) (*model.Note, error) {
	if !validNoteID(id) {
		return nil, errors.Wrapf(model.ErrNotFound, "malformed note id %q", id)
	}

	entries, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.Wrapf(model.ErrNotFound, "note %q", id)
	}
	return entries[0].note, nil
}

func (d *Redis) runLikeScript(ctx context.Context, script *redis.Script, id, callerID string) (*model.Note, error) {
	if !validNoteID(id) {
		return nil, errors.Wrapf(model.ErrNotFound, "malformed note id %q", id)
	}

	ret, err := script.Run(ctx, d.db.Client(),
		[]string{d.noteKey(id), d.likersKey(id)}, callerID).Int()
	if err != nil {
		return nil, errors.Wrapf(err, "like note %q", id)
	}

	switch ret {
	case scriptNotFound:
		return nil, errors.Wrapf(model.ErrNotFound, "note %q", id)
	case scriptAlreadyLiked:
		return nil, errors.Wrapf(model.ErrAlreadyLiked, "note %q", id)
	}

	return d.Get(ctx, id)
}

// ToggleLike implements Store.
func (d *Redis) ToggleLike(ctx context.Context, id, callerID string) (*model.Note, error) {
	return d.runLikeScript(ctx, toggleLikeScript, id, callerID)
}

// LikeOnce implements Store.
func (d *Redis) LikeOnce(ctx context.Context, id, callerID string) (*model.Note, error) {
	return d.runLikeScript(ctx, likeOnceScript, id, callerID)
}

// DeleteOwned implements Store.
func (d *Redis) DeleteOwned(ctx context.Context, id, ownerID string) error {
	if !validNoteID(id) {
		return errors.Wrapf(model.ErrNotFound, "malformed note id %q", id)
	}

	ret, err := deleteOwnedScript.Run(ctx, d.db.Client(),
		[]string{d.noteKey(id), d.likersKey(id), d.recentKey()},
		ownerID, id).Int()
	if err != nil {
		return errors.Wrapf(err, "delete note %q", id)
	}

	switch ret {
	case scriptDeleted:
		return nil
	case scriptForbidden:
		return errors.Wrapf(model.ErrForbidden, "note %q", id)
	default:
		return errors.Wrapf(model.ErrNotFound, "note %q", id)
	}
}

// Close implements Store.
func (d *Redis) Close(context.Context) error {
	return d.db.Close()
}
