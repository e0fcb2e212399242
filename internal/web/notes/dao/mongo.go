package dao

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lovewall/love-wall/internal/web/notes/model"
	"github.com/lovewall/love-wall/library/db/mongo"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "notes"

// noteDoc is the stored shape of a note.
type noteDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	ImageURL  string             `bson:"imageUrl,omitempty"`
	Likes     int                `bson:"likes"`
	LikedBy   []string           `bson:"likedBy"`
	SenderIP  string             `bson:"senderIp,omitempty"`
	CreatedAt time.Time          `bson:"createdAt,omitempty"`
}

func (d *noteDoc) toModel() *model.Note {
	n := &model.Note{
		ID:        d.ID.Hex(),
		Text:      d.Text,
		ImageURL:  d.ImageURL,
		Likes:     d.Likes,
		LikedBy:   append([]string{}, d.LikedBy...),
		SenderIP:  d.SenderIP,
		CreatedAt: d.CreatedAt,
	}
	// documents written before createdAt existed
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.ID.Timestamp().UTC()
	}
	return n
}

// Mongo is the MongoDB note store.
type Mongo struct {
	logger logSDK.Logger
	db     mongo.DB
	col    *mongoLib.Collection
}

// NewMongo returns a store over collection colName of db.
func NewMongo(logger logSDK.Logger, db mongo.DB, colName string) (*Mongo, error) {
	if db == nil {
		return nil, errors.New("mongo db is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if colName == "" {
		colName = DefaultCollection
	}

	return &Mongo{
		logger: logger,
		db:     db,
		col:    db.GetCol(colName),
	}, nil
}

// EnsureIndexes creates the index backing the popular ordering.
func (d *Mongo) EnsureIndexes(ctx context.Context) error {
	name, err := d.col.Indexes().CreateOne(ctx, mongoLib.IndexModel{
		Keys: bson.D{
			{Key: "likes", Value: -1},
			{Key: "_id", Value: -1},
		},
		Options: options.Index().SetName("likes_desc_id_desc"),
	})
	if err != nil {
		return errors.Wrap(err, "create popular index")
	}

	d.logger.Debug("ensured index", zap.String("index", name))
	return nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(model.ErrNotFound, "malformed note id %q", id)
	}
	return oid, nil
}

// List implements Store.
func (d *Mongo) List(ctx context.Context, order model.SortOrder) ([]*model.Note, error) {
	sort := bson.D{{Key: "_id", Value: -1}}
	if order == model.SortPopular {
		sort = bson.D{{Key: "likes", Value: -1}, {Key: "_id", Value: -1}}
	}

	cur, err := d.col.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, errors.Wrap(err, "find notes")
	}

	var docs []noteDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode notes")
	}

	notes := make([]*model.Note, 0, len(docs))
	for i := range docs {
		notes = append(notes, docs[i].toModel())
	}

	return notes, nil
}

// Insert implements Store.
func (d *Mongo) Insert(ctx context.Context, note *model.Note) (*model.Note, error) {
	doc := &noteDoc{
		ID:        primitive.NewObjectID(),
		Text:      note.Text,
		ImageURL:  note.ImageURL,
		Likes:     0,
		LikedBy:   []string{},
		SenderIP:  note.SenderIP,
		CreatedAt: note.CreatedAt,
	}

	if _, err := d.col.InsertOne(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "insert note")
	}

	return doc.toModel(), nil
}

// Get implements Store.
func (d *Mongo) Get(ctx context.Context, id string) (*model.Note, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	doc := new(noteDoc)
	if err = d.col.FindOne(ctx, bson.M{"_id": oid}).Decode(doc); err != nil {
		if mongo.NotFound(err) {
			return nil, errors.Wrapf(model.ErrNotFound, "note %q", id)
		}
		return nil, errors.Wrapf(err, "find note %q", id)
	}

	return doc.toModel(), nil
}

// likedByOrEmpty treats a missing likedBy array as empty.
var likedByOrEmpty = bson.D{{Key: "$ifNull", Value: bson.A{"$likedBy", bson.A{}}}}

// recountLikes keeps likes equal to the size of likedBy.
var recountLikes = bson.D{{Key: "$set", Value: bson.D{
	{Key: "likes", Value: bson.D{{Key: "$size", Value: "$likedBy"}}},
}}}

// literal stops a caller id that starts with "$" from being read as a field path.
func literal(v string) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

// togglePipeline removes callerID from likedBy if present, appends it
// otherwise, then recounts likes. Membership test and update run in
// one server side operation.
func togglePipeline(callerID string) mongoLib.Pipeline {
	caller := literal(callerID)
	return mongoLib.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likedBy", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{caller, likedByOrEmpty}}}},
				{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: likedByOrEmpty},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", caller}}}},
				}}}},
				{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{likedByOrEmpty, bson.A{caller}}}}},
			}}}},
		}}},
		recountLikes,
	}
}

// likeOncePipeline appends callerID to likedBy and recounts likes.
// The filter guarantees callerID is not yet a member.
func likeOncePipeline(callerID string) mongoLib.Pipeline {
	return mongoLib.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likedBy", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				likedByOrEmpty, bson.A{literal(callerID)},
			}}}},
		}}},
		recountLikes,
	}
}

// ToggleLike implements Store.
func (d *Mongo) ToggleLike(ctx context.Context, id, callerID string) (*model.Note, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	doc := new(noteDoc)
	if err = d.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		togglePipeline(callerID),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(doc); err != nil {
		if mongo.NotFound(err) {
			return nil, errors.Wrapf(model.ErrNotFound, "note %q", id)
		}
		return nil, errors.Wrapf(err, "toggle like on note %q", id)
	}

	return doc.toModel(), nil
}

// LikeOnce implements Store.
func (d *Mongo) LikeOnce(ctx context.Context, id, callerID string) (*model.Note, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	doc := new(noteDoc)
	err = d.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "likedBy": bson.M{"$ne": callerID}},
		likeOncePipeline(callerID),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(doc)
	switch {
	case err == nil:
		return doc.toModel(), nil
	case !mongo.NotFound(err):
		return nil, errors.Wrapf(err, "like note %q", id)
	}

	exists, err := d.exists(ctx, oid)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrapf(model.ErrAlreadyLiked, "note %q", id)
	}
	return nil, errors.Wrapf(model.ErrNotFound, "note %q", id)
}

// DeleteOwned implements Store.
func (d *Mongo) DeleteOwned(ctx context.Context, id, ownerID string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	ret, err := d.col.DeleteOne(ctx, bson.M{"_id": oid, "senderIp": ownerID})
	if err != nil {
		return errors.Wrapf(err, "delete note %q", id)
	}
	if ret.DeletedCount == 1 {
		return nil
	}

	// nothing removed, only classify why
	exists, err := d.exists(ctx, oid)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(model.ErrForbidden, "note %q", id)
	}
	return errors.Wrapf(model.ErrNotFound, "note %q", id)
}

func (d *Mongo) exists(ctx context.Context, oid primitive.ObjectID) (bool, error) {
	err := d.col.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if err == nil {
		return true, nil
	}
	if mongo.NotFound(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "lookup note %q", oid.Hex())
}

// Close implements Store.
func (d *Mongo) Close(ctx context.Context) error {
	return d.db.Close(ctx)
}
