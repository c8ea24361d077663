// Package mongostore maps the synchronized key tree onto MongoDB.
//
// A path groups/{id}/a/b addresses collection "groups", document _id {id},
// field "a.b". Every write stamps a fresh _rev on the document; Transact is
// an optimistic compare-and-set on _rev, retried with exponential backoff
// when another writer wins until the caller's context is done.
// Subscriptions follow a change stream, which requires a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/cenkalti/backoff/v4"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const revField = "_rev"

// errConflict marks an attempt that lost the compare-and-set.
var errConflict = errors.New("mongostore: revision changed")

// Store is a synchronized store backed by a Mongo database.
type Store struct {
	db         *mongo.Database
	log        *zap.Logger
	maxRetries int
}

var _ syncstore.Store = (*Store)(nil)

// New returns a store over db.
func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{db: db, log: logger}
}

// WithMaxRetries returns a copy of the store whose Transact gives up with
// syncstore.ErrMaxRetries after n lost races. n <= 0 retries until the
// context is done.
func (s *Store) WithMaxRetries(n int) *Store {
	c := *s
	c.maxRetries = n
	return &c
}

func (s *Store) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if s.maxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(s.maxRetries))
	}
	return backoff.WithContext(policy, ctx)
}

// location is where a path lives in Mongo. field is empty for a whole record.
type location struct {
	coll  string
	id    string
	field string
	segs  []string
}

func locate(path string) (location, error) {
	if err := syncstore.Validate(path); err != nil {
		return location{}, err
	}
	segs := syncstore.Split(path)
	if len(segs) < 2 {
		return location{}, fmt.Errorf("%w: %q addresses a collection, not a record", syncstore.ErrInvalidPath, path)
	}
	return location{
		coll:  segs[0],
		id:    segs[1],
		field: strings.Join(segs[2:], "."),
		segs:  segs[2:],
	}, nil
}

// extract returns the normalized value at loc inside a raw document.
func extract(doc bson.M, loc location) (any, error) {
	if doc == nil {
		return nil, nil
	}
	body := make(bson.M, len(doc))
	for k, v := range doc {
		if k == "_id" || k == revField {
			continue
		}
		body[k] = v
	}
	v, err := syncstore.Normalize(body)
	if err != nil {
		return nil, err
	}
	return syncstore.Lookup(v, loc.segs), nil
}

func (s *Store) Get(ctx context.Context, path string) (syncstore.Snapshot, error) {
	loc, err := locate(path)
	if err != nil {
		return syncstore.Snapshot{}, err
	}
	opts := options.FindOne()
	if loc.field != "" {
		opts.SetProjection(bson.M{loc.field: 1})
	}

	var doc bson.M
	err = s.db.Collection(loc.coll).FindOne(ctx, bson.M{"_id": loc.id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return syncstore.Snapshot{Path: syncstore.Join(path)}, nil
	}
	if err != nil {
		return syncstore.Snapshot{}, err
	}
	v, err := extract(doc, loc)
	if err != nil {
		return syncstore.Snapshot{}, err
	}
	return syncstore.Snapshot{Path: syncstore.Join(path), Value: v}, nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	loc, err := locate(path)
	if err != nil {
		return err
	}
	v, err := syncstore.Normalize(value)
	if err != nil {
		return err
	}
	coll := s.db.Collection(loc.coll)
	rev := primitive.NewObjectID()

	if loc.field == "" {
		if v == nil {
			_, err := coll.DeleteOne(ctx, bson.M{"_id": loc.id})
			return err
		}
		doc, err := recordDoc(loc.id, rev, v)
		if err != nil {
			return err
		}
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": loc.id}, doc, options.Replace().SetUpsert(true))
		return err
	}

	var update bson.M
	if v == nil {
		update = bson.M{"$unset": bson.M{loc.field: ""}, "$set": bson.M{revField: rev}}
	} else {
		update = bson.M{"$set": bson.M{loc.field: v, revField: rev}}
	}
	_, err = coll.UpdateOne(ctx, bson.M{"_id": loc.id}, update, options.Update().SetUpsert(v != nil))
	return err
}

func (s *Store) Transact(ctx context.Context, path string, fn syncstore.UpdateFunc) (syncstore.Snapshot, error) {
	loc, err := locate(path)
	if err != nil {
		return syncstore.Snapshot{}, err
	}
	coll := s.db.Collection(loc.coll)

	var snap syncstore.Snapshot
	attempt := 0
	op := func() error {
		attempt++
		var doc bson.M
		err := coll.FindOne(ctx, bson.M{"_id": loc.id}).Decode(&doc)
		exists := true
		if errors.Is(err, mongo.ErrNoDocuments) {
			exists = false
			doc = nil
		} else if err != nil {
			return backoff.Permanent(err)
		}

		cur, err := extract(doc, loc)
		if err != nil {
			return backoff.Permanent(err)
		}
		next, err := fn(cur)
		if err != nil {
			return backoff.Permanent(err)
		}
		v, err := syncstore.Normalize(next)
		if err != nil {
			return backoff.Permanent(err)
		}

		committed, err := s.commit(ctx, coll, loc, doc, exists, v)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !committed {
			s.log.Debug("transaction conflict, retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt))
			return errConflict
		}
		snap = syncstore.Snapshot{Path: syncstore.Join(path), Value: v}
		return nil
	}

	err = backoff.Retry(op, s.retryPolicy(ctx))
	if errors.Is(err, errConflict) {
		return syncstore.Snapshot{}, syncstore.ErrMaxRetries
	}
	if err != nil {
		return syncstore.Snapshot{}, err
	}
	return snap, nil
}

// commit writes v if the document still carries the revision it was read
// at. It reports false when another writer got there first.
func (s *Store) commit(ctx context.Context, coll *mongo.Collection, loc location, doc bson.M, exists bool, v any) (bool, error) {
	rev := primitive.NewObjectID()

	if !exists {
		if v == nil {
			return true, nil
		}
		var newDoc bson.M
		if loc.field == "" {
			d, err := recordDoc(loc.id, rev, v)
			if err != nil {
				return false, err
			}
			newDoc = d
		} else {
			newDoc = bson.M{"_id": loc.id, revField: rev}
			nest(newDoc, loc.segs, v)
		}
		_, err := coll.InsertOne(ctx, newDoc)
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return err == nil, err
	}

	filter := bson.M{"_id": loc.id, revField: doc[revField]}
	if doc[revField] == nil {
		filter[revField] = bson.M{"$exists": false}
	}

	switch {
	case loc.field == "" && v == nil:
		res, err := coll.DeleteOne(ctx, filter)
		if err != nil {
			return false, err
		}
		return res.DeletedCount == 1, nil
	case loc.field == "":
		d, err := recordDoc(loc.id, rev, v)
		if err != nil {
			return false, err
		}
		res, err := coll.ReplaceOne(ctx, filter, d)
		if err != nil {
			return false, err
		}
		return res.MatchedCount == 1, nil
	case v == nil:
		res, err := coll.UpdateOne(ctx, filter, bson.M{
			"$unset": bson.M{loc.field: ""},
			"$set":   bson.M{revField: rev},
		})
		if err != nil {
			return false, err
		}
		return res.MatchedCount == 1, nil
	default:
		res, err := coll.UpdateOne(ctx, filter, bson.M{
			"$set": bson.M{loc.field: v, revField: rev},
		})
		if err != nil {
			return false, err
		}
		return res.MatchedCount == 1, nil
	}
}

// changeEvent is the subset of a change stream document we read.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
}

func (s *Store) Subscribe(ctx context.Context, path string) (*syncstore.Subscription, error) {
	loc, err := locate(path)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: loc.id}}}},
	}
	cs, err := s.db.Collection(loc.coll).Watch(watchCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := syncstore.NewSubscription(path, cancel)

	// The stream is open before the initial read, so no change can fall
	// between the two; duplicates are dropped by Publish.
	initial, err := s.Get(watchCtx, path)
	if err != nil {
		_ = cs.Close(context.Background())
		sub.Cancel()
		return nil, err
	}
	sub.Publish(initial.Value)

	go s.follow(watchCtx, cs, sub, loc)
	return sub, nil
}

func (s *Store) follow(ctx context.Context, cs *mongo.ChangeStream, sub *syncstore.Subscription, loc location) {
	defer func() { _ = cs.Close(context.Background()) }()

	for cs.Next(ctx) {
		var ev changeEvent
		if err := cs.Decode(&ev); err != nil {
			s.log.Warn("change stream decode failed", zap.String("path", sub.Path()), zap.Error(err))
			continue
		}
		switch ev.OperationType {
		case "insert", "update", "replace":
			v, err := extract(ev.FullDocument, loc)
			if err != nil {
				s.log.Warn("change stream value rejected", zap.String("path", sub.Path()), zap.Error(err))
				continue
			}
			sub.Publish(v)
		case "delete":
			sub.Publish(nil)
		case "drop", "invalidate":
			sub.Fail(fmt.Errorf("mongostore: change stream %s", ev.OperationType))
			return
		}
	}

	if err := cs.Err(); err != nil && ctx.Err() == nil {
		s.log.Warn("change stream ended", zap.String("path", sub.Path()), zap.Error(err))
		sub.Fail(err)
		return
	}
	sub.Cancel()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func recordDoc(id string, rev primitive.ObjectID, v any) (bson.M, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("mongostore: record %q must be an object, got %T", id, v)
	}
	doc := make(bson.M, len(m)+2)
	for k, c := range m {
		doc[k] = c
	}
	doc["_id"] = id
	doc[revField] = rev
	return doc, nil
}

func nest(doc bson.M, segs []string, v any) {
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next := bson.M{}
		cur[seg] = next
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}
