// Package mongostore is the concrete docstore.DocumentSource backing
// Relay in production, backed by go.mongodb.org/mongo-driver. Grounded
// on the teacher's general approach to wrapping an external storage
// client behind the core's own interface (cluster/bmeta.go wraps a
// bucket-metadata store the same way); the Mongo wire protocol itself
// has no analogue in the teacher, so this file is new code exercising
// an out-of-pack domain dependency named in SPEC_FULL.md's domain
// stack section.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package mongostore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/rerr"
)

// Store adapts a *mongo.Client to docstore.DocumentSource.
type Store struct {
	client *mongo.Client
}

// Dial connects to uri, optionally authenticating with user/pass (pass
// empty strings to skip). Ping verifies connectivity before returning.
func Dial(ctx context.Context, uri, user, pass string) (*Store, error) {
	opts := options.Client().ApplyURI(uri)
	if user != "" {
		opts = opts.SetAuth(options.Credential{Username: user, Password: pass})
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, rerr.NewExternalFault("mongo.Connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, rerr.NewExternalFault("mongo.Ping", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) coll(db, col string) *mongo.Collection {
	return s.client.Database(db).Collection(col)
}

func (s *Store) Count(ctx context.Context, db, col string) (int64, error) {
	n, err := s.coll(db, col).EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, rerr.NewExternalFault("Count", err)
	}
	return n, nil
}

func (s *Store) Iter(ctx context.Context, db, col string) (docstore.Cursor, error) {
	return s.Slice(ctx, db, col, 0, 0)
}

func (s *Store) Slice(ctx context.Context, db, col string, skip, limit int64) (docstore.Cursor, error) {
	opts := options.Find().SetSkip(skip)
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cur, err := s.coll(db, col).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, rerr.NewExternalFault("Slice", err)
	}
	return &cursor{cur: cur}, nil
}

func (s *Store) Find(ctx context.Context, db, col string, query docstore.Query, projection docstore.Projection, sortSpec docstore.Sort, skip, limit int64) (docstore.Cursor, error) {
	opts := options.Find().SetSkip(skip)
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	if len(projection) > 0 {
		opts = opts.SetProjection(toBSONProjection(projection))
	}
	if len(sortSpec) > 0 {
		opts = opts.SetSort(toBSONSort(sortSpec))
	}
	filter := bson.M(query)
	if filter == nil {
		filter = bson.M{}
	}
	cur, err := s.coll(db, col).Find(ctx, filter, opts)
	if err != nil {
		return nil, rerr.NewExternalFault("Find", err)
	}
	return &cursor{cur: cur}, nil
}

// Write upserts docs by _id in one ordered bulk operation, all-or-
// nothing per spec.md §7.
func (s *Store) Write(ctx context.Context, db, col string, docs []docstore.Doc) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		id := d.ID()
		if id == nil {
			models = append(models, mongo.NewInsertOneModel().SetDocument(d.Raw()))
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(d.Raw()).
			SetUpsert(true))
	}
	_, err := s.coll(db, col).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return rerr.NewExternalFault("Write", err)
	}
	return nil
}

func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := s.client.ListDatabaseNames(ctx, bson.M{})
	if err != nil {
		return nil, rerr.NewExternalFault("ListDatabases", err)
	}
	return filterReserved(names, reservedDatabases), nil
}

func (s *Store) ListCollections(ctx context.Context, db string) ([]string, error) {
	names, err := s.client.Database(db).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, rerr.NewExternalFault("ListCollections", err)
	}
	return filterSystemPrefixed(names), nil
}

// reservedDatabases are excluded from /list_all (SPEC_FULL §8),
// mirroring the original's admin/config/local exclusion.
var reservedDatabases = map[string]bool{
	"admin":  true,
	"config": true,
	"local":  true,
}

func filterReserved(names []string, reserved map[string]bool) []string {
	out := names[:0]
	for _, n := range names {
		if !reserved[n] {
			out = append(out, n)
		}
	}
	return out
}

const systemCollectionPrefix = "system."

func filterSystemPrefixed(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if len(n) < len(systemCollectionPrefix) || n[:len(systemCollectionPrefix)] != systemCollectionPrefix {
			out = append(out, n)
		}
	}
	return out
}

func toBSONProjection(p docstore.Projection) bson.M {
	out := make(bson.M, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func toBSONSort(s docstore.Sort) bson.D {
	out := make(bson.D, len(s))
	for i, f := range s {
		dir := -1
		if f.Ascending {
			dir = 1
		}
		out[i] = bson.E{Key: f.Field, Value: dir}
	}
	return out
}

type cursor struct {
	cur *mongo.Cursor
	doc docstore.Doc
}

func (c *cursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *cursor) Doc() docstore.Doc {
	var m bson.M
	if err := c.cur.Decode(&m); err != nil {
		return docstore.NewDoc(nil)
	}
	c.doc = docstore.NewDoc(map[string]any(m))
	return c.doc
}

func (c *cursor) Err() error {
	if err := c.cur.Err(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (c *cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
