/*
 * Copyright 2026 unistore-io.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

// DefaultPrimaryKey is the identifier field used when Options.PrimaryKey is
// empty.
const DefaultPrimaryKey = "_id"

// mongoRepository implements repository.Repository against one collection.
// Inside a transaction the same type is used; the session rides in the
// context the callback received.
type mongoRepository struct {
	coll   *mongo.Collection
	opts   repository.Options
	logger repository.Logger
	inTx   bool
}

func newRepository(db *mongo.Database, opts repository.Options, logger repository.Logger, inTx bool) (*mongoRepository, error) {
	if opts.Collection == "" {
		return nil, types.NewValidationError("collection", "collection name is required for a document repository")
	}
	return &mongoRepository{
		coll:   db.Collection(opts.Collection),
		opts:   opts,
		logger: logger,
		inTx:   inTx,
	}, nil
}

func (r *mongoRepository) pk() string { return r.opts.PrimaryKeyOr(DefaultPrimaryKey) }

// query translates the effective filter for this repository.
func (r *mongoRepository) query(filter types.Filter, withDeleted bool) (bson.M, error) {
	return translateFilter(r.opts.EffectiveFilter(filter, withDeleted))
}

// idFilter builds the primary-key predicate, converting 24-char hex strings
// to ObjectIDs when the collection is keyed by _id.
func (r *mongoRepository) idFilter(id any) types.Filter {
	return types.Filter{r.pk(): r.normalizeID(id)}
}

func (r *mongoRepository) normalizeID(id any) any {
	if r.pk() != DefaultPrimaryKey {
		return id
	}
	if s, ok := id.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
	}
	return id
}

func (r *mongoRepository) Create(ctx context.Context, data types.Entity) (types.Entity, error) {
	doc := repository.CloneEntity(data)
	if h := r.opts.Hooks.BeforeCreate; h != nil {
		replaced, err := h(ctx, doc)
		if err != nil {
			return nil, err
		}
		doc = replaced
	}
	if r.opts.Timestamps {
		now := time.Now().UTC()
		doc[r.opts.CreatedAtOr()] = now
		doc[r.opts.UpdatedAtOr()] = now
	}

	res, err := r.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return nil, err
	}
	if _, hasID := doc[r.pk()]; !hasID {
		doc[r.pk()] = res.InsertedID
	}
	if h := r.opts.Hooks.AfterCreate; h != nil {
		if err := h(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id any) (types.Entity, error) {
	return r.FindOne(ctx, r.idFilter(id))
}

func (r *mongoRepository) FindOne(ctx context.Context, filter types.Filter) (types.Entity, error) {
	q, err := r.query(filter, false)
	if err != nil {
		return nil, err
	}
	var doc types.Entity
	err = r.coll.FindOne(ctx, q).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *mongoRepository) FindAll(ctx context.Context, filter types.Filter, sortRules ...types.Sort) ([]types.Entity, error) {
	q, err := r.query(filter, false)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find()
	if len(sortRules) > 0 {
		findOpts.SetSort(sortDoc(sortRules))
	}
	return r.findDocs(ctx, q, findOpts)
}

func (r *mongoRepository) findDocs(ctx context.Context, q bson.M, findOpts *options.FindOptions) ([]types.Entity, error) {
	cur, err := r.coll.Find(ctx, q, findOpts)
	if err != nil {
		return nil, err
	}
	docs := make([]types.Entity, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *mongoRepository) FindPage(ctx context.Context, req types.PageRequest) (*types.PageResult, error) {
	page, limit := req.GetPage(), req.GetLimit()

	q, err := r.query(req.Filter, false)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find().
		SetSkip(int64(req.GetOffset())).
		SetLimit(int64(limit))
	if len(req.Sort) > 0 {
		findOpts.SetSort(sortDoc(req.Sort))
	}

	var total int64
	var docs []types.Entity

	if r.inTx {
		// The session bound to ctx is a single conversation; count and fetch
		// run sequentially on it.
		if total, err = r.coll.CountDocuments(ctx, q); err != nil {
			return nil, err
		}
		if docs, err = r.findDocs(ctx, q, findOpts); err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			total, err = r.coll.CountDocuments(gctx, q)
			return err
		})
		g.Go(func() error {
			var err error
			docs, err = r.findDocs(gctx, q, findOpts)
			return err
		})
		if err = g.Wait(); err != nil {
			return nil, err
		}
	}
	return types.NewPageResult(docs, page, limit, total), nil
}

func (r *mongoRepository) UpdateByID(ctx context.Context, id any, update types.Entity) (types.Entity, error) {
	set := repository.CloneEntity(update)
	if h := r.opts.Hooks.BeforeUpdate; h != nil {
		replaced, err := h(ctx, set)
		if err != nil {
			return nil, err
		}
		set = replaced
	}
	if r.opts.Timestamps {
		set[r.opts.UpdatedAtOr()] = time.Now().UTC()
	}

	q, err := r.query(r.idFilter(id), false)
	if err != nil {
		return nil, err
	}
	var updated types.Entity
	err = r.coll.FindOneAndUpdate(ctx, q,
		bson.M{"$set": bson.M(set)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if h := r.opts.Hooks.AfterUpdate; h != nil {
		if err := h(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (r *mongoRepository) DeleteByID(ctx context.Context, id any) (bool, error) {
	if h := r.opts.Hooks.BeforeDelete; h != nil {
		if err := h(ctx, id); err != nil {
			return false, err
		}
	}

	var n int64
	var err error
	if r.opts.SoftDelete {
		n, err = r.markDeleted(ctx, r.idFilter(id))
	} else {
		var q bson.M
		if q, err = r.query(r.idFilter(id), false); err == nil {
			var res *mongo.DeleteResult
			if res, err = r.coll.DeleteOne(ctx, q); err == nil {
				n = res.DeletedCount
			}
		}
	}
	if err != nil {
		return false, err
	}
	deleted := n > 0
	if h := r.opts.Hooks.AfterDelete; h != nil {
		if err := h(ctx, id, deleted); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (r *mongoRepository) Count(ctx context.Context, filter types.Filter) (int64, error) {
	q, err := r.query(filter, false)
	if err != nil {
		return 0, err
	}
	return r.coll.CountDocuments(ctx, q)
}

func (r *mongoRepository) Exists(ctx context.Context, filter types.Filter) (bool, error) {
	q, err := r.query(filter, false)
	if err != nil {
		return false, err
	}
	// Limit-1 probe through a projected FindOne, never a count.
	err = r.coll.FindOne(ctx, q,
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *mongoRepository) InsertMany(ctx context.Context, rows []types.Entity) ([]types.Entity, error) {
	created := make([]types.Entity, 0, len(rows))
	for _, row := range rows {
		c, err := r.Create(ctx, row)
		if err != nil {
			return created, err
		}
		created = append(created, c)
	}
	return created, nil
}

func (r *mongoRepository) UpdateMany(ctx context.Context, filter types.Filter, update types.Entity) (int64, error) {
	set := repository.CloneEntity(update)
	if h := r.opts.Hooks.BeforeUpdate; h != nil {
		replaced, err := h(ctx, set)
		if err != nil {
			return 0, err
		}
		set = replaced
	}
	if r.opts.Timestamps {
		set[r.opts.UpdatedAtOr()] = time.Now().UTC()
	}
	return r.execUpdateMany(ctx, filter, set, false)
}

func (r *mongoRepository) execUpdateMany(ctx context.Context, filter types.Filter, set types.Entity, withDeleted bool) (int64, error) {
	if len(set) == 0 {
		return 0, types.NewValidationError("", "update payload cannot be empty")
	}
	q, err := translateFilter(r.opts.EffectiveFilter(filter, withDeleted))
	if err != nil {
		return 0, err
	}
	res, err := r.coll.UpdateMany(ctx, q, bson.M{"$set": bson.M(set)})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoRepository) DeleteMany(ctx context.Context, filter types.Filter) (int64, error) {
	if r.opts.SoftDelete {
		return r.markDeleted(ctx, filter)
	}
	q, err := r.query(filter, false)
	if err != nil {
		return 0, err
	}
	res, err := r.coll.DeleteMany(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *mongoRepository) Upsert(ctx context.Context, filter types.Filter, data types.Entity) (types.Entity, error) {
	existing, err := r.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		id, ok := existing[r.pk()]
		if !ok {
			return nil, fmt.Errorf("upsert: matched document has no %q field", r.pk())
		}
		return r.UpdateByID(ctx, id, data)
	}
	seed := repository.LiteralValues(filter)
	for k, v := range data {
		seed[k] = v
	}
	return r.Create(ctx, seed)
}

func (r *mongoRepository) Distinct(ctx context.Context, field string, filter types.Filter) ([]any, error) {
	q, err := r.query(filter, false)
	if err != nil {
		return nil, err
	}
	return r.coll.Distinct(ctx, field, q)
}

func (r *mongoRepository) Select(ctx context.Context, filter types.Filter, fields []string) ([]types.Entity, error) {
	if len(fields) == 0 {
		return nil, types.NewValidationError("", "select requires at least one field")
	}
	q, err := r.query(filter, false)
	if err != nil {
		return nil, err
	}
	projection := bson.M{"_id": 0}
	for _, f := range fields {
		projection[f] = 1
	}
	return r.findDocs(ctx, q, options.Find().SetProjection(projection))
}

func (r *mongoRepository) requireSoftDelete() error {
	if !r.opts.SoftDelete {
		return types.NewValidationError("", "soft delete is not enabled for this repository")
	}
	return nil
}

func (r *mongoRepository) markDeleted(ctx context.Context, filter types.Filter) (int64, error) {
	if err := r.requireSoftDelete(); err != nil {
		return 0, err
	}
	set := types.Entity{r.opts.SoftDeleteFieldOr(): time.Now().UTC()}
	return r.execUpdateMany(ctx, filter, set, false)
}

func (r *mongoRepository) SoftDelete(ctx context.Context, id any) (bool, error) {
	n, err := r.markDeleted(ctx, r.idFilter(id))
	return n > 0, err
}

func (r *mongoRepository) SoftDeleteMany(ctx context.Context, filter types.Filter) (int64, error) {
	return r.markDeleted(ctx, filter)
}

func (r *mongoRepository) restoreFilter(filter types.Filter) types.Filter {
	f := filter.Clone()
	f[r.opts.SoftDeleteFieldOr()] = types.Ops{types.OpIsNull: false}
	return f
}

func (r *mongoRepository) Restore(ctx context.Context, id any) (bool, error) {
	if err := r.requireSoftDelete(); err != nil {
		return false, err
	}
	set := types.Entity{r.opts.SoftDeleteFieldOr(): nil}
	n, err := r.execUpdateMany(ctx, r.restoreFilter(r.idFilter(id)), set, true)
	return n > 0, err
}

func (r *mongoRepository) RestoreMany(ctx context.Context, filter types.Filter) (int64, error) {
	if err := r.requireSoftDelete(); err != nil {
		return 0, err
	}
	set := types.Entity{r.opts.SoftDeleteFieldOr(): nil}
	return r.execUpdateMany(ctx, r.restoreFilter(filter), set, true)
}

func (r *mongoRepository) FindWithDeleted(ctx context.Context, filter types.Filter) ([]types.Entity, error) {
	q, err := r.query(filter, true)
	if err != nil {
		return nil, err
	}
	return r.findDocs(ctx, q, options.Find())
}
