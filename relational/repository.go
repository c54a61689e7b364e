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

package relational

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"golang.org/x/sync/errgroup"

	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

// DefaultPrimaryKey is the identifier column used when Options.PrimaryKey is
// empty.
const DefaultPrimaryKey = "id"

// sqlRepository implements repository.Repository against one table through
// a bun.IDB, which is either the adapter's *bun.DB or an open bun.Tx. The
// repository itself is stateless beyond its binding.
type sqlRepository struct {
	db       bun.IDB
	features feature.Feature
	opts     repository.Options
	tr       *translator
	logger   repository.Logger
	inTx     bool
}

func newRepository(db bun.IDB, features feature.Feature, opts repository.Options, logger repository.Logger, inTx bool) (*sqlRepository, error) {
	if opts.Table == "" {
		return nil, types.NewValidationError("table", "table name is required for a relational repository")
	}
	r := &sqlRepository{
		db:       db,
		features: features,
		opts:     opts,
		logger:   logger,
		inTx:     inTx,
	}
	r.tr = newTranslator(opts.Columns,
		r.pk(), opts.CreatedAtOr(), opts.UpdatedAtOr(), opts.SoftDeleteFieldOr())
	return r, nil
}

func (r *sqlRepository) pk() string { return r.opts.PrimaryKeyOr(DefaultPrimaryKey) }

func (r *sqlRepository) hasReturning() bool {
	return r.features.Has(feature.Returning) || r.features.Has(feature.InsertReturning)
}

// selectBase builds a SELECT with the effective filter already applied.
func (r *sqlRepository) selectBase(filter types.Filter, withDeleted bool) (*bun.SelectQuery, error) {
	clauses, err := r.tr.Translate(r.opts.EffectiveFilter(filter, withDeleted))
	if err != nil {
		return nil, err
	}
	q := r.db.NewSelect().Table(r.opts.Table)
	for _, c := range clauses {
		q = q.Where(c.expr, c.args...)
	}
	return q, nil
}

func (r *sqlRepository) applySort(q *bun.SelectQuery, rules []types.Sort) (*bun.SelectQuery, error) {
	if err := r.tr.CheckSort(rules); err != nil {
		return nil, err
	}
	for _, s := range rules {
		if s.Desc {
			q = q.OrderExpr("? DESC", bun.Ident(s.Field))
		} else {
			q = q.OrderExpr("? ASC", bun.Ident(s.Field))
		}
	}
	return q, nil
}

func (r *sqlRepository) Create(ctx context.Context, data types.Entity) (types.Entity, error) {
	row := repository.CloneEntity(data)
	if h := r.opts.Hooks.BeforeCreate; h != nil {
		replaced, err := h(ctx, row)
		if err != nil {
			return nil, err
		}
		row = replaced
	}
	if r.opts.Timestamps {
		now := time.Now().UTC()
		row[r.opts.CreatedAtOr()] = now
		row[r.opts.UpdatedAtOr()] = now
	}

	created, err := r.insertRow(ctx, row)
	if err != nil {
		return nil, err
	}
	if h := r.opts.Hooks.AfterCreate; h != nil {
		if err := h(ctx, created); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (r *sqlRepository) insertRow(ctx context.Context, row types.Entity) (types.Entity, error) {
	m := map[string]interface{}(row)
	q := r.db.NewInsert().Model(&m).Table(r.opts.Table)

	if r.hasReturning() {
		returned := types.Entity{}
		if _, err := q.Returning("*").Exec(ctx, &returned); err != nil {
			return nil, err
		}
		return returned, nil
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	created := repository.CloneEntity(row)
	if _, hasID := created[r.pk()]; !hasID {
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			created[r.pk()] = id
			if fetched, err := r.FindByID(ctx, id); err == nil && fetched != nil {
				return fetched, nil
			}
		}
	}
	return created, nil
}

func (r *sqlRepository) FindByID(ctx context.Context, id any) (types.Entity, error) {
	return r.FindOne(ctx, types.Filter{r.pk(): id})
}

func (r *sqlRepository) FindOne(ctx context.Context, filter types.Filter) (types.Entity, error) {
	q, err := r.selectBase(filter, false)
	if err != nil {
		return nil, err
	}
	var rows []types.Entity
	if err := q.Limit(1).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *sqlRepository) FindAll(ctx context.Context, filter types.Filter, sortRules ...types.Sort) ([]types.Entity, error) {
	q, err := r.selectBase(filter, false)
	if err != nil {
		return nil, err
	}
	if q, err = r.applySort(q, sortRules); err != nil {
		return nil, err
	}
	rows := make([]types.Entity, 0)
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sqlRepository) FindPage(ctx context.Context, req types.PageRequest) (*types.PageResult, error) {
	page, limit := req.GetPage(), req.GetLimit()

	countQ, err := r.selectBase(req.Filter, false)
	if err != nil {
		return nil, err
	}
	dataQ, err := r.selectBase(req.Filter, false)
	if err != nil {
		return nil, err
	}
	if dataQ, err = r.applySort(dataQ, req.Sort); err != nil {
		return nil, err
	}
	dataQ = dataQ.Offset(req.GetOffset()).Limit(limit)

	var total int
	rows := make([]types.Entity, 0, limit)

	if r.inTx {
		// A transaction handle is a single conversation; the count and the
		// window run sequentially on it.
		if total, err = countQ.Count(ctx); err != nil {
			return nil, err
		}
		if err = dataQ.Scan(ctx, &rows); err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			total, err = countQ.Count(gctx)
			return err
		})
		g.Go(func() error {
			return dataQ.Scan(gctx, &rows)
		})
		if err = g.Wait(); err != nil {
			return nil, err
		}
	}
	return types.NewPageResult(rows, page, limit, int64(total)), nil
}

func (r *sqlRepository) UpdateByID(ctx context.Context, id any, update types.Entity) (types.Entity, error) {
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

	n, err := r.execUpdate(ctx, types.Filter{r.pk(): id}, set, false)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h := r.opts.Hooks.AfterUpdate; h != nil && updated != nil {
		if err := h(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// execUpdate applies a SET map under the effective filter and returns the
// affected-row count. Update columns are held to the same whitelist as
// filters and projections.
func (r *sqlRepository) execUpdate(ctx context.Context, filter types.Filter, set types.Entity, withDeleted bool) (int64, error) {
	if len(set) == 0 {
		return 0, types.NewValidationError("", "update payload cannot be empty")
	}
	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := r.tr.CheckColumns(cols); err != nil {
		return 0, err
	}
	clauses, err := r.tr.Translate(r.opts.EffectiveFilter(filter, withDeleted))
	if err != nil {
		return 0, err
	}

	q := r.db.NewUpdate().Table(r.opts.Table)
	for _, c := range cols {
		if set[c] == nil {
			q = q.Set("? = NULL", bun.Ident(c))
			continue
		}
		q = q.Set("? = ?", bun.Ident(c), set[c])
	}
	for _, c := range clauses {
		q = q.Where(c.expr, c.args...)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sqlRepository) DeleteByID(ctx context.Context, id any) (bool, error) {
	if h := r.opts.Hooks.BeforeDelete; h != nil {
		if err := h(ctx, id); err != nil {
			return false, err
		}
	}

	var n int64
	var err error
	if r.opts.SoftDelete {
		n, err = r.markDeleted(ctx, types.Filter{r.pk(): id})
	} else {
		n, err = r.execDelete(ctx, types.Filter{r.pk(): id})
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

func (r *sqlRepository) execDelete(ctx context.Context, filter types.Filter) (int64, error) {
	clauses, err := r.tr.Translate(r.opts.EffectiveFilter(filter, false))
	if err != nil {
		return 0, err
	}
	q := r.db.NewDelete().Table(r.opts.Table)
	for _, c := range clauses {
		q = q.Where(c.expr, c.args...)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sqlRepository) Count(ctx context.Context, filter types.Filter) (int64, error) {
	q, err := r.selectBase(filter, false)
	if err != nil {
		return 0, err
	}
	n, err := q.Count(ctx)
	return int64(n), err
}

func (r *sqlRepository) Exists(ctx context.Context, filter types.Filter) (bool, error) {
	q, err := r.selectBase(filter, false)
	if err != nil {
		return false, err
	}
	return q.Exists(ctx)
}

func (r *sqlRepository) InsertMany(ctx context.Context, rows []types.Entity) ([]types.Entity, error) {
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

func (r *sqlRepository) UpdateMany(ctx context.Context, filter types.Filter, update types.Entity) (int64, error) {
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
	return r.execUpdate(ctx, filter, set, false)
}

func (r *sqlRepository) DeleteMany(ctx context.Context, filter types.Filter) (int64, error) {
	if r.opts.SoftDelete {
		return r.markDeleted(ctx, filter)
	}
	return r.execDelete(ctx, filter)
}

func (r *sqlRepository) Upsert(ctx context.Context, filter types.Filter, data types.Entity) (types.Entity, error) {
	existing, err := r.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		id, ok := existing[r.pk()]
		if !ok {
			return nil, fmt.Errorf("upsert: matched record has no %q column", r.pk())
		}
		return r.UpdateByID(ctx, id, data)
	}
	seed := repository.LiteralValues(filter)
	for k, v := range data {
		seed[k] = v
	}
	return r.Create(ctx, seed)
}

func (r *sqlRepository) Distinct(ctx context.Context, field string, filter types.Filter) ([]any, error) {
	if err := r.tr.CheckColumn(field); err != nil {
		return nil, err
	}
	clauses, err := r.tr.Translate(r.opts.EffectiveFilter(filter, false))
	if err != nil {
		return nil, err
	}
	q := r.db.NewSelect().Table(r.opts.Table).
		ColumnExpr("DISTINCT ? AS ?", bun.Ident(field), bun.Ident(field))
	for _, c := range clauses {
		q = q.Where(c.expr, c.args...)
	}
	var rows []types.Entity
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	vals := make([]any, 0, len(rows))
	for _, row := range rows {
		vals = append(vals, row[field])
	}
	return vals, nil
}

func (r *sqlRepository) Select(ctx context.Context, filter types.Filter, fields []string) ([]types.Entity, error) {
	if len(fields) == 0 {
		return nil, types.NewValidationError("", "select requires at least one field")
	}
	if err := r.tr.CheckColumns(fields); err != nil {
		return nil, err
	}
	q, err := r.selectBase(filter, false)
	if err != nil {
		return nil, err
	}
	q = q.Column(fields...)
	rows := make([]types.Entity, 0)
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sqlRepository) requireSoftDelete() error {
	if !r.opts.SoftDelete {
		return types.NewValidationError("", "soft delete is not enabled for this repository")
	}
	return nil
}

// markDeleted stamps live matches with the deletion time. The effective
// filter already excludes records that are marked.
func (r *sqlRepository) markDeleted(ctx context.Context, filter types.Filter) (int64, error) {
	if err := r.requireSoftDelete(); err != nil {
		return 0, err
	}
	set := types.Entity{r.opts.SoftDeleteFieldOr(): time.Now().UTC()}
	return r.execUpdate(ctx, filter, set, false)
}

func (r *sqlRepository) SoftDelete(ctx context.Context, id any) (bool, error) {
	n, err := r.markDeleted(ctx, types.Filter{r.pk(): id})
	return n > 0, err
}

func (r *sqlRepository) SoftDeleteMany(ctx context.Context, filter types.Filter) (int64, error) {
	return r.markDeleted(ctx, filter)
}

// restoreFilter targets only records that carry the deletion mark,
// regardless of the repository's guard filter.
func (r *sqlRepository) restoreFilter(filter types.Filter) types.Filter {
	f := filter.Clone()
	f[r.opts.SoftDeleteFieldOr()] = types.Ops{types.OpIsNull: false}
	return f
}

func (r *sqlRepository) Restore(ctx context.Context, id any) (bool, error) {
	if err := r.requireSoftDelete(); err != nil {
		return false, err
	}
	set := types.Entity{r.opts.SoftDeleteFieldOr(): nil}
	n, err := r.execUpdate(ctx, r.restoreFilter(types.Filter{r.pk(): id}), set, true)
	return n > 0, err
}

func (r *sqlRepository) RestoreMany(ctx context.Context, filter types.Filter) (int64, error) {
	if err := r.requireSoftDelete(); err != nil {
		return 0, err
	}
	set := types.Entity{r.opts.SoftDeleteFieldOr(): nil}
	return r.execUpdate(ctx, r.restoreFilter(filter), set, true)
}

func (r *sqlRepository) FindWithDeleted(ctx context.Context, filter types.Filter) ([]types.Entity, error) {
	q, err := r.selectBase(filter, true)
	if err != nil {
		return nil, err
	}
	rows := make([]types.Entity, 0)
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
