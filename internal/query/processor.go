// Package query implements the unified query processor spec.md §4.5
// describes: every incoming statement first goes through the catalog
// interceptor and is then classified into one of three complexity tiers,
// so the common case (a plain SELECT or parameterized DML with nothing
// PG-specific in it) skips the translate pipeline, including the
// pg_query_go parse that DDL translation needs.
package query

import (
	"context"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/cache"
	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/translate"
)

type Tier int

const (
	// TierUltraFast: a byte scan found none of the PG-specific constructs
	// this package knows how to translate; the SQL is forwarded to SQLite
	// completely unmodified.
	TierUltraFast Tier = iota
	// TierFast: only a RETURNING clause was found; handled by stripping it
	// and re-selecting afterward, without a full AST parse.
	TierFast
	// TierFull: DDL, casts, JSON operators, array ANY(), row_to_json, or
	// regex operators were found; the full translate.Pipeline runs.
	TierFull
)

// Plan is the result of classifying and translating one statement.
type Plan struct {
	Tier          Tier
	SQL           string
	Catalog       *catalog.Result // non-nil if this was a catalog/information_schema query
	ReturningCols []string
	ReturningStar bool
	// ReturningWhere is the original UPDATE/DELETE WHERE predicate, carried
	// so the executor can recover the actually-affected rows instead of
	// last_insert_rowid() (which only ever reflects the most recent INSERT).
	ReturningWhere string
}

// Processor ties the catalog interceptor, the translate.Pipeline, and the
// plan cache together for one session's SQLite connection.
type Processor struct {
	catalogHandler *catalog.Handler
	reg            *catalog.Registry
	pipeline       *translate.Pipeline
	planCache      *cache.LRU
}

func NewProcessor(catalogHandler *catalog.Handler, reg *catalog.Registry, planCache *cache.LRU) *Processor {
	return &Processor{
		catalogHandler: catalogHandler,
		reg:            reg,
		pipeline:       translate.NewPipeline(reg),
		planCache:      planCache,
	}
}

// classify upper-cases sql once and checks it for the substrings that force
// TierFull (DDL, casts, JSON/array/regex operators, datetime and
// numeric_format calls); failing those, a RETURNING substring gives
// TierFast and anything else TierUltraFast.
func classify(sql string) Tier {
	upper := strings.ToUpper(sql)
	full := false
	switch {
	case strings.Contains(upper, "CREATE TABLE"),
		strings.Contains(upper, "CREATE TYPE"),
		strings.Contains(upper, "ALTER TABLE"),
		strings.Contains(upper, "DROP TABLE"),
		strings.Contains(sql, "::"),
		strings.Contains(sql, "->"),
		strings.Contains(upper, "ROW_TO_JSON"),
		strings.Contains(upper, " ANY("),
		strings.Contains(upper, "ON CONSTRAINT"),
		strings.Contains(sql, "~"),
		strings.Contains(upper, "NOW()"),
		strings.Contains(upper, "CURRENT_TIMESTAMP"),
		strings.Contains(upper, "CURRENT_DATE"),
		strings.Contains(upper, "CURRENT_TIME"),
		strings.Contains(upper, "NUMERIC_FORMAT("):
		full = true
	}
	if full {
		return TierFull
	}
	if strings.Contains(upper, "RETURNING") {
		return TierFast
	}
	return TierUltraFast
}

// Process classifies and, if needed, translates sql. A non-empty cacheKey
// (extended-query path, keyed on statement name since the same name can be
// re-described with different SQL only after a Parse, never silently)
// consults and populates the plan cache; an empty cacheKey (simple-query
// path) bypasses the cache.
func (p *Processor) Process(ctx context.Context, sql string, cacheKey string) (*Plan, error) {
	if p.planCache != nil && cacheKey != "" {
		if cached, ok := p.planCache.Get(cacheKey); ok {
			return cached.(*Plan), nil
		}
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(sql), " "))
	if p.catalogHandler != nil {
		if res, ok, err := p.catalogHandler.Intercept(ctx, normalized); err != nil {
			return nil, err
		} else if ok {
			plan := &Plan{Tier: TierUltraFast, SQL: sql, Catalog: res}
			p.cachePlan(cacheKey, plan)
			return plan, nil
		}
	}

	tier := classify(sql)
	if tier == TierUltraFast {
		plan := &Plan{Tier: tier, SQL: sql}
		p.cachePlan(cacheKey, plan)
		return plan, nil
	}

	translated, err := p.pipeline.Run(ctx, sql, p.reg)
	if err != nil {
		return nil, err
	}
	cols, star, where, _ := p.pipeline.Returning()
	plan := &Plan{Tier: tier, SQL: translated, ReturningCols: cols, ReturningStar: star, ReturningWhere: where}
	p.cachePlan(cacheKey, plan)
	return plan, nil
}

func (p *Processor) cachePlan(key string, plan *Plan) {
	if p.planCache != nil && key != "" {
		p.planCache.Put(key, plan)
	}
}

// InvalidateOnDDL clears the plan cache; the executor calls this after any
// statement classified TierFull that also matched a DDL keyword, since a
// cached TierUltraFast plan for an unrelated statement could reference a
// column that DDL just dropped or retyped.
func (p *Processor) InvalidateOnDDL() {
	if p.planCache != nil {
		p.planCache.Clear()
	}
}
