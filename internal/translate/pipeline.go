// Package translate rewrites PostgreSQL-dialect SQL into SQLite-executable
// SQL, one concern per pass (spec.md §4.6). CREATE TABLE translation parses
// with github.com/pganalyze/pg_query_go/v6, the same structural-SQL library
// xataio-pgroll's pkg/sql2pgroll uses to turn CREATE/ALTER statements into
// typed operations; every other pass (casts, datetime functions, JSON and
// regex operators, RETURNING, row_to_json) works directly on the query
// text, since a full parse-rewrite-deparse round trip for those would cost
// more than it buys.
package translate

import (
	"context"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
)

// Translator rewrites one SQL statement, given the session's shadow
// catalog for type lookups. Translators that don't touch DDL leave the
// catalog alone; CreateTableTranslator is the only writer.
type Translator interface {
	// Translate returns the rewritten SQL, or sql unchanged with changed=false
	// if this translator found nothing to do (the pipeline then keeps its
	// current text and goes on to the next pass).
	Translate(ctx context.Context, sql string, reg *catalog.Registry) (out string, changed bool, err error)
}

// Pipeline runs every translator in a fixed, dependency-respecting order:
// DDL first, then the expression-level passes, then the row-shaping passes
// that depend on DDL-declared types. Catalog interception is not a stage;
// internal/query runs it before calling Run.
type Pipeline struct {
	stages    []Translator
	returning *ReturningTranslator
}

func NewPipeline(reg *catalog.Registry) *Pipeline {
	returning := &ReturningTranslator{}
	return &Pipeline{
		returning: returning,
		stages: []Translator{
			&CreateTableTranslator{Reg: reg},
			&CastTranslator{},
			&DatetimeTranslator{},
			&NumericFormatTranslator{Reg: reg},
			&ArrayTranslator{},
			&JSONTranslator{},
			&RegexTranslator{},
			&RowToJSONTranslator{Reg: reg},
			returning,
			&BatchInsertTranslator{},
		},
	}
}

// Returning reports the RETURNING clause stripped by the most recent Run,
// if any, so the executor can recover the affected row(s) afterward. where
// is the original UPDATE/DELETE predicate (empty for INSERT or an
// unconditional UPDATE/DELETE).
func (p *Pipeline) Returning() (columns []string, star bool, where string, had bool) {
	if p.returning == nil {
		return nil, false, "", false
	}
	return p.returning.LastColumns, p.returning.LastStar, p.returning.LastWhere, p.returning.LastStar || len(p.returning.LastColumns) > 0
}

// Run applies every stage in order, threading the output of one into the
// input of the next.
func (p *Pipeline) Run(ctx context.Context, sql string, reg *catalog.Registry) (string, error) {
	cur := sql
	for _, stage := range p.stages {
		out, changed, err := stage.Translate(ctx, cur, reg)
		if err != nil {
			return "", err
		}
		if changed {
			cur = out
		}
	}
	return cur, nil
}
