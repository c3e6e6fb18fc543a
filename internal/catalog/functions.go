package catalog

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/pgsqlite/pgsqlite/internal/typeconv"
)

var registerOnce sync.Once
var registerErr error

// RegisterFunctions installs the small set of PG catalog/introspection
// scalar functions pgsqlite's translated queries call (format_type,
// pg_get_userbyid, pg_table_is_visible, current_database/_schema, ::regclass
// support via to_regclass) as process-wide SQLite scalar functions, using
// modernc.org/sqlite's Go-native function registration instead of a CGo
// extension module. Safe to call more than once; only the first call takes
// effect.
func RegisterFunctions() error {
	registerOnce.Do(func() {
		registerErr = registerAll()
	})
	return registerErr
}

func registerAll() error {
	fns := map[string]struct {
		nArgs int32
		fn    func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error)
	}{
		"format_type":           {2, formatType},
		"pg_get_userbyid":       {1, pgGetUserByID},
		"pg_table_is_visible":   {1, pgTableIsVisible},
		"pg_get_expr":           {2, pgGetExpr},
		"pg_get_constraintdef":  {1, pgGetConstraintDef},
		"pg_get_indexdef":       {1, pgGetIndexDef},
		"has_database_privilege": {3, hasPrivilege},
		"has_table_privilege":    {3, hasPrivilege},
		"current_database":      {0, currentDatabase},
		"current_schema":        {0, currentSchema},
		"to_regclass":           {1, toRegclass},
	}
	for name, spec := range fns {
		if err := sqlite.RegisterScalarFunction(name, spec.nArgs, spec.fn); err != nil {
			return fmt.Errorf("catalog: register %s: %w", name, err)
		}
	}
	return nil
}

func formatType(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) < 1 {
		return nil, nil
	}
	oid, _ := args[0].(int64)
	if name, ok := typeconv.NameByOID[uint32(oid)]; ok {
		return name, nil
	}
	return "unknown", nil
}

func pgGetUserByID(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return "pgsqlite", nil
}

func pgTableIsVisible(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return int64(1), nil
}

func pgGetExpr(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return "", nil
}

func pgGetConstraintDef(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return "", nil
}

func pgGetIndexDef(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return "", nil
}

func hasPrivilege(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return int64(1), nil
}

func currentDatabase(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return "main", nil
}

func currentSchema(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return "public", nil
}

func toRegclass(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) < 1 {
		return nil, nil
	}
	name, _ := args[0].(string)
	return strings.Trim(name, `"`), nil
}
