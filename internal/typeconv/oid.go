// Package typeconv implements the value coders of spec.md §4.2: one coder
// per PostgreSQL type, each converting between wire text, wire binary, and
// SQLite storage representation. OID constants are pulled from
// github.com/jackc/pgx/v5/pgtype where that package defines them (the same
// constants kqlite uses to build RowDescription/DataRow messages) and
// supplemented locally for types pgtype does not export a constant for.
package typeconv

import "github.com/jackc/pgx/v5/pgtype"

// OID constants: pgtype's named OIDs, plus locally defined values (the
// uint32 entries) for types pgtype does not name.
const (
	OIDBool          = pgtype.BoolOID
	OIDInt2          = pgtype.Int2OID
	OIDInt4          = pgtype.Int4OID
	OIDInt8          = pgtype.Int8OID
	OIDFloat4        = pgtype.Float4OID
	OIDFloat8        = pgtype.Float8OID
	OIDNumeric       = pgtype.NumericOID
	OIDText          = pgtype.TextOID
	OIDVarchar       = pgtype.VarcharOID
	OIDBPChar        = pgtype.BPCharOID
	OIDBytea         = pgtype.ByteaOID
	OIDUUID          = pgtype.UUIDOID
	OIDDate          = pgtype.DateOID
	OIDTime          = pgtype.TimeOID
	OIDTimeTZ        uint32 = 1266
	OIDTimestamp     = pgtype.TimestampOID
	OIDTimestampTZ   = pgtype.TimestamptzOID
	OIDInterval      = pgtype.IntervalOID
	OIDJSON          = pgtype.JSONOID
	OIDJSONB         = pgtype.JSONBOID
	OIDInet          = pgtype.InetOID
	OIDCIDR          = pgtype.CIDROID
	OIDMacaddr       uint32 = 829
	OIDMacaddr8      uint32 = 774
	OIDMoney         uint32 = 790
	OIDInt4Range     = pgtype.Int4rangeOID
	OIDInt8Range     = pgtype.Int8rangeOID
	OIDNumRange      = pgtype.NumrangeOID
	OIDInt4Array     = pgtype.Int4ArrayOID
	OIDTextArray     = pgtype.TextArrayOID
	OIDRegclass      uint32 = 2205
)

// FixedSize gives the wire DataTypeSize RowDescription reports for
// fixed-width types; everything else reports -1 (variable length).
var FixedSize = map[uint32]int16{
	OIDBool:        1,
	OIDInt2:        2,
	OIDInt4:        4,
	OIDInt8:        8,
	OIDFloat4:      4,
	OIDFloat8:      8,
	OIDDate:        4,
	OIDTime:        8,
	OIDTimeTZ:      12,
	OIDTimestamp:   8,
	OIDTimestampTZ: 8,
	OIDInterval:    16,
	OIDUUID:        16,
}

// TypeInfo describes a built-in PG type's wire/storage mapping.
type TypeInfo struct {
	Name          string
	OID           uint32
	SQLiteStorage string // INTEGER|REAL|TEXT|BLOB
	IsArrayElem   bool
}

// BuiltinTypes maps lowercased PG type name to its TypeInfo. Enum types are
// dynamic and live in the catalog package instead.
var BuiltinTypes = map[string]TypeInfo{
	"bool":            {"bool", OIDBool, "INTEGER", false},
	"boolean":         {"bool", OIDBool, "INTEGER", false},
	"int2":            {"int2", OIDInt2, "INTEGER", false},
	"smallint":        {"int2", OIDInt2, "INTEGER", false},
	"int4":            {"int4", OIDInt4, "INTEGER", false},
	"integer":         {"int4", OIDInt4, "INTEGER", false},
	"int":             {"int4", OIDInt4, "INTEGER", false},
	"serial":          {"int4", OIDInt4, "INTEGER", false},
	"int8":            {"int8", OIDInt8, "INTEGER", false},
	"bigint":          {"int8", OIDInt8, "INTEGER", false},
	"bigserial":       {"int8", OIDInt8, "INTEGER", false},
	"float4":          {"float4", OIDFloat4, "REAL", false},
	"real":            {"float4", OIDFloat4, "REAL", false},
	"float8":          {"float8", OIDFloat8, "REAL", false},
	"double precision": {"float8", OIDFloat8, "REAL", false},
	"numeric":         {"numeric", OIDNumeric, "TEXT", false},
	"decimal":         {"numeric", OIDNumeric, "TEXT", false},
	"text":            {"text", OIDText, "TEXT", false},
	"varchar":         {"varchar", OIDVarchar, "TEXT", false},
	"character varying": {"varchar", OIDVarchar, "TEXT", false},
	"char":            {"bpchar", OIDBPChar, "TEXT", false},
	"character":       {"bpchar", OIDBPChar, "TEXT", false},
	"bytea":           {"bytea", OIDBytea, "BLOB", false},
	"uuid":            {"uuid", OIDUUID, "TEXT", false},
	"date":            {"date", OIDDate, "INTEGER", false},
	"time":            {"time", OIDTime, "INTEGER", false},
	"timetz":          {"timetz", OIDTimeTZ, "INTEGER", false},
	"timestamp":       {"timestamp", OIDTimestamp, "INTEGER", false},
	"timestamptz":     {"timestamptz", OIDTimestampTZ, "INTEGER", false},
	"interval":        {"interval", OIDInterval, "INTEGER", false},
	"json":            {"json", OIDJSON, "TEXT", false},
	"jsonb":           {"jsonb", OIDJSONB, "TEXT", false},
	"inet":            {"inet", OIDInet, "TEXT", false},
	"cidr":            {"cidr", OIDCIDR, "TEXT", false},
	"macaddr":         {"macaddr", OIDMacaddr, "TEXT", false},
	"macaddr8":        {"macaddr8", OIDMacaddr8, "TEXT", false},
	"money":           {"money", OIDMoney, "TEXT", false},
	"int4range":       {"int4range", OIDInt4Range, "TEXT", false},
	"int8range":       {"int8range", OIDInt8Range, "TEXT", false},
	"numrange":        {"numrange", OIDNumRange, "TEXT", false},
}

// NameByOID is the reverse index of BuiltinTypes, used by RowDescription
// synthesis and format_type().
var NameByOID = func() map[uint32]string {
	m := make(map[uint32]string, len(BuiltinTypes))
	for _, t := range BuiltinTypes {
		m[t.OID] = t.Name
	}
	return m
}()
