package typeconv

import "github.com/pgsqlite/pgsqlite/internal/pgerror"

// Coder implements the four operations spec.md §4.2 requires of every PG
// type: text/binary wire decode into SQLite storage form, and SQLite
// storage form encoded back out to text/binary wire form.
type Coder interface {
	TextToStorage(text []byte) (any, error)
	BinaryToStorage(bin []byte) (any, error)
	StorageToText(storage any) ([]byte, error)
	StorageToBinary(storage any) ([]byte, error)
}

// Registry resolves a Coder by OID. NewRegistry installs the built-in
// coders; enum and array coders exist for an OID only once RegisterEnum or
// RegisterArray adds them, since their shape depends on the schema.
type Registry struct {
	byOID map[uint32]Coder
}

func NewRegistry() *Registry {
	r := &Registry{byOID: make(map[uint32]Coder)}
	r.byOID[OIDBool] = boolCoder{}
	r.byOID[OIDInt2] = intCoder{bits: 16}
	r.byOID[OIDInt4] = intCoder{bits: 32}
	r.byOID[OIDInt8] = intCoder{bits: 64}
	r.byOID[OIDFloat4] = floatCoder{bits: 32}
	r.byOID[OIDFloat8] = floatCoder{bits: 64}
	r.byOID[OIDNumeric] = numericCoder{}
	r.byOID[OIDText] = textCoder{}
	r.byOID[OIDVarchar] = textCoder{}
	r.byOID[OIDBPChar] = textCoder{}
	r.byOID[OIDBytea] = byteaCoder{}
	r.byOID[OIDUUID] = uuidCoder{}
	r.byOID[OIDDate] = dateCoder{}
	r.byOID[OIDTime] = timeCoder{withZone: false}
	r.byOID[OIDTimeTZ] = timeCoder{withZone: true}
	r.byOID[OIDTimestamp] = timestampCoder{withZone: false}
	r.byOID[OIDTimestampTZ] = timestampCoder{withZone: true}
	r.byOID[OIDInterval] = intervalCoder{}
	r.byOID[OIDJSON] = jsonCoder{jsonb: false}
	r.byOID[OIDJSONB] = jsonCoder{jsonb: true}
	r.byOID[OIDInet] = inetCoder{cidr: false}
	r.byOID[OIDCIDR] = inetCoder{cidr: true}
	r.byOID[OIDMacaddr] = macaddrCoder{bytes: 6}
	r.byOID[OIDMacaddr8] = macaddrCoder{bytes: 8}
	r.byOID[OIDMoney] = moneyCoder{}
	r.byOID[OIDInt4Range] = rangeCoder{elemOID: OIDInt4}
	r.byOID[OIDInt8Range] = rangeCoder{elemOID: OIDInt8}
	r.byOID[OIDNumRange] = rangeCoder{elemOID: OIDNumeric}
	return r
}

func (r *Registry) Lookup(oid uint32) (Coder, bool) {
	c, ok := r.byOID[oid]
	return c, ok
}

// RegisterArray installs a coder for an array of elemOID under arrayOID
// (enum arrays and other dynamic element types resolve elemOID at DDL
// time via the catalog).
func (r *Registry) RegisterArray(arrayOID, elemOID uint32) {
	elem, ok := r.Lookup(elemOID)
	if !ok {
		elem = textCoder{}
	}
	r.byOID[arrayOID] = arrayCoder{elem: elem, elemOID: elemOID}
}

// RegisterEnum installs a label-keyed coder for a dynamic ENUM OID.
func (r *Registry) RegisterEnum(oid uint32, validLabels map[string]bool) {
	r.byOID[oid] = enumCoder{valid: validLabels}
}

var errUnsupportedBinary = pgerror.New(pgerror.InvalidTextRepresentation, "unsupported binary format for this type")
