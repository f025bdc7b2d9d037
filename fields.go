package fb

import (
	"database/sql"
	"strings"
	"unicode"
)

// Field describes one result column.
type Field struct {
	Name         string
	SQLType      string
	SQLSubtype   int16
	DisplaySize  int
	InternalSize int
	Precision    sql.NullInt16
	Scale        int16
	Nullable     bool
	TypeCode     int16
}

// sqlTypeName returns the SQL name of a wire type. Integer types use the
// subtype to tell plain integers from NUMERIC (1) and DECIMAL (2).
func sqlTypeName(code, subtype int16) string {
	numeric := func(plain string) string {
		switch subtype {
		case 1:
			return "NUMERIC"
		case 2:
			return "DECIMAL"
		default:
			return plain
		}
	}
	switch code {
	case SQL_TEXT:
		return "CHAR"
	case SQL_VARYING:
		return "VARCHAR"
	case SQL_SHORT:
		return numeric("SMALLINT")
	case SQL_LONG:
		return numeric("INTEGER")
	case SQL_INT64:
		return numeric("BIGINT")
	case SQL_INT128:
		return numeric("INT128")
	case SQL_FLOAT:
		return "FLOAT"
	case SQL_DOUBLE:
		return numeric("DOUBLE PRECISION")
	case SQL_D_FLOAT:
		return "DOUBLE PRECISION"
	case SQL_TIMESTAMP:
		return "TIMESTAMP"
	case SQL_TYPE_DATE:
		return "DATE"
	case SQL_TYPE_TIME:
		return "TIME"
	case SQL_BLOB:
		if subtype == blobSubtypeText {
			return "BLOB SUB_TYPE TEXT"
		}
		return "BLOB"
	case SQL_ARRAY:
		return "ARRAY"
	case SQL_QUAD:
		return "DECIMAL"
	case SQL_BOOLEAN:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// precisionOf returns the precision of NUMERIC/DECIMAL columns, 0 for plain
// integers, and null for everything else.
func precisionOf(v *XSQLVAR) sql.NullInt16 {
	var p int16
	switch v.BaseType() {
	case SQL_SHORT:
		p = 4
	case SQL_LONG:
		p = 9
	case SQL_INT64:
		p = 18
	case SQL_INT128:
		p = 38
	case SQL_DOUBLE, SQL_D_FLOAT:
		if v.SQLSubtype == 0 {
			return sql.NullInt16{}
		}
		return sql.NullInt16{Int16: 15, Valid: true}
	default:
		return sql.NullInt16{}
	}
	if v.SQLSubtype == 0 {
		p = 0
	}
	return sql.NullInt16{Int16: p, Valid: true}
}

// hasNoLowercase reports whether s contains no lowercase letters.
func hasNoLowercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsLower) < 0
}

// fieldName is the alias if present, else the column name; with downcase set,
// all-uppercase names are lowercased.
func fieldName(v *XSQLVAR, downcase bool) string {
	name := v.Alias()
	if name == "" {
		name = v.Name()
	}
	if downcase && hasNoLowercase(name) {
		name = strings.ToLower(name)
	}
	return name
}

// describeFields builds field metadata for every described column.
func describeFields(vars []XSQLVAR, downcase bool) []Field {
	if len(vars) == 0 {
		return nil
	}
	fields := make([]Field, len(vars))
	for i := range vars {
		v := &vars[i]
		internal := int(v.SQLLen)
		if v.BaseType() == SQL_VARYING {
			internal += 2
		}
		fields[i] = Field{
			Name:         fieldName(v, downcase),
			SQLType:      sqlTypeName(v.BaseType(), v.SQLSubtype),
			SQLSubtype:   v.SQLSubtype,
			DisplaySize:  int(v.SQLLen),
			InternalSize: internal,
			Precision:    precisionOf(v),
			Scale:        v.SQLScale,
			Nullable:     v.Nullable(),
			TypeCode:     v.BaseType(),
		}
	}
	return fields
}

// fieldMap indexes fields by name.
func fieldMap(fields []Field) map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}
