package fb

import (
	"regexp"
	"strings"
)

// Column describes a table column as recorded in the system tables.
type Column struct {
	Name       string
	Domain     string // empty for implicit RDB$ domains
	SQLType    string
	SQLSubtype int16
	Length     int
	Precision  int
	Scale      int
	Default    string
	Nullable   bool
}

// Index describes a user table index.
type Index struct {
	Table      string
	Name       string
	Unique     bool
	Descending bool
	Columns    []string
}

// blrTypes maps RDB$FIELDS.RDB$FIELD_TYPE codes to wire types.
var blrTypes = map[int64]int16{
	7:   SQL_SHORT,
	8:   SQL_LONG,
	9:   SQL_QUAD,
	10:  SQL_FLOAT,
	11:  SQL_D_FLOAT,
	12:  SQL_TYPE_DATE,
	13:  SQL_TYPE_TIME,
	14:  SQL_TEXT,
	16:  SQL_INT64,
	23:  SQL_BOOLEAN,
	26:  SQL_INT128,
	27:  SQL_DOUBLE,
	35:  SQL_TIMESTAMP,
	37:  SQL_VARYING,
	261: SQL_BLOB,
}

var reDefault = regexp.MustCompile(`(?i)^\s*DEFAULT\s+`)

const (
	sqlTableNames = "SELECT RDB$RELATION_NAME FROM RDB$RELATIONS " +
		"WHERE (RDB$SYSTEM_FLAG <> 1 OR RDB$SYSTEM_FLAG IS NULL) AND RDB$VIEW_BLR IS NULL " +
		"ORDER BY RDB$RELATION_NAME"
	sqlGeneratorNames = "SELECT RDB$GENERATOR_NAME FROM RDB$GENERATORS " +
		"WHERE (RDB$SYSTEM_FLAG IS NULL OR RDB$SYSTEM_FLAG <> 1) " +
		"ORDER BY RDB$GENERATOR_NAME"
	sqlViewNames = "SELECT RDB$RELATION_NAME FROM RDB$RELATIONS " +
		"WHERE (RDB$SYSTEM_FLAG <> 1 OR RDB$SYSTEM_FLAG IS NULL) AND NOT RDB$VIEW_BLR IS NULL AND RDB$FLAGS = 1 " +
		"ORDER BY RDB$RELATION_ID"
	sqlRoleNames      = "SELECT RDB$ROLE_NAME FROM RDB$ROLES WHERE RDB$SYSTEM_FLAG = 0 ORDER BY RDB$ROLE_NAME"
	sqlProcedureNames = "SELECT RDB$PROCEDURE_NAME FROM RDB$PROCEDURES " +
		"ORDER BY RDB$PROCEDURE_NAME"
	sqlTriggerNames = "SELECT RDB$TRIGGER_NAME FROM RDB$TRIGGERS " +
		"ORDER BY RDB$TRIGGER_NAME"
	sqlColumns = "SELECT r.RDB$FIELD_NAME, r.RDB$FIELD_SOURCE, f.RDB$FIELD_TYPE, f.RDB$FIELD_SUB_TYPE, " +
		"f.RDB$FIELD_LENGTH, f.RDB$FIELD_PRECISION, f.RDB$FIELD_SCALE, " +
		"COALESCE(r.RDB$DEFAULT_SOURCE, f.RDB$DEFAULT_SOURCE), " +
		"COALESCE(r.RDB$NULL_FLAG, f.RDB$NULL_FLAG) " +
		"FROM RDB$RELATION_FIELDS r " +
		"JOIN RDB$FIELDS f ON r.RDB$FIELD_SOURCE = f.RDB$FIELD_NAME " +
		"WHERE UPPER(r.RDB$RELATION_NAME) = ? " +
		"ORDER BY r.RDB$FIELD_POSITION"
	sqlIndexes = "SELECT i.RDB$RELATION_NAME, i.RDB$INDEX_NAME, i.RDB$UNIQUE_FLAG, i.RDB$INDEX_TYPE " +
		"FROM RDB$INDICES i " +
		"JOIN RDB$RELATIONS r ON i.RDB$RELATION_NAME = r.RDB$RELATION_NAME " +
		"WHERE (r.RDB$SYSTEM_FLAG <> 1 OR r.RDB$SYSTEM_FLAG IS NULL)"
	sqlIndexColumns = "SELECT RDB$FIELD_NAME FROM RDB$INDEX_SEGMENTS " +
		"WHERE RDB$INDEX_NAME = ? " +
		"ORDER BY RDB$FIELD_POSITION"
)

// TableNames lists user tables.
func (c *Connection) TableNames() ([]string, error) {
	return c.names(sqlTableNames)
}

// GeneratorNames lists user generators (sequences).
func (c *Connection) GeneratorNames() ([]string, error) {
	return c.names(sqlGeneratorNames)
}

// ViewNames lists user views.
func (c *Connection) ViewNames() ([]string, error) {
	return c.names(sqlViewNames)
}

// RoleNames lists user roles.
func (c *Connection) RoleNames() ([]string, error) {
	return c.names(sqlRoleNames)
}

// ProcedureNames lists stored procedures.
func (c *Connection) ProcedureNames() ([]string, error) {
	return c.names(sqlProcedureNames)
}

// TriggerNames lists triggers.
func (c *Connection) TriggerNames() ([]string, error) {
	return c.names(sqlTriggerNames)
}

// Columns describes the columns of table in declaration order.
func (c *Connection) Columns(table string) ([]Column, error) {
	rows, err := c.Query(sqlColumns, strings.ToUpper(table))
	if err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(rows))
	for _, r := range rows {
		domain := trimName(asString(r[1]))
		if strings.HasPrefix(domain, "RDB$") {
			domain = ""
		}
		subtype := int16(asInt(r[3]))
		code := blrTypes[asInt(r[2])]
		cols = append(cols, Column{
			Name:       c.schemaName(asString(r[0])),
			Domain:     domain,
			SQLType:    sqlTypeName(code, subtype),
			SQLSubtype: subtype,
			Length:     int(asInt(r[4])),
			Precision:  int(asInt(r[5])),
			Scale:      int(asInt(r[6])),
			Default:    reDefault.ReplaceAllString(asString(r[7]), ""),
			Nullable:   asInt(r[8]) == 0,
		})
	}
	return cols, nil
}

// Indexes describes the indexes of user tables keyed by index name.
func (c *Connection) Indexes() (map[string]Index, error) {
	rows, err := c.Query(sqlIndexes)
	if err != nil {
		return nil, err
	}
	indexes := make(map[string]Index, len(rows))
	for _, r := range rows {
		rawName := trimName(asString(r[1]))
		colRows, err := c.Query(sqlIndexColumns, rawName)
		if err != nil {
			return nil, err
		}
		columns := make([]string, 0, len(colRows))
		for _, cr := range colRows {
			columns = append(columns, c.schemaName(asString(cr[0])))
		}
		idx := Index{
			Table:      c.schemaName(asString(r[0])),
			Name:       c.schemaName(rawName),
			Unique:     asInt(r[2]) == 1,
			Descending: asInt(r[3]) == 1,
			Columns:    columns,
		}
		indexes[idx.Name] = idx
	}
	return indexes, nil
}

// names runs a single-column name query.
func (c *Connection) names(sql string) ([]string, error) {
	rows, err := c.Query(sql)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, c.schemaName(asString(r[0])))
	}
	return names, nil
}

// schemaName strips the CHAR padding of a system-table name and applies
// DowncaseNames.
func (c *Connection) schemaName(s string) string {
	s = trimName(s)
	if c.downcaseNames && hasNoLowercase(s) {
		s = strings.ToLower(s)
	}
	return s
}

func trimName(s string) string {
	return strings.TrimRight(s, " ")
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return ""
	}
}

func asInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case bool:
		if x {
			return 1
		}
	}
	return 0
}
