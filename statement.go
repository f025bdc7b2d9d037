package fb

import (
	"strings"
)

var (
	stmtTypeItems    = []byte{isc_info_sql_stmt_type}
	stmtRecordsItems = []byte{isc_info_sql_records}
)

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

// hasReturning reports whether sql contains RETURNING as a standalone word.
func hasReturning(sql string) bool {
	const kw = "returning"
	lower := strings.ToLower(sql)
	for from := 0; ; {
		i := strings.Index(lower[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		before := start == 0 || !isIdentChar(lower[start-1])
		after := end == len(lower) || !isIdentChar(lower[end])
		if before && after {
			return true
		}
		from = start + 1
	}
}

// leadingKind classifies sql by its first keyword, for statements the server
// reports as something other than INSERT, UPDATE or DELETE.
func leadingKind(sql string) StatementType {
	s := strings.TrimLeft(sql, " \t\r\n\f\v")
	end := 0
	for end < len(s) && isIdentChar(s[end]) {
		end++
	}
	switch strings.ToUpper(s[:end]) {
	case "INSERT":
		return StmtInsert
	case "UPDATE":
		return StmtUpdate
	case "DELETE":
		return StmtDelete
	default:
		return StmtUnknown
	}
}

// requestCounts holds the per-statement counters of isc_info_sql_records.
type requestCounts struct {
	selects, inserts, updates, deletes int64
}

// parseRecordCounts reads the counters block. The outer clumplet header
// (isc_info_sql_records plus its 2-byte length) is skipped.
func parseRecordCounts(buf []byte) requestCounts {
	var rc requestCounts
	if len(buf) < 3 || buf[0] != isc_info_sql_records {
		return rc
	}
	for _, it := range parseInfo(buf[3:]) {
		n := vaxInteger(it.value)
		switch it.code {
		case isc_info_req_select_count:
			rc.selects = n
		case isc_info_req_insert_count:
			rc.inserts = n
		case isc_info_req_update_count:
			rc.updates = n
		case isc_info_req_delete_count:
			rc.deletes = n
		}
	}
	return rc
}

// affected picks the counter for a statement kind. Kinds without a counter
// of their own take the most specific non-zero one, delete first, since one
// logical DML with RETURNING may bump several counters.
func (rc requestCounts) affected(kind StatementType) int64 {
	switch kind {
	case StmtSelect:
		return rc.selects
	case StmtInsert:
		return rc.inserts
	case StmtUpdate:
		return rc.updates
	case StmtDelete:
		return rc.deletes
	}
	switch {
	case rc.deletes > 0:
		return rc.deletes
	case rc.updates > 0:
		return rc.updates
	case rc.inserts > 0:
		return rc.inserts
	default:
		return rc.selects
	}
}
