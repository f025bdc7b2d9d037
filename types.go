package fb

import (
	"unsafe"
)

// Firebird client handle types (FB_API_HANDLE is an unsigned int)
type DBHandle uint32
type TrHandle uint32
type StmtHandle uint32
type BlobHandle uint32

// ISCStatus mirrors ISC_STATUS, which is intptr_t wide on every platform.
type ISCStatus int

// StatusVector is the fixed-size status array every client call reports through.
type StatusVector [20]ISCStatus

// Quad is the 8-byte ISC_QUAD used for blob identifiers.
type Quad struct {
	High int32
	Low  uint32
}

// Descriptor version passed to the DSQL calls
const SQLDA_VERSION1 = 1

// Wire type codes. The low bit of sqltype is the nullability flag.
const (
	SQL_TEXT      int16 = 452
	SQL_VARYING   int16 = 448
	SQL_SHORT     int16 = 500
	SQL_LONG      int16 = 496
	SQL_FLOAT     int16 = 482
	SQL_DOUBLE    int16 = 480
	SQL_D_FLOAT   int16 = 530
	SQL_TIMESTAMP int16 = 510
	SQL_BLOB      int16 = 520
	SQL_ARRAY     int16 = 540
	SQL_QUAD      int16 = 550
	SQL_TYPE_TIME int16 = 560
	SQL_TYPE_DATE int16 = 570
	SQL_INT64     int16 = 580
	SQL_INT128    int16 = 32752
	SQL_BOOLEAN   int16 = 32764
	SQL_NULL      int16 = 32766
)

// Statement free options
const (
	DSQL_close     uint16 = 1
	DSQL_drop      uint16 = 2
	DSQL_unprepare uint16 = 4
)

// Status codes returned by the client library
const (
	iscSegment      ISCStatus = 335544366
	iscSegstrEOF    ISCStatus = 335544367
	iscLockConflict ISCStatus = 335544345
	iscDeadlock     ISCStatus = 335544336
	iscShutdown     ISCStatus = 335544528
	iscNetworkError ISCStatus = 335544721
	iscNetReadErr   ISCStatus = 335544726
	iscNetWriteErr  ISCStatus = 335544727
	fetchNoMoreRows ISCStatus = 100
)

// Information items
const (
	isc_info_end               = 1
	isc_info_truncated         = 2
	isc_info_error             = 3
	isc_info_db_sql_dialect    = 62
	isc_info_blob_total_length = 6

	isc_info_sql_stmt_type = 21
	isc_info_sql_records   = 23

	isc_info_req_select_count = 13
	isc_info_req_insert_count = 14
	isc_info_req_update_count = 15
	isc_info_req_delete_count = 16
)

// StatementType is the statement kind reported by isc_info_sql_stmt_type.
type StatementType int

const (
	StmtUnknown     StatementType = 0
	StmtSelect      StatementType = 1
	StmtInsert      StatementType = 2
	StmtUpdate      StatementType = 3
	StmtDelete      StatementType = 4
	StmtDDL         StatementType = 5
	StmtGetSegment  StatementType = 6
	StmtPutSegment  StatementType = 7
	StmtExecProc    StatementType = 8
	StmtStartTrans  StatementType = 9
	StmtCommit      StatementType = 10
	StmtRollback    StatementType = 11
	StmtSelectForUp StatementType = 12
	StmtSetGen      StatementType = 13
	StmtSavepoint   StatementType = 14
)

// String returns the statement kind name
func (t StatementType) String() string {
	switch t {
	case StmtSelect:
		return "SELECT"
	case StmtInsert:
		return "INSERT"
	case StmtUpdate:
		return "UPDATE"
	case StmtDelete:
		return "DELETE"
	case StmtDDL:
		return "DDL"
	case StmtGetSegment:
		return "GET SEGMENT"
	case StmtPutSegment:
		return "PUT SEGMENT"
	case StmtExecProc:
		return "EXECUTE PROCEDURE"
	case StmtStartTrans:
		return "START TRANSACTION"
	case StmtCommit:
		return "COMMIT"
	case StmtRollback:
		return "ROLLBACK"
	case StmtSelectForUp:
		return "SELECT FOR UPDATE"
	case StmtSetGen:
		return "SET GENERATOR"
	case StmtSavepoint:
		return "SAVEPOINT"
	default:
		return "UNKNOWN"
	}
}

// isDML reports whether the kind carries rows-affected counters.
func (t StatementType) isDML() bool {
	return t == StmtInsert || t == StmtUpdate || t == StmtDelete
}

// isTransactionControl reports whether the kind must go through the transaction API.
func (t StatementType) isTransactionControl() bool {
	return t == StmtStartTrans || t == StmtCommit || t == StmtRollback
}

// Database parameter block items
const (
	isc_dpb_version1      = 1
	isc_dpb_user_name     = 28
	isc_dpb_password      = 29
	isc_dpb_lc_ctype      = 48
	isc_dpb_sql_role_name = 60
	isc_dpb_sql_dialect   = 63
)

// Transaction parameter block items
const (
	isc_tpb_version1       = 1
	isc_tpb_consistency    = 1
	isc_tpb_concurrency    = 2
	isc_tpb_shared         = 3
	isc_tpb_protected      = 4
	isc_tpb_wait           = 6
	isc_tpb_nowait         = 7
	isc_tpb_read           = 8
	isc_tpb_write          = 9
	isc_tpb_lock_read      = 10
	isc_tpb_lock_write     = 11
	isc_tpb_read_committed = 15
	isc_tpb_rec_version    = 17
	isc_tpb_no_rec_version = 18
)

// =============================================================================
// XSQLDA / XSQLVAR
// =============================================================================

// XSQLVAR mirrors the C XSQLVAR layout (160 bytes on 64-bit platforms).
// sqldata and sqlind point into buffers owned by the Cursor.
type XSQLVAR struct {
	SQLType         int16
	SQLScale        int16
	SQLSubtype      int16
	SQLLen          int16
	sqldata         uintptr
	sqlind          uintptr
	sqlnameLength   int16
	sqlname         [32]byte
	relnameLength   int16
	relname         [32]byte
	ownnameLength   int16
	ownname         [32]byte
	aliasnameLength int16
	aliasname       [32]byte
}

// BaseType returns the wire type with the nullability bit masked off.
func (v *XSQLVAR) BaseType() int16 {
	return v.SQLType &^ 1
}

// Nullable reports whether the column accepts NULL.
func (v *XSQLVAR) Nullable() bool {
	return v.SQLType&1 != 0
}

// Name returns the column name as described by the server.
func (v *XSQLVAR) Name() string {
	return string(v.sqlname[:clampName(v.sqlnameLength)])
}

// Alias returns the column alias as described by the server.
func (v *XSQLVAR) Alias() string {
	return string(v.aliasname[:clampName(v.aliasnameLength)])
}

// Relation returns the table the column belongs to, if any.
func (v *XSQLVAR) Relation() string {
	return string(v.relname[:clampName(v.relnameLength)])
}

// SetName fills the column and alias names; used when building descriptors by hand.
func (v *XSQLVAR) SetName(name, alias string) {
	v.sqlnameLength = int16(copy(v.sqlname[:], name))
	v.aliasnameLength = int16(copy(v.aliasname[:], alias))
}

func clampName(n int16) int {
	if n < 0 {
		return 0
	}
	if n > 32 {
		return 32
	}
	return int(n)
}

// data returns n bytes at the wired data pointer, or nil when unwired.
func (v *XSQLVAR) data(n int) []byte {
	if v.sqldata == 0 || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v.sqldata)), n)
}

// indicator returns the wired null indicator, or nil when unwired.
func (v *XSQLVAR) indicator() *int16 {
	if v.sqlind == 0 {
		return nil
	}
	return (*int16)(unsafe.Pointer(v.sqlind))
}

// sqldaHeader mirrors the fixed part of the C XSQLDA.
type sqldaHeader struct {
	version int16
	sqldaid [8]byte
	sqldabc int32
	sqln    int16
	sqld    int16
}

// The sqlvar array starts at the header size rounded up to XSQLVAR alignment.
const (
	xsqlvarSize     = int(unsafe.Sizeof(XSQLVAR{}))
	xsqlvarAlign    = int(unsafe.Alignof(XSQLVAR{}))
	sqldaHeaderSize = (int(unsafe.Sizeof(sqldaHeader{})) + xsqlvarAlign - 1) &^ (xsqlvarAlign - 1)
)
