package fb

import (
	"encoding/binary"
	"testing"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// Scriptable client
// =============================================================================

// fakeColumn describes one parameter or result column of a scripted statement.
type fakeColumn struct {
	name    string
	sqltype int16 // low bit set for nullable
	scale   int16
	subtype int16
	length  int16
}

// fakeStatement is what the fake server answers for one SQL text.
type fakeStatement struct {
	kind    StatementType
	params  []fakeColumn
	columns []fakeColumn
	rows    [][]any       // SELECT rows, or the single row written by a RETURNING execute
	counts  requestCounts // reported after every execute
	execErr int64         // GDS code to fail execute2 with
}

type fakeStmtState struct {
	st   *fakeStatement
	pos  int
	open bool
}

type fakeExecution struct {
	sql    string
	tr     TrHandle
	params Row
}

type fakeBlobReader struct {
	id  Quad
	pos int
}

// fakeClient implements clientAPI in memory.
type fakeClient struct {
	t *testing.T

	statements map[string]*fakeStatement
	dialect    int64
	next       uint32

	attachErr int64
	dpb       []byte

	stmts  map[StmtHandle]*fakeStmtState
	freed  []uint16
	active map[TrHandle]bool

	tpbs       [][]byte
	commits    int
	rollbacks  int
	commitErr  int64
	detached   int
	dropped    int
	dropErr    int64
	immediate  []string
	executions []fakeExecution

	blobs       map[Quad][]byte
	blobWriters map[BlobHandle]Quad
	blobReaders map[BlobHandle]*fakeBlobReader
	blobTotal   map[Quad]int64 // overrides the reported total length
	segmentSize int
	// segmentStatus, when set, flags every read that leaves data behind, as
	// the server does when a segment is larger than the read buffer.
	segmentStatus ISCStatus

	sqlcodes map[int64]int32
}

func newFakeClient(t *testing.T) *fakeClient {
	return &fakeClient{
		t:           t,
		statements:  make(map[string]*fakeStatement),
		dialect:     3,
		stmts:       make(map[StmtHandle]*fakeStmtState),
		active:      make(map[TrHandle]bool),
		blobs:       make(map[Quad][]byte),
		blobWriters: make(map[BlobHandle]Quad),
		blobReaders: make(map[BlobHandle]*fakeBlobReader),
		blobTotal:   make(map[Quad]int64),
		sqlcodes:    make(map[int64]int32),
	}
}

func (f *fakeClient) handle() uint32 {
	f.next++
	return f.next
}

func (f *fakeClient) script(sql string, st *fakeStatement) {
	f.statements[sql] = st
}

func ok(sv *StatusVector) ISCStatus {
	*sv = StatusVector{}
	sv[0] = 1
	return 0
}

func fail(sv *StatusVector, gds int64) ISCStatus {
	*sv = StatusVector{}
	sv[0] = 1
	sv[1] = ISCStatus(gds)
	return ISCStatus(gds)
}

// Fake GDS codes
const (
	gdsDSQLError   = 335544569
	gdsBadTrHandle = 335544332
	gdsBadStmt     = 335544577
	gdsUnique      = 335544665
)

// testCodec converts values for the fake side of the wire.
func (f *fakeClient) testCodec() *codec {
	var db DBHandle = 1
	var tr TrHandle = 1
	var sv StatusVector
	text, _ := newTextEncoding("UTF-8")
	return &codec{api: f, db: &db, tr: &tr, status: &sv, text: text, loc: time.UTC, logger: zap.NewNop()}
}

func fillDA(d *SQLDA, cols []fakeColumn) {
	d.SetLen(len(cols))
	if len(cols) > d.Cap() {
		return
	}
	for i, c := range cols {
		v := d.Var(i)
		*v = XSQLVAR{SQLType: c.sqltype, SQLScale: c.scale, SQLSubtype: c.subtype, SQLLen: c.length}
		v.SetName(c.name, c.name)
	}
}

// writeRow stores values into wired output columns the way the server does.
func (f *fakeClient) writeRow(d *SQLDA, row []any) {
	cd := f.testCodec()
	for i := range d.Vars() {
		v := d.Var(i)
		ind := v.indicator()
		if row[i] == nil {
			*ind = -1
			continue
		}
		*ind = 0
		n, _ := columnShape(v)
		val, err := valueOf(row[i])
		if err != nil {
			f.t.Fatalf("fake row value %v: %v", row[i], err)
		}
		if err := cd.encode(v, v.data(n), val); err != nil {
			f.t.Fatalf("fake row encode %v: %v", row[i], err)
		}
	}
}

// readParams decodes the bound input values.
func (f *fakeClient) readParams(d *SQLDA) Row {
	if d == nil {
		return nil
	}
	cd := f.testCodec()
	row := make(Row, d.Len())
	for i := range d.Vars() {
		v := d.Var(i)
		if ind := v.indicator(); ind != nil && *ind < 0 {
			continue
		}
		n, _ := columnShape(v)
		val, err := cd.decode(v, v.data(n))
		if err != nil {
			f.t.Fatalf("fake param decode: %v", err)
		}
		row[i] = val
	}
	return row
}

func (f *fakeClient) lastExecution() fakeExecution {
	if len(f.executions) == 0 {
		f.t.Fatal("no statement was executed")
	}
	return f.executions[len(f.executions)-1]
}

// =============================================================================
// clientAPI
// =============================================================================

func (f *fakeClient) attachDatabase(sv *StatusVector, path string, db *DBHandle, dpb []byte) ISCStatus {
	if f.attachErr != 0 {
		return fail(sv, f.attachErr)
	}
	f.dpb = append([]byte(nil), dpb...)
	*db = DBHandle(f.handle())
	return ok(sv)
}

func (f *fakeClient) detachDatabase(sv *StatusVector, db *DBHandle) ISCStatus {
	f.detached++
	*db = 0
	return ok(sv)
}

func (f *fakeClient) dropDatabase(sv *StatusVector, db *DBHandle) ISCStatus {
	if f.dropErr != 0 {
		return fail(sv, f.dropErr)
	}
	f.dropped++
	*db = 0
	return ok(sv)
}

func (f *fakeClient) databaseInfo(sv *StatusVector, db *DBHandle, items, buf []byte) ISCStatus {
	copy(buf, []byte{isc_info_db_sql_dialect, 1, 0, byte(f.dialect), isc_info_end})
	return ok(sv)
}

func (f *fakeClient) executeImmediate(sv *StatusVector, db *DBHandle, tr *TrHandle, sql string, dialect uint16) ISCStatus {
	f.immediate = append(f.immediate, sql)
	*db = DBHandle(f.handle())
	return ok(sv)
}

func (f *fakeClient) startTransaction(sv *StatusVector, tr *TrHandle, db *DBHandle, tpb []byte) ISCStatus {
	if *db == 0 {
		return fail(sv, gdsBadTrHandle)
	}
	*tr = TrHandle(f.handle())
	f.active[*tr] = true
	f.tpbs = append(f.tpbs, append([]byte(nil), tpb...))
	return ok(sv)
}

func (f *fakeClient) commitTransaction(sv *StatusVector, tr *TrHandle) ISCStatus {
	if !f.active[*tr] {
		return fail(sv, gdsBadTrHandle)
	}
	if f.commitErr != 0 {
		return fail(sv, f.commitErr)
	}
	delete(f.active, *tr)
	f.commits++
	*tr = 0
	return ok(sv)
}

func (f *fakeClient) rollbackTransaction(sv *StatusVector, tr *TrHandle) ISCStatus {
	if !f.active[*tr] {
		return fail(sv, gdsBadTrHandle)
	}
	delete(f.active, *tr)
	f.rollbacks++
	*tr = 0
	return ok(sv)
}

func (f *fakeClient) allocateStatement(sv *StatusVector, db *DBHandle, stmt *StmtHandle) ISCStatus {
	*stmt = StmtHandle(f.handle())
	f.stmts[*stmt] = &fakeStmtState{}
	return ok(sv)
}

func (f *fakeClient) prepare(sv *StatusVector, tr *TrHandle, stmt *StmtHandle, sql string, dialect uint16, out *SQLDA) ISCStatus {
	state, found := f.stmts[*stmt]
	if !found {
		return fail(sv, gdsBadStmt)
	}
	if !f.active[*tr] {
		return fail(sv, gdsBadTrHandle)
	}
	st, found := f.statements[sql]
	if !found {
		return fail(sv, gdsDSQLError)
	}
	state.st = st
	state.open = false
	fillDA(out, st.columns)
	return ok(sv)
}

func (f *fakeClient) describe(sv *StatusVector, stmt *StmtHandle, out *SQLDA) ISCStatus {
	state := f.stmts[*stmt]
	fillDA(out, state.st.columns)
	return ok(sv)
}

func (f *fakeClient) describeBind(sv *StatusVector, stmt *StmtHandle, in *SQLDA) ISCStatus {
	state := f.stmts[*stmt]
	fillDA(in, state.st.params)
	return ok(sv)
}

func (f *fakeClient) sqlInfo(sv *StatusVector, stmt *StmtHandle, items, buf []byte) ISCStatus {
	state := f.stmts[*stmt]
	switch items[0] {
	case isc_info_sql_stmt_type:
		copy(buf, appendInfo(nil, isc_info_sql_stmt_type, int32(state.st.kind)))
		buf[7] = isc_info_end
	case isc_info_sql_records:
		rc := state.st.counts
		var body []byte
		body = appendInfo(body, isc_info_req_select_count, int32(rc.selects))
		body = appendInfo(body, isc_info_req_insert_count, int32(rc.inserts))
		body = appendInfo(body, isc_info_req_update_count, int32(rc.updates))
		body = appendInfo(body, isc_info_req_delete_count, int32(rc.deletes))
		body = append(body, isc_info_end)
		out := []byte{isc_info_sql_records, byte(len(body)), byte(len(body) >> 8)}
		out = append(out, body...)
		out = append(out, isc_info_end)
		copy(buf, out)
	}
	return ok(sv)
}

// appendInfo appends a {code, len, int32} clumplet.
func appendInfo(b []byte, code byte, v int32) []byte {
	b = append(b, code, 4, 0)
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

func (f *fakeClient) execute2(sv *StatusVector, tr *TrHandle, stmt *StmtHandle, in, out *SQLDA) ISCStatus {
	state := f.stmts[*stmt]
	if state == nil || state.st == nil {
		return fail(sv, gdsBadStmt)
	}
	if !f.active[*tr] {
		return fail(sv, gdsBadTrHandle)
	}
	st := state.st
	if st.execErr != 0 {
		return fail(sv, st.execErr)
	}
	sql := ""
	for k, v := range f.statements {
		if v == st {
			sql = k
		}
	}
	f.executions = append(f.executions, fakeExecution{sql: sql, tr: *tr, params: f.readParams(in)})
	switch {
	case out != nil:
		if len(st.rows) > 0 {
			f.writeRow(out, st.rows[0])
		}
	case len(st.columns) > 0:
		state.open = true
		state.pos = 0
	}
	return ok(sv)
}

func (f *fakeClient) fetch(sv *StatusVector, stmt *StmtHandle, out *SQLDA) ISCStatus {
	state := f.stmts[*stmt]
	if state == nil || !state.open {
		return fail(sv, gdsBadStmt)
	}
	if state.pos >= len(state.st.rows) {
		ok(sv)
		return fetchNoMoreRows
	}
	f.writeRow(out, state.st.rows[state.pos])
	state.pos++
	return ok(sv)
}

func (f *fakeClient) freeStatement(sv *StatusVector, stmt *StmtHandle, option uint16) ISCStatus {
	f.freed = append(f.freed, option)
	state := f.stmts[*stmt]
	if state == nil {
		return fail(sv, gdsBadStmt)
	}
	switch option {
	case DSQL_close:
		state.open = false
	case DSQL_unprepare:
		state.st = nil
		state.open = false
	case DSQL_drop:
		delete(f.stmts, *stmt)
		*stmt = 0
	}
	return ok(sv)
}

func (f *fakeClient) createBlob(sv *StatusVector, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad) ISCStatus {
	*blob = BlobHandle(f.handle())
	*id = Quad{Low: f.handle()}
	f.blobs[*id] = []byte{}
	f.blobWriters[*blob] = *id
	return ok(sv)
}

func (f *fakeClient) openBlob(sv *StatusVector, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad) ISCStatus {
	if _, found := f.blobs[*id]; !found {
		return fail(sv, gdsBadStmt)
	}
	*blob = BlobHandle(f.handle())
	f.blobReaders[*blob] = &fakeBlobReader{id: *id}
	return ok(sv)
}

func (f *fakeClient) blobInfo(sv *StatusVector, blob *BlobHandle, items, buf []byte) ISCStatus {
	r := f.blobReaders[*blob]
	total, found := f.blobTotal[r.id]
	if !found {
		total = int64(len(f.blobs[r.id]))
	}
	info := appendInfo(nil, isc_info_blob_total_length, int32(total))
	copy(buf, append(info, isc_info_end))
	return ok(sv)
}

func (f *fakeClient) getSegment(sv *StatusVector, blob *BlobHandle, actual *uint16, buf []byte) ISCStatus {
	r := f.blobReaders[*blob]
	data := f.blobs[r.id]
	if r.pos >= len(data) {
		*actual = 0
		return fail(sv, int64(iscSegstrEOF))
	}
	n := len(buf)
	if f.segmentSize > 0 && f.segmentSize < n {
		n = f.segmentSize
	}
	n = copy(buf[:n], data[r.pos:])
	r.pos += n
	*actual = uint16(n)
	if f.segmentStatus != 0 && r.pos < len(data) {
		return fail(sv, int64(f.segmentStatus))
	}
	return ok(sv)
}

func (f *fakeClient) putSegment(sv *StatusVector, blob *BlobHandle, data []byte) ISCStatus {
	id := f.blobWriters[*blob]
	f.blobs[id] = append(f.blobs[id], data...)
	return ok(sv)
}

func (f *fakeClient) closeBlob(sv *StatusVector, blob *BlobHandle) ISCStatus {
	delete(f.blobWriters, *blob)
	delete(f.blobReaders, *blob)
	*blob = 0
	return ok(sv)
}

func (f *fakeClient) sqlCode(sv *StatusVector) int32 {
	if code, found := f.sqlcodes[int64(sv[1])]; found {
		return code
	}
	return -999
}

func (f *fakeClient) sqlInterpret(code int32) string {
	return ""
}

func (f *fakeClient) interpret(sv *StatusVector) []string {
	return []string{FormatStatus(sv[1])}
}

var _ clientAPI = (*fakeClient)(nil)

// =============================================================================
// Helpers
// =============================================================================

func newTestConnection(t *testing.T, f *fakeClient) *Connection {
	t.Helper()
	db, err := newDatabase(f, Config{Database: "test.fdb", Timezone: time.UTC})
	if err != nil {
		t.Fatalf("newDatabase: %v", err)
	}
	conn, err := db.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn
}

func col(name string, sqltype, length int16) fakeColumn {
	return fakeColumn{name: name, sqltype: sqltype, length: length}
}

func nullable(c fakeColumn) fakeColumn {
	c.sqltype |= 1
	return c
}
