package fb

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// clientAPI is the subset of the fbclient call-level API the binding drives.
// *Client implements it against the loaded library.
type clientAPI interface {
	attachDatabase(sv *StatusVector, path string, db *DBHandle, dpb []byte) ISCStatus
	detachDatabase(sv *StatusVector, db *DBHandle) ISCStatus
	dropDatabase(sv *StatusVector, db *DBHandle) ISCStatus
	databaseInfo(sv *StatusVector, db *DBHandle, items, buf []byte) ISCStatus
	executeImmediate(sv *StatusVector, db *DBHandle, tr *TrHandle, sql string, dialect uint16) ISCStatus

	startTransaction(sv *StatusVector, tr *TrHandle, db *DBHandle, tpb []byte) ISCStatus
	commitTransaction(sv *StatusVector, tr *TrHandle) ISCStatus
	rollbackTransaction(sv *StatusVector, tr *TrHandle) ISCStatus

	allocateStatement(sv *StatusVector, db *DBHandle, stmt *StmtHandle) ISCStatus
	prepare(sv *StatusVector, tr *TrHandle, stmt *StmtHandle, sql string, dialect uint16, out *SQLDA) ISCStatus
	describe(sv *StatusVector, stmt *StmtHandle, out *SQLDA) ISCStatus
	describeBind(sv *StatusVector, stmt *StmtHandle, in *SQLDA) ISCStatus
	sqlInfo(sv *StatusVector, stmt *StmtHandle, items, buf []byte) ISCStatus
	execute2(sv *StatusVector, tr *TrHandle, stmt *StmtHandle, in, out *SQLDA) ISCStatus
	fetch(sv *StatusVector, stmt *StmtHandle, out *SQLDA) ISCStatus
	freeStatement(sv *StatusVector, stmt *StmtHandle, option uint16) ISCStatus

	createBlob(sv *StatusVector, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad) ISCStatus
	openBlob(sv *StatusVector, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad) ISCStatus
	blobInfo(sv *StatusVector, blob *BlobHandle, items, buf []byte) ISCStatus
	getSegment(sv *StatusVector, blob *BlobHandle, actual *uint16, buf []byte) ISCStatus
	putSegment(sv *StatusVector, blob *BlobHandle, data []byte) ISCStatus
	closeBlob(sv *StatusVector, blob *BlobHandle) ISCStatus

	sqlCode(sv *StatusVector) int32
	sqlInterpret(code int32) string
	interpret(sv *StatusVector) []string
}

// teb is ISC_TEB, the per-database entry of isc_start_multiple.
type teb struct {
	db     *DBHandle
	tpbLen cLong
	tpb    *byte
}

// Client holds the fbclient entry points. It is loaded once and never mutated
// afterwards, so one *Client can be shared by every Database and Connection.
type Client struct {
	path string
	lib  uintptr

	iscAttachDatabase       func(sv *ISCStatus, nameLen int16, name *byte, db *DBHandle, dpbLen int16, dpb *byte) ISCStatus
	iscDetachDatabase       func(sv *ISCStatus, db *DBHandle) ISCStatus
	iscDropDatabase         func(sv *ISCStatus, db *DBHandle) ISCStatus
	iscDatabaseInfo         func(sv *ISCStatus, db *DBHandle, itemLen int16, items *byte, bufLen int16, buf *byte) ISCStatus
	iscDsqlExecuteImmediate func(sv *ISCStatus, db *DBHandle, tr *TrHandle, sqlLen uint16, sql *byte, dialect uint16, da unsafe.Pointer) ISCStatus
	iscStartMultiple        func(sv *ISCStatus, tr *TrHandle, count int16, vec unsafe.Pointer) ISCStatus
	iscCommitTransaction    func(sv *ISCStatus, tr *TrHandle) ISCStatus
	iscRollbackTransaction  func(sv *ISCStatus, tr *TrHandle) ISCStatus
	iscDsqlAllocStatement2  func(sv *ISCStatus, db *DBHandle, stmt *StmtHandle) ISCStatus
	iscDsqlPrepare          func(sv *ISCStatus, tr *TrHandle, stmt *StmtHandle, sqlLen uint16, sql *byte, dialect uint16, da unsafe.Pointer) ISCStatus
	iscDsqlDescribe         func(sv *ISCStatus, stmt *StmtHandle, version uint16, da unsafe.Pointer) ISCStatus
	iscDsqlDescribeBind     func(sv *ISCStatus, stmt *StmtHandle, version uint16, da unsafe.Pointer) ISCStatus
	iscDsqlSQLInfo          func(sv *ISCStatus, stmt *StmtHandle, itemLen int16, items *byte, bufLen int16, buf *byte) ISCStatus
	iscDsqlExecute2         func(sv *ISCStatus, tr *TrHandle, stmt *StmtHandle, version uint16, in, out unsafe.Pointer) ISCStatus
	iscDsqlFetch            func(sv *ISCStatus, stmt *StmtHandle, version uint16, da unsafe.Pointer) ISCStatus
	iscDsqlFreeStatement    func(sv *ISCStatus, stmt *StmtHandle, option uint16) ISCStatus
	iscCreateBlob2          func(sv *ISCStatus, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad, bpbLen int16, bpb *byte) ISCStatus
	iscOpenBlob2            func(sv *ISCStatus, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad, bpbLen int16, bpb *byte) ISCStatus
	iscBlobInfo             func(sv *ISCStatus, blob *BlobHandle, itemLen int16, items *byte, bufLen int16, buf *byte) ISCStatus
	iscGetSegment           func(sv *ISCStatus, blob *BlobHandle, actual *uint16, bufLen uint16, buf *byte) ISCStatus
	iscPutSegment           func(sv *ISCStatus, blob *BlobHandle, dataLen uint16, data *byte) ISCStatus
	iscCloseBlob            func(sv *ISCStatus, blob *BlobHandle) ISCStatus
	iscSqlcode              func(sv *ISCStatus) int32
	iscSQLInterprete        func(code int16, buf *byte, bufLen int16)
	fbInterpret             func(buf *byte, bufLen uint32, vec **ISCStatus) int32
}

var (
	defaultClient     *Client
	defaultClientErr  error
	defaultClientOnce sync.Once

	loadedMu      sync.Mutex
	loadedClients = map[string]*Client{}
)

// libraryPath returns the platform-specific fbclient path.
// The FBCLIENT_LIBRARY_PATH environment variable overrides the default.
func libraryPath() string {
	if path := os.Getenv("FBCLIENT_LIBRARY_PATH"); path != "" {
		return path
	}

	switch runtime.GOOS {
	case "windows":
		return "fbclient.dll"
	case "darwin":
		paths := []string{
			"/Library/Frameworks/Firebird.framework/Libraries/libfbclient.dylib",
			"/opt/homebrew/lib/libfbclient.dylib",
			"/usr/local/lib/libfbclient.dylib",
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		return "libfbclient.dylib"
	default:
		paths := []string{
			"/opt/firebird/lib/libfbclient.so",
			"/usr/lib/x86_64-linux-gnu/libfbclient.so.2",
			"/usr/lib64/libfbclient.so.2",
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		return "libfbclient.so.2"
	}
}

// DefaultClient loads fbclient from FBCLIENT_LIBRARY_PATH or the platform
// default location. The library is loaded once per process.
func DefaultClient() (*Client, error) {
	defaultClientOnce.Do(func() {
		defaultClient, defaultClientErr = LoadClient(libraryPath())
	})
	return defaultClient, defaultClientErr
}

// LoadClient loads fbclient from path and registers its entry points.
// Loading the same path twice returns the same *Client.
func LoadClient(path string) (*Client, error) {
	loadedMu.Lock()
	defer loadedMu.Unlock()
	if c, ok := loadedClients[path]; ok {
		return c, nil
	}

	lib, err := loadClientLibrary(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load fbclient %q (set FBCLIENT_LIBRARY_PATH to override)", path)
	}

	c := &Client{path: path, lib: lib}
	if err := c.register(); err != nil {
		return nil, err
	}
	loadedClients[path] = c
	return c, nil
}

// Path returns the library the client was loaded from.
func (c *Client) Path() string {
	return c.path
}

func (c *Client) register() (err error) {
	// RegisterLibFunc panics on a missing symbol; report it as an error instead.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fbclient %q: %v", c.path, r)
		}
	}()

	purego.RegisterLibFunc(&c.iscAttachDatabase, c.lib, "isc_attach_database")
	purego.RegisterLibFunc(&c.iscDetachDatabase, c.lib, "isc_detach_database")
	purego.RegisterLibFunc(&c.iscDropDatabase, c.lib, "isc_drop_database")
	purego.RegisterLibFunc(&c.iscDatabaseInfo, c.lib, "isc_database_info")
	purego.RegisterLibFunc(&c.iscDsqlExecuteImmediate, c.lib, "isc_dsql_execute_immediate")

	purego.RegisterLibFunc(&c.iscStartMultiple, c.lib, "isc_start_multiple")
	purego.RegisterLibFunc(&c.iscCommitTransaction, c.lib, "isc_commit_transaction")
	purego.RegisterLibFunc(&c.iscRollbackTransaction, c.lib, "isc_rollback_transaction")

	purego.RegisterLibFunc(&c.iscDsqlAllocStatement2, c.lib, "isc_dsql_alloc_statement2")
	purego.RegisterLibFunc(&c.iscDsqlPrepare, c.lib, "isc_dsql_prepare")
	purego.RegisterLibFunc(&c.iscDsqlDescribe, c.lib, "isc_dsql_describe")
	purego.RegisterLibFunc(&c.iscDsqlDescribeBind, c.lib, "isc_dsql_describe_bind")
	purego.RegisterLibFunc(&c.iscDsqlSQLInfo, c.lib, "isc_dsql_sql_info")
	purego.RegisterLibFunc(&c.iscDsqlExecute2, c.lib, "isc_dsql_execute2")
	purego.RegisterLibFunc(&c.iscDsqlFetch, c.lib, "isc_dsql_fetch")
	purego.RegisterLibFunc(&c.iscDsqlFreeStatement, c.lib, "isc_dsql_free_statement")

	purego.RegisterLibFunc(&c.iscCreateBlob2, c.lib, "isc_create_blob2")
	purego.RegisterLibFunc(&c.iscOpenBlob2, c.lib, "isc_open_blob2")
	purego.RegisterLibFunc(&c.iscBlobInfo, c.lib, "isc_blob_info")
	purego.RegisterLibFunc(&c.iscGetSegment, c.lib, "isc_get_segment")
	purego.RegisterLibFunc(&c.iscPutSegment, c.lib, "isc_put_segment")
	purego.RegisterLibFunc(&c.iscCloseBlob, c.lib, "isc_close_blob")

	purego.RegisterLibFunc(&c.iscSqlcode, c.lib, "isc_sqlcode")
	purego.RegisterLibFunc(&c.iscSQLInterprete, c.lib, "isc_sql_interprete")
	purego.RegisterLibFunc(&c.fbInterpret, c.lib, "fb_interpret")
	return nil
}

// bytesPtr returns a pointer to the first byte of b, or nil for an empty slice.
func bytesPtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

// cText returns sql as a NUL-terminated buffer. Statements are passed with a
// length of 0 so the client reads up to the terminator; the length argument is
// 16 bits wide and cannot describe text over 64 KiB.
func cText(sql string) []byte {
	return append([]byte(sql), 0)
}

func (c *Client) attachDatabase(sv *StatusVector, path string, db *DBHandle, dpb []byte) ISCStatus {
	name := []byte(path)
	return c.iscAttachDatabase(&sv[0], int16(len(name)), bytesPtr(name), db, int16(len(dpb)), bytesPtr(dpb))
}

func (c *Client) detachDatabase(sv *StatusVector, db *DBHandle) ISCStatus {
	return c.iscDetachDatabase(&sv[0], db)
}

func (c *Client) dropDatabase(sv *StatusVector, db *DBHandle) ISCStatus {
	return c.iscDropDatabase(&sv[0], db)
}

func (c *Client) databaseInfo(sv *StatusVector, db *DBHandle, items, buf []byte) ISCStatus {
	return c.iscDatabaseInfo(&sv[0], db, int16(len(items)), bytesPtr(items), int16(len(buf)), bytesPtr(buf))
}

func (c *Client) executeImmediate(sv *StatusVector, db *DBHandle, tr *TrHandle, sql string, dialect uint16) ISCStatus {
	text := cText(sql)
	return c.iscDsqlExecuteImmediate(&sv[0], db, tr, 0, &text[0], dialect, nil)
}

func (c *Client) startTransaction(sv *StatusVector, tr *TrHandle, db *DBHandle, tpb []byte) ISCStatus {
	vec := teb{db: db, tpbLen: cLong(len(tpb)), tpb: bytesPtr(tpb)}
	ret := c.iscStartMultiple(&sv[0], tr, 1, unsafe.Pointer(&vec))
	runtime.KeepAlive(tpb)
	return ret
}

func (c *Client) commitTransaction(sv *StatusVector, tr *TrHandle) ISCStatus {
	return c.iscCommitTransaction(&sv[0], tr)
}

func (c *Client) rollbackTransaction(sv *StatusVector, tr *TrHandle) ISCStatus {
	return c.iscRollbackTransaction(&sv[0], tr)
}

func (c *Client) allocateStatement(sv *StatusVector, db *DBHandle, stmt *StmtHandle) ISCStatus {
	return c.iscDsqlAllocStatement2(&sv[0], db, stmt)
}

func (c *Client) prepare(sv *StatusVector, tr *TrHandle, stmt *StmtHandle, sql string, dialect uint16, out *SQLDA) ISCStatus {
	text := cText(sql)
	return c.iscDsqlPrepare(&sv[0], tr, stmt, 0, &text[0], dialect, out.pointer())
}

func (c *Client) describe(sv *StatusVector, stmt *StmtHandle, out *SQLDA) ISCStatus {
	return c.iscDsqlDescribe(&sv[0], stmt, SQLDA_VERSION1, out.pointer())
}

func (c *Client) describeBind(sv *StatusVector, stmt *StmtHandle, in *SQLDA) ISCStatus {
	return c.iscDsqlDescribeBind(&sv[0], stmt, SQLDA_VERSION1, in.pointer())
}

func (c *Client) sqlInfo(sv *StatusVector, stmt *StmtHandle, items, buf []byte) ISCStatus {
	return c.iscDsqlSQLInfo(&sv[0], stmt, int16(len(items)), bytesPtr(items), int16(len(buf)), bytesPtr(buf))
}

func (c *Client) execute2(sv *StatusVector, tr *TrHandle, stmt *StmtHandle, in, out *SQLDA) ISCStatus {
	return c.iscDsqlExecute2(&sv[0], tr, stmt, SQLDA_VERSION1, in.pointer(), out.pointer())
}

func (c *Client) fetch(sv *StatusVector, stmt *StmtHandle, out *SQLDA) ISCStatus {
	return c.iscDsqlFetch(&sv[0], stmt, SQLDA_VERSION1, out.pointer())
}

func (c *Client) freeStatement(sv *StatusVector, stmt *StmtHandle, option uint16) ISCStatus {
	return c.iscDsqlFreeStatement(&sv[0], stmt, option)
}

func (c *Client) createBlob(sv *StatusVector, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad) ISCStatus {
	return c.iscCreateBlob2(&sv[0], db, tr, blob, id, 0, nil)
}

func (c *Client) openBlob(sv *StatusVector, db *DBHandle, tr *TrHandle, blob *BlobHandle, id *Quad) ISCStatus {
	return c.iscOpenBlob2(&sv[0], db, tr, blob, id, 0, nil)
}

func (c *Client) blobInfo(sv *StatusVector, blob *BlobHandle, items, buf []byte) ISCStatus {
	return c.iscBlobInfo(&sv[0], blob, int16(len(items)), bytesPtr(items), int16(len(buf)), bytesPtr(buf))
}

func (c *Client) getSegment(sv *StatusVector, blob *BlobHandle, actual *uint16, buf []byte) ISCStatus {
	return c.iscGetSegment(&sv[0], blob, actual, uint16(len(buf)), bytesPtr(buf))
}

func (c *Client) putSegment(sv *StatusVector, blob *BlobHandle, data []byte) ISCStatus {
	return c.iscPutSegment(&sv[0], blob, uint16(len(data)), bytesPtr(data))
}

func (c *Client) closeBlob(sv *StatusVector, blob *BlobHandle) ISCStatus {
	return c.iscCloseBlob(&sv[0], blob)
}

func (c *Client) sqlCode(sv *StatusVector) int32 {
	return c.iscSqlcode(&sv[0])
}

func (c *Client) sqlInterpret(code int32) string {
	buf := make([]byte, 1024)
	c.iscSQLInterprete(int16(code), &buf[0], int16(len(buf)))
	return cString(buf)
}

func (c *Client) interpret(sv *StatusVector) []string {
	var lines []string
	buf := make([]byte, 1024)
	vec := &sv[0]
	for c.fbInterpret(&buf[0], uint32(len(buf)), &vec) != 0 {
		lines = append(lines, cString(buf))
	}
	return lines
}

// cString returns the NUL-terminated prefix of b with trailing space trimmed.
func cString(b []byte) string {
	for i, ch := range b {
		if ch == 0 {
			b = b[:i]
			break
		}
	}
	return strings.TrimRight(string(b), " \r\n")
}

var _ clientAPI = (*Client)(nil)
