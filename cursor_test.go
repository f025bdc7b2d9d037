package fb

import (
	"errors"
	"fmt"
	"testing"
)

const (
	sqlInsertReturning = "INSERT INTO T (X) VALUES (?) RETURNING X"
	sqlUpdateReturning = "UPDATE T SET X = X + 1 WHERE ID = ? RETURNING X"
	sqlInsert          = "INSERT INTO T (X) VALUES (?)"
	sqlSelect          = "SELECT ID, NAME FROM T"
)

func scriptBasics(f *fakeClient) {
	f.script(sqlInsertReturning, &fakeStatement{
		kind:    StmtInsert,
		params:  []fakeColumn{nullable(col("X", SQL_LONG, 4))},
		columns: []fakeColumn{nullable(col("X", SQL_LONG, 4))},
		rows:    [][]any{{5}},
		counts:  requestCounts{inserts: 1},
	})
	f.script(sqlUpdateReturning, &fakeStatement{
		kind:    StmtUpdate,
		params:  []fakeColumn{col("ID", SQL_LONG, 4)},
		columns: []fakeColumn{nullable(col("X", SQL_LONG, 4))},
	})
	f.script(sqlInsert, &fakeStatement{
		kind:   StmtInsert,
		params: []fakeColumn{col("X", SQL_LONG, 4)},
		counts: requestCounts{inserts: 1},
	})
	f.script(sqlSelect, &fakeStatement{
		kind:    StmtSelect,
		columns: []fakeColumn{col("ID", SQL_LONG, 4), nullable(col("NAME", SQL_VARYING, 10))},
		rows:    [][]any{{1, "a"}, {2, nil}},
	})
}

func newScriptedCursor(t *testing.T) (*fakeClient, *Connection, *Cursor) {
	t.Helper()
	f := newFakeClient(t)
	scriptBasics(f)
	conn := newTestConnection(t, f)
	cur, err := conn.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	return f, conn, cur
}

// =============================================================================
// RETURNING and rows affected
// =============================================================================

func TestCursorInsertReturning(t *testing.T) {
	f, conn, cur := newScriptedCursor(t)

	res, err := cur.Execute(sqlInsertReturning, 5)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ResultReturning {
		t.Fatalf("expected %s, got %s", ResultReturning, res.Kind)
	}
	if res.RowsAffected != 1 {
		t.Errorf("expected 1 row affected, got %d", res.RowsAffected)
	}
	if len(res.Returning) != 1 || res.Returning[0] != int64(5) {
		t.Errorf("expected returning [5], got %v", res.Returning)
	}
	if got := f.lastExecution().params; len(got) != 1 || got[0] != int64(5) {
		t.Errorf("expected bound parameter 5, got %v", got)
	}
	if conn.TransactionStarted() {
		t.Error("automatic transaction should be committed")
	}
	if f.commits != 1 {
		t.Errorf("expected 1 commit, got %d", f.commits)
	}
	if cur.IsOpen() {
		t.Error("RETURNING must not leave the cursor open")
	}
}

func TestCursorUpdateReturningNoMatch(t *testing.T) {
	_, _, cur := newScriptedCursor(t)

	res, err := cur.Execute(sqlUpdateReturning, 99)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ResultReturning {
		t.Fatalf("expected %s, got %s", ResultReturning, res.Kind)
	}
	if res.RowsAffected != 0 {
		t.Errorf("expected 0 rows affected, got %d", res.RowsAffected)
	}
	if res.Returning == nil || len(res.Returning) != 0 {
		t.Errorf("expected empty returning row, got %#v", res.Returning)
	}
}

func TestCursorRowsAffected(t *testing.T) {
	f, _, cur := newScriptedCursor(t)

	res, err := cur.Execute(sqlInsert, 7)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ResultRowsAffected || res.RowsAffected != 1 {
		t.Errorf("expected 1 row affected, got %+v", res)
	}
	if f.commits != 1 {
		t.Errorf("expected 1 commit, got %d", f.commits)
	}
}

func TestCursorBatch(t *testing.T) {
	f, _, cur := newScriptedCursor(t)

	tests := []struct {
		name string
		args []any
	}{
		{"matrix", []any{[][]any{{1}, {2}, {3}}}},
		{"rows", []any{[]any{1}, []any{2}, []any{3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.executions)
			res, err := cur.Execute(sqlInsert, tt.args...)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.RowsAffected != 3 {
				t.Errorf("expected 3 rows affected, got %d", res.RowsAffected)
			}
			runs := f.executions[before:]
			if len(runs) != 3 {
				t.Fatalf("expected 3 executions, got %d", len(runs))
			}
			for i, run := range runs {
				if run.params[0] != int64(i+1) {
					t.Errorf("execution %d: expected %d, got %v", i, i+1, run.params[0])
				}
				if run.tr != runs[0].tr {
					t.Errorf("execution %d ran in another transaction", i)
				}
			}
		})
	}
}

func TestCursorExecProc(t *testing.T) {
	f := newFakeClient(t)
	f.script("EXECUTE PROCEDURE P(?)", &fakeStatement{
		kind:    StmtExecProc,
		params:  []fakeColumn{col("A", SQL_LONG, 4)},
		columns: []fakeColumn{col("OUT1", SQL_INT64, 8), nullable(col("OUT2", SQL_VARYING, 20))},
		rows:    [][]any{{42, "done"}},
	})
	conn := newTestConnection(t, f)

	res, err := conn.Execute("EXECUTE PROCEDURE P(?)", 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ResultReturning {
		t.Fatalf("expected %s, got %s", ResultReturning, res.Kind)
	}
	if len(res.Returning) != 2 || res.Returning[0] != int64(42) || res.Returning[1] != "done" {
		t.Errorf("expected [42 done], got %v", res.Returning)
	}
}

// =============================================================================
// SELECT and fetch
// =============================================================================

func TestCursorSelectFetch(t *testing.T) {
	f, conn, cur := newScriptedCursor(t)

	res, err := cur.Execute(sqlSelect)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != ResultCursor || res.Cursor != cur {
		t.Fatalf("expected the cursor itself, got %+v", res)
	}
	if !cur.IsOpen() {
		t.Fatal("cursor should be open")
	}
	if !conn.TransactionStarted() {
		t.Fatal("automatic transaction should stay active while the cursor is open")
	}

	row, err := cur.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if row[0] != int64(1) || row[1] != "a" {
		t.Errorf("unexpected first row %v", row)
	}
	m, err := cur.FetchMap()
	if err != nil {
		t.Fatalf("FetchMap: %v", err)
	}
	if m["ID"] != int64(2) || m["NAME"] != nil {
		t.Errorf("unexpected second row %v", m)
	}

	row, err = cur.Fetch()
	if err != nil || row != nil {
		t.Fatalf("expected end of data, got %v, %v", row, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := cur.Fetch(); !errors.Is(err, ErrCursorClosed) {
			t.Errorf("fetch past end %d: expected ErrCursorClosed, got %v", i, err)
		}
	}

	if err := cur.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if conn.TransactionStarted() || f.commits != 1 {
		t.Errorf("Close should commit the automatic transaction (commits=%d)", f.commits)
	}
	if err := cur.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if f.commits != 1 {
		t.Errorf("second Close must not commit again, commits=%d", f.commits)
	}
}

func TestCursorFetchBeforeExecute(t *testing.T) {
	_, _, cur := newScriptedCursor(t)

	if _, err := cur.Fetch(); !errors.Is(err, ErrCursorClosed) {
		t.Errorf("expected ErrCursorClosed, got %v", err)
	}
	if _, err := cur.Exec(); !errors.Is(err, ErrCursorClosed) {
		t.Errorf("Exec without Prepare: expected ErrCursorClosed, got %v", err)
	}
}

func TestCursorFetchAllAndFields(t *testing.T) {
	f := newFakeClient(t)
	scriptBasics(f)
	db, err := newDatabase(f, Config{Database: "test.fdb", DowncaseNames: true})
	if err != nil {
		t.Fatalf("newDatabase: %v", err)
	}
	conn, err := db.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	maps, err := conn.QueryMaps(sqlSelect)
	if err != nil {
		t.Fatalf("QueryMaps: %v", err)
	}
	if len(maps) != 2 || maps[0]["id"] != int64(1) || maps[0]["name"] != "a" {
		t.Errorf("unexpected rows %v", maps)
	}

	cur, _ := conn.Cursor()
	if _, err := cur.Execute(sqlSelect); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	fields := cur.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[1].Name != "name" || fields[1].SQLType != "VARCHAR" || !fields[1].Nullable {
		t.Errorf("unexpected field %+v", fields[1])
	}
	if fields[1].InternalSize != 12 || fields[1].DisplaySize != 10 {
		t.Errorf("unexpected sizes %+v", fields[1])
	}
	if _, ok := cur.FieldMap()["id"]; !ok {
		t.Error("FieldMap should be keyed by downcased name")
	}
	var seen int
	if err := cur.Each(func(Row) error { seen++; return nil }); err != nil {
		t.Fatalf("Each: %v", err)
	}
	if seen != 2 {
		t.Errorf("expected 2 rows, got %d", seen)
	}
}

func TestCursorGrowsOutputDescriptor(t *testing.T) {
	f := newFakeClient(t)
	const n = defaultColumnCapacity + 10
	cols := make([]fakeColumn, n)
	row := make([]any, n)
	for i := range cols {
		cols[i] = col(fmt.Sprintf("C%d", i), SQL_LONG, 4)
		row[i] = i
	}
	f.script("SELECT * FROM WIDE", &fakeStatement{kind: StmtSelect, columns: cols, rows: [][]any{row}})
	conn := newTestConnection(t, f)

	rows, err := conn.Query("SELECT * FROM WIDE")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != n {
		t.Fatalf("expected one row of %d columns, got %v", n, rows)
	}
	if rows[0][n-1] != int64(n-1) {
		t.Errorf("last column: expected %d, got %v", n-1, rows[0][n-1])
	}
}

// =============================================================================
// Errors and transactions
// =============================================================================

func TestCursorRejectsTransactionStatements(t *testing.T) {
	f := newFakeClient(t)
	f.script("COMMIT", &fakeStatement{kind: StmtCommit})
	conn := newTestConnection(t, f)
	cur, _ := conn.Cursor()

	_, err := cur.Execute("COMMIT")
	if !errors.Is(err, ErrTransactionStatement) {
		t.Fatalf("expected ErrTransactionStatement, got %v", err)
	}
	if f.rollbacks != 1 || conn.TransactionStarted() {
		t.Errorf("automatic transaction should be rolled back (rollbacks=%d)", f.rollbacks)
	}
}

func TestCursorExecuteFailureRollsBack(t *testing.T) {
	f := newFakeClient(t)
	f.sqlcodes[gdsUnique] = SQLCodeUniqueViolation
	f.script(sqlInsert, &fakeStatement{
		kind:    StmtInsert,
		params:  []fakeColumn{col("X", SQL_LONG, 4)},
		execErr: gdsUnique,
	})
	conn := newTestConnection(t, f)

	_, err := conn.Execute(sqlInsert, 1)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected a unique violation, got %v", err)
	}
	var fe *Error
	if !errors.As(err, &fe) || fe.Op != "isc_dsql_execute2" {
		t.Errorf("expected *Error from isc_dsql_execute2, got %#v", err)
	}
	if f.rollbacks != 1 || f.commits != 0 {
		t.Errorf("expected rollback only, got commits=%d rollbacks=%d", f.commits, f.rollbacks)
	}
}

func TestCursorNotNullableParameter(t *testing.T) {
	_, _, cur := newScriptedCursor(t)

	if _, err := cur.Execute(sqlInsert, nil); !errors.Is(err, ErrNotNullable) {
		t.Errorf("expected ErrNotNullable, got %v", err)
	}
	if _, err := cur.Execute(sqlInsert); err == nil {
		t.Error("expected an error for a missing parameter")
	}
}

func TestCursorExplicitTransaction(t *testing.T) {
	f, conn, cur := newScriptedCursor(t)

	if err := conn.StartTransaction("READ COMMITTED"); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if _, err := cur.Execute(sqlInsert, 1); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := cur.Execute(sqlInsert, 2); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.commits != 0 {
		t.Errorf("statements inside an explicit transaction must not commit, commits=%d", f.commits)
	}
	if err := conn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if f.commits != 1 {
		t.Errorf("expected 1 commit, got %d", f.commits)
	}
	if cur.Prepared() {
		t.Error("an explicit commit releases prepared statements")
	}
}

func TestCursorPreparedSurvivesOtherAutoCommits(t *testing.T) {
	f, conn, stmt := newScriptedCursor(t)

	if err := stmt.Prepare(sqlInsert); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if stmt.NumInput() != 1 || stmt.StatementType() != StmtInsert {
		t.Errorf("unexpected prepared statement: %d params, %s", stmt.NumInput(), stmt.StatementType())
	}
	if conn.TransactionStarted() {
		t.Error("Prepare should commit its own transaction")
	}

	if _, err := conn.Execute(sqlInsertReturning, 1); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !stmt.Prepared() {
		t.Fatal("another cursor's automatic commit must not unprepare the statement")
	}
	for i := 0; i < 2; i++ {
		res, err := stmt.Exec(i)
		if err != nil {
			t.Fatalf("Exec %d: %v", i, err)
		}
		if res.RowsAffected != 1 {
			t.Errorf("Exec %d: expected 1 row affected, got %d", i, res.RowsAffected)
		}
	}
	if got := f.lastExecution().params[0]; got != int64(1) {
		t.Errorf("expected last parameter 1, got %v", got)
	}
}

// =============================================================================
// Close and drop
// =============================================================================

func TestCursorCloseAndDrop(t *testing.T) {
	f, conn, cur := newScriptedCursor(t)

	if _, err := cur.Execute(sqlSelect); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if cur.Prepared() || cur.IsOpen() {
		t.Error("Close should unprepare and close the cursor")
	}
	if _, err := cur.Execute(sqlInsert, 3); err != nil {
		t.Errorf("a closed cursor can be executed again: %v", err)
	}

	if err := cur.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, err := cur.Execute(sqlInsert, 4); !errors.Is(err, ErrCursorDropped) {
		t.Errorf("expected ErrCursorDropped, got %v", err)
	}
	if err := cur.Drop(); err != nil {
		t.Errorf("second Drop: %v", err)
	}
	if f.freed[len(f.freed)-1] != DSQL_drop {
		t.Errorf("expected DSQL_drop last, got %v", f.freed)
	}
	for _, c := range conn.cursors {
		if c == cur {
			t.Error("dropped cursor should be forgotten by the connection")
		}
	}
}

func TestCursorDropCommitsOwnTransaction(t *testing.T) {
	f, conn, cur := newScriptedCursor(t)

	if _, err := cur.Execute(sqlSelect); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := cur.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if conn.TransactionStarted() || f.commits != 1 {
		t.Errorf("Drop should commit the cursor's transaction (commits=%d)", f.commits)
	}
}
