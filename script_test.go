package fb

import (
	"reflect"
	"testing"
)

func TestSplitScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "simple",
			script: "CREATE TABLE T (X INTEGER);\nINSERT INTO T VALUES (1);",
			want:   []string{"CREATE TABLE T (X INTEGER)", "INSERT INTO T VALUES (1)"},
		},
		{
			name:   "terminators in literals and comments",
			script: "INSERT INTO T VALUES ('a;b');\n/* c; */ INSERT INTO \"T;\" VALUES (2);\n-- trailing;",
			want:   []string{"INSERT INTO T VALUES ('a;b')", "/* c; */ INSERT INTO \"T;\" VALUES (2)"},
		},
		{
			name: "set term",
			script: "SET TERM ^ ;\n" +
				"CREATE PROCEDURE P AS BEGIN EXIT; END^\n" +
				"SET TERM ; ^\n" +
				"SELECT 1 FROM RDB$DATABASE;",
			want: []string{"CREATE PROCEDURE P AS BEGIN EXIT; END", "SELECT 1 FROM RDB$DATABASE"},
		},
		{
			name:   "missing final terminator",
			script: "DELETE FROM T;\nDELETE FROM U",
			want:   []string{"DELETE FROM T", "DELETE FROM U"},
		},
		{
			name:   "empty statements",
			script: ";;\n  ;",
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitScript(tt.script)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExecuteScript(t *testing.T) {
	f := newFakeClient(t)
	f.script("INSERT INTO T VALUES (1)", &fakeStatement{kind: StmtInsert, counts: requestCounts{inserts: 1}})
	f.script("INSERT INTO T VALUES (2)", &fakeStatement{kind: StmtInsert, counts: requestCounts{inserts: 1}})
	conn := newTestConnection(t, f)

	if err := conn.ExecuteScript("INSERT INTO T VALUES (1);\nINSERT INTO T VALUES (2);"); err != nil {
		t.Fatalf("ExecuteScript: %v", err)
	}
	if len(f.executions) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(f.executions))
	}
	if f.executions[0].tr != f.executions[1].tr {
		t.Error("script statements should share one transaction")
	}
	if f.commits != 1 || f.rollbacks != 0 {
		t.Errorf("expected a single commit, got %d commits and %d rollbacks", f.commits, f.rollbacks)
	}
	if conn.TransactionStarted() {
		t.Error("transaction should be finished")
	}
}

func TestExecuteScriptRollsBack(t *testing.T) {
	f := newFakeClient(t)
	f.script("INSERT INTO T VALUES (1)", &fakeStatement{kind: StmtInsert, counts: requestCounts{inserts: 1}})
	conn := newTestConnection(t, f)

	err := conn.ExecuteScript("INSERT INTO T VALUES (1);\nBROKEN;\nINSERT INTO T VALUES (1);")
	if err == nil {
		t.Fatal("expected an error")
	}
	if SQLCodeOf(err) == 0 && !IsServerError(err) {
		t.Errorf("expected a server error, got %v", err)
	}
	if len(f.executions) != 1 {
		t.Errorf("expected execution to stop at the failure, got %d executions", len(f.executions))
	}
	if f.rollbacks != 1 || f.commits != 0 {
		t.Errorf("expected a single rollback, got %d commits and %d rollbacks", f.commits, f.rollbacks)
	}
}

func TestExecuteScriptInsideTransaction(t *testing.T) {
	f := newFakeClient(t)
	f.script("INSERT INTO T VALUES (1)", &fakeStatement{kind: StmtInsert, counts: requestCounts{inserts: 1}})
	conn := newTestConnection(t, f)

	if err := conn.StartTransaction(""); err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := conn.ExecuteScript("INSERT INTO T VALUES (1)"); err != nil {
		t.Fatalf("ExecuteScript: %v", err)
	}
	if !conn.TransactionStarted() || f.commits != 0 {
		t.Error("the caller's transaction should stay open")
	}
	if err := conn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
}
