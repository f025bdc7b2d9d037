package fb

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Value normalization
// =============================================================================

func BenchmarkValueOf_String(b *testing.B) {
	for i := 0; i < b.N; i++ {
		valueOf("hello world")
	}
}

func BenchmarkValueOf_Int64(b *testing.B) {
	for i := 0; i < b.N; i++ {
		valueOf(int64(12345))
	}
}

func BenchmarkValueOf_Decimal(b *testing.B) {
	d := decimal.RequireFromString("12345.6789")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		valueOf(d)
	}
}

func BenchmarkValueOf_UUID(b *testing.B) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		valueOf(id)
	}
}

// =============================================================================
// Row encoding and decoding
// =============================================================================

func benchmarkColumns() []XSQLVAR {
	return []XSQLVAR{
		{SQLType: SQL_LONG | 1, SQLLen: 4},
		{SQLType: SQL_VARYING | 1, SQLLen: 64},
		{SQLType: SQL_INT64 | 1, SQLLen: 8, SQLScale: -2, SQLSubtype: 1},
		{SQLType: SQL_TIMESTAMP | 1, SQLLen: 8},
		{SQLType: SQL_DOUBLE | 1, SQLLen: 8},
	}
}

func BenchmarkComputeLayout(b *testing.B) {
	vars := benchmarkColumns()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		computeLayout(vars)
	}
}

func BenchmarkEncodeParams(b *testing.B) {
	cd := (&fakeClient{}).testCodec()
	vars := benchmarkColumns()
	l := computeLayout(vars)
	var buf rowBuffer
	args := []any{42, "a moderately long string value", "1234.56", time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC), 3.14}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cd.encodeParams(vars, l, &buf, args); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeRow(b *testing.B) {
	cd := (&fakeClient{}).testCodec()
	vars := benchmarkColumns()
	l := computeLayout(vars)
	var buf rowBuffer
	args := []any{42, "a moderately long string value", "1234.56", time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC), 3.14}
	if err := cd.encodeParams(vars, l, &buf, args); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cd.decodeRow(vars, l, buf.bytes); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseInt128(b *testing.B) {
	for i := 0; i < b.N; i++ {
		parseInt128("-170141183460469231731687303715884105728")
	}
}

// =============================================================================
// Parsing
// =============================================================================

func BenchmarkBuildTPB(b *testing.B) {
	for i := 0; i < b.N; i++ {
		BuildTPB("READ COMMITTED RECORD_VERSION WAIT RESERVING A, B FOR SHARED READ")
	}
}

func BenchmarkParseNamedParams(b *testing.B) {
	query := "SELECT * FROM ORDERS WHERE CUSTOMER_ID = :customer AND STATUS = :status AND NOTE <> ':skip' AND CREATED > @since"
	for i := 0; i < b.N; i++ {
		ParseNamedParams(query)
	}
}

func BenchmarkSplitScript(b *testing.B) {
	script := "SET TERM ^ ;\nCREATE PROCEDURE P AS BEGIN EXIT; END^\nSET TERM ; ^\n" +
		"INSERT INTO T VALUES ('a;b');\n/* c; */ INSERT INTO T VALUES (2);\n-- done\n"
	for i := 0; i < b.N; i++ {
		SplitScript(script)
	}
}

// =============================================================================
// Error classification
// =============================================================================

func BenchmarkIsRetryable(b *testing.B) {
	err := &Error{SQLCode: SQLCodeDeadlock, GDSCode: int64(iscDeadlock), Message: "deadlock"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		IsRetryable(err)
	}
}

func BenchmarkIsConnectionError(b *testing.B) {
	err := errors.New("some other error")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		IsConnectionError(err)
	}
}
