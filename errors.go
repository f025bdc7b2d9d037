package fb

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Error is a failure reported by the Firebird client through a status vector.
// It carries the SQLCODE, the primary GDS code and the interpreted message chain.
type Error struct {
	SQLCode int32
	GDSCode int64
	Message string
	Op      string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (sqlcode: %d, gdscode: %d)", e.Op, e.Message, e.SQLCode, e.GDSCode)
	}
	return fmt.Sprintf("%s (sqlcode: %d, gdscode: %d)", e.Message, e.SQLCode, e.GDSCode)
}

// Unwrap returns nil as Error is a terminal error type.
func (e *Error) Unwrap() error {
	return nil
}

// Is reports whether target is an *Error with the same GDS code, or with the
// same SQLCODE when target carries no GDS code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.GDSCode != 0 {
		return e.GDSCode == t.GDSCode
	}
	return e.SQLCode == t.SQLCode
}

// Errors collects several failures, typically from cleanup that keeps going.
type Errors []error

// Error implements the error interface for multiple errors
func (e Errors) Error() string {
	if len(e) == 0 {
		return "unknown firebird error"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	return e
}

// Err returns nil for an empty collection, the sole error for one, else e.
func (e Errors) Err() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	default:
		return e
	}
}

// Error kinds raised by the binding itself. Details are attached with
// errors.Wrapf, so errors.Is matches the kind.
var (
	ErrConnectionClosed           = errors.New("closed connection")
	ErrCursorClosed               = errors.New("cursor is not open")
	ErrCursorDropped              = errors.New("dropped cursor")
	ErrTransactionAlreadyStarted  = errors.New("a transaction has already been started")
	ErrIllegalTransactionOption   = errors.New("illegal transaction option was specified")
	ErrDuplicateTransactionOption = errors.New("duplicate transaction option was specified")
	ErrValueTooLong               = errors.New("value too long")
	ErrOverflow                   = errors.New("numeric overflow")
	ErrNotNullable                = errors.New("column is not nullable")
	ErrUnsupportedType            = errors.New("unsupported type")
	ErrTransactionStatement       = errors.New("use StartTransaction, Commit and Rollback instead of transaction statements")
	ErrInvalidPageSize            = errors.New("invalid page size")
)

// SQLCODE values worth naming
const (
	SQLCodeUniqueViolation = -803
	SQLCodeDeadlock        = -913
	SQLCodeLockConflict    = -901
)

// =============================================================================
// Status vector checks
// =============================================================================

// failed reports whether the vector describes an error.
func (sv *StatusVector) failed() bool {
	return sv[0] == 1 && sv[1] != 0
}

// statusError converts a failed status vector into an *Error, or returns nil.
func statusError(api clientAPI, sv *StatusVector, op string) error {
	if !sv.failed() {
		return nil
	}
	code := api.sqlCode(sv)
	lines := make([]string, 0, 4)
	if msg := api.sqlInterpret(code); msg != "" {
		lines = append(lines, msg)
	}
	lines = append(lines, api.interpret(sv)...)
	return &Error{
		SQLCode: code,
		GDSCode: int64(sv[1]),
		Message: strings.Join(lines, "\n"),
		Op:      op,
	}
}

// warnStatus logs a failed status vector instead of returning it. Used on
// cleanup paths so that teardown never masks the error being reported.
func warnStatus(api clientAPI, sv *StatusVector, op string, logger *zap.Logger) {
	err := statusError(api, sv, op)
	if err == nil {
		return
	}
	fe := err.(*Error)
	logger.Warn("firebird cleanup failed",
		zap.String("op", op),
		zap.Int32("sqlcode", fe.SQLCode),
		zap.Int64("gdscode", fe.GDSCode),
		zap.String("message", fe.Message))
}

// =============================================================================
// Helpers
// =============================================================================

// IsServerError reports whether err came from the Firebird server or client library.
func IsServerError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// SQLCodeOf returns the SQLCODE carried by err, or 0 if it has none.
func SQLCodeOf(err error) int32 {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.SQLCode
	}
	return 0
}

// IsUniqueViolation reports whether err is a primary key or unique constraint violation.
func IsUniqueViolation(err error) bool {
	return SQLCodeOf(err) == SQLCodeUniqueViolation
}

// IsDeadlock reports whether err is an update conflict or deadlock.
func IsDeadlock(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.SQLCode == SQLCodeDeadlock || ISCStatus(fe.GDSCode) == iscDeadlock
}

// IsLockConflict reports whether err is a lock conflict, which a WAIT
// transaction or a retry may resolve.
func IsLockConflict(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return ISCStatus(fe.GDSCode) == iscLockConflict || fe.SQLCode == SQLCodeLockConflict
}

// IsConnectionError reports whether err means the attachment is gone: a
// network failure or a server shutdown.
func IsConnectionError(err error) bool {
	if errors.Is(err, ErrConnectionClosed) {
		return true
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	switch ISCStatus(fe.GDSCode) {
	case iscShutdown, iscNetworkError, iscNetReadErr, iscNetWriteErr:
		return true
	}
	return false
}

// IsRetryable reports whether err is transient: deadlocks and lock conflicts.
func IsRetryable(err error) bool {
	return IsDeadlock(err) || IsLockConflict(err)
}

// FormatStatus returns a short description of a raw status code.
func FormatStatus(code ISCStatus) string {
	switch code {
	case 0:
		return "OK"
	case fetchNoMoreRows:
		return "NO_MORE_ROWS"
	case iscSegment:
		return "isc_segment"
	case iscSegstrEOF:
		return "isc_segstr_eof"
	case iscLockConflict:
		return "isc_lock_conflict"
	case iscDeadlock:
		return "isc_deadlock"
	default:
		return fmt.Sprintf("ISC_STATUS(%d)", code)
	}
}
