// Package xerrors defines the SQLException taxonomy callers observe. New
// traces a wrapped cause (IOFailure, Timeout) with github.com/juju/errors,
// the way the teacher's server/net package traces errors across its
// connection/session boundaries; exceptions built without a cause carry no
// cause chain.
package xerrors

import (
	"fmt"

	jerrors "github.com/juju/errors"
)

// Kind classifies a failure per the error taxonomy in spec §6/§7.
type Kind int

const (
	KindTransient Kind = iota
	KindNonTransient
	KindSyntaxError
	KindIntegrityConstraintViolation
	KindTransactionRollback
	KindTimeout
	KindInvalidAuthorization
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "SQLTransient"
	case KindNonTransient:
		return "SQLNonTransient"
	case KindSyntaxError:
		return "SQLSyntaxError"
	case KindIntegrityConstraintViolation:
		return "SQLIntegrityConstraintViolation"
	case KindTransactionRollback:
		return "SQLTransactionRollback"
	case KindTimeout:
		return "SQLTimeout"
	case KindInvalidAuthorization:
		return "SQLInvalidAuthorization"
	default:
		return "SQLException"
	}
}

// SQLException is the caller-visible error type named in spec §6.
type SQLException struct {
	Kind     Kind
	SQLState string
	Code     uint16
	Message  string
	SQL      string
	Params   []interface{}
	cause    error

	// protocolViolation marks this exception as originating from
	// ProtocolViolation specifically, distinct from every other
	// KindNonTransient exception (BadParameter, ConversionError,
	// ClosedResource, UnsupportedAuthPlugin, …). Spec §5/§7 reserve
	// connection poisoning for protocol violations alone; callers MUST
	// use IsProtocolViolation rather than inferring it from Kind, since
	// several caller-bug exceptions share KindNonTransient without
	// warranting poisoning.
	protocolViolation bool
}

// IsProtocolViolation reports whether err is a ProtocolViolation exception
// — the only case spec §5/§7 says MUST poison the connection.
func IsProtocolViolation(err error) bool {
	se, ok := err.(*SQLException)
	return ok && se.protocolViolation
}

func (e *SQLException) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.SQLState != "" {
		msg = fmt.Sprintf("%s [%s:%d]", msg, e.SQLState, e.Code)
	}
	if e.SQL != "" {
		msg = fmt.Sprintf("%s (sql=%q)", msg, e.SQL)
	}
	return msg
}

func (e *SQLException) Unwrap() error { return e.cause }

func (e *SQLException) Cause() error { return e.cause }

// New builds a bare SQLException of the given kind, tracing cause with
// juju/errors so ErrorStack(err) yields the full call chain.
func New(kind Kind, cause error, format string, args ...interface{}) *SQLException {
	traced := cause
	if traced != nil {
		traced = jerrors.Trace(traced)
	}
	return &SQLException{Kind: kind, Message: fmt.Sprintf(format, args...), cause: traced}
}

// FromServerError maps a decoded ERR packet to the appropriate SQLException
// subclass per spec §7's sqlstate-class table: 40xxx -> rollback, 08xxx ->
// transient, 42xxx and 37000 -> syntax error, 23xxx -> integrity
// constraint violation, everything else -> non-transient.
func FromServerError(code uint16, sqlState, message, sql string, params []interface{}) *SQLException {
	kind := KindNonTransient
	switch {
	case len(sqlState) >= 2 && sqlState[:2] == "40":
		kind = KindTransactionRollback
	case len(sqlState) >= 2 && sqlState[:2] == "08":
		kind = KindTransient
	case len(sqlState) >= 2 && (sqlState[:2] == "42" || sqlState == "37000"):
		kind = KindSyntaxError
	case len(sqlState) >= 2 && sqlState[:2] == "23":
		kind = KindIntegrityConstraintViolation
	}
	return &SQLException{
		Kind:     kind,
		SQLState: sqlState,
		Code:     code,
		Message:  message,
		SQL:      sql,
		Params:   params,
	}
}

// IOFailure wraps a transport error (spec §7).
func IOFailure(cause error) *SQLException {
	return New(KindTransient, cause, "i/o failure: %v", cause)
}

// Timeout wraps a deadline-exceeded transport error.
func Timeout(cause error) *SQLException {
	return New(KindTimeout, cause, "operation timed out: %v", cause)
}

// ProtocolViolation marks an unexpected packet shape; the caller MUST
// poison the connection on receipt of this kind (spec §5/§7).
func ProtocolViolation(format string, args ...interface{}) *SQLException {
	e := New(KindNonTransient, nil, "protocol violation: "+format, args...)
	e.protocolViolation = true
	return e
}

// AuthFailure wraps an ERR packet seen during the authentication phase.
func AuthFailure(code uint16, sqlState, message string) *SQLException {
	return &SQLException{Kind: KindInvalidAuthorization, Code: code, SQLState: sqlState, Message: message}
}

// UnsupportedAuthPlugin surfaces an auth-switch to a plugin this client
// doesn't implement (spec §4.4).
func UnsupportedAuthPlugin(name string) *SQLException {
	return New(KindNonTransient, nil, "unsupported authentication plugin %q", name)
}

// BadParameter surfaces an out-of-range bind index or a type mismatch
// during parameter binding — a caller bug, per spec §7.
func BadParameter(format string, args ...interface{}) *SQLException {
	return New(KindNonTransient, nil, format, args...)
}

// ConversionError surfaces a getter type mismatch (spec §4.10/§7).
func ConversionError(format string, args ...interface{}) *SQLException {
	return New(KindNonTransient, nil, format, args...)
}

// ClosedResource surfaces use-after-close on a statement, result set, or
// connection (spec §3 lifecycle invariants, §7).
func ClosedResource(resource string) *SQLException {
	return New(KindNonTransient, nil, "%s is closed", resource)
}
