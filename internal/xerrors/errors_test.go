package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromServerErrorMapsSQLStateClasses(t *testing.T) {
	cases := []struct {
		sqlState string
		want     Kind
	}{
		{"40001", KindTransactionRollback},
		{"08001", KindTransient},
		{"42000", KindSyntaxError},
		{"37000", KindSyntaxError},
		{"23000", KindIntegrityConstraintViolation},
		{"HY000", KindNonTransient},
	}
	for _, tc := range cases {
		e := FromServerError(1213, tc.sqlState, "boom", "SELECT 1", nil)
		assert.Equal(t, tc.want, e.Kind, "sqlstate %s", tc.sqlState)
		assert.Equal(t, tc.sqlState, e.SQLState)
		assert.Equal(t, "SELECT 1", e.SQL)
	}
}

func TestSQLExceptionUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	e := IOFailure(cause)
	assert.NotNil(t, e.Unwrap())
	assert.Equal(t, KindTransient, e.Kind)
}

func TestClosedResourceMessage(t *testing.T) {
	e := ClosedResource("result set")
	assert.Contains(t, e.Error(), "result set is closed")
}

func TestIsProtocolViolationDistinguishesFromOtherNonTransientKinds(t *testing.T) {
	assert.True(t, IsProtocolViolation(ProtocolViolation("unexpected packet")))

	// BadParameter, ConversionError, and ClosedResource all share
	// KindNonTransient with ProtocolViolation but are caller bugs, not
	// wire-level corruption (spec §7) — none of them should be mistaken
	// for a protocol violation.
	assert.False(t, IsProtocolViolation(BadParameter("bad index")))
	assert.False(t, IsProtocolViolation(ConversionError("bad type")))
	assert.False(t, IsProtocolViolation(ClosedResource("statement")))
	assert.False(t, IsProtocolViolation(errors.New("plain error")))
}
