package resultset

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
)

func textColumns(names ...string) []*mysqlproto.ColumnDefinition41 {
	cols := make([]*mysqlproto.ColumnDefinition41, len(names))
	for i, n := range names {
		cols[i] = &mysqlproto.ColumnDefinition41{Name: n}
	}
	return cols
}

func textRow(values ...string) *mysqlproto.TextRow {
	tr := &mysqlproto.TextRow{
		Values: make([][]byte, len(values)),
		Null:   make([]bool, len(values)),
	}
	for i, v := range values {
		if v == "\x00NULL" {
			tr.Null[i] = true
			continue
		}
		tr.Values[i] = []byte(v)
	}
	return tr
}

func TestResultSetForwardOnlyScroll(t *testing.T) {
	cols := textColumns("id", "name")
	rows := []*mysqlproto.TextRow{
		textRow("1", "alice"),
		textRow("2", "bob"),
	}
	rs := NewFromTextRows(cols, rows, ForwardOnly, ReadOnly, ZeroDateConvertError)

	ok, err := rs.Next()
	require.NoError(t, err)
	require.True(t, ok)
	id, err := rs.GetInt64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	name, err := rs.GetStringByLabel("name")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	ok, err = rs.Next()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rs.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = rs.Previous()
	assert.Error(t, err)
}

func TestResultSetScrollableAbsoluteAndRelative(t *testing.T) {
	cols := textColumns("id")
	rows := []*mysqlproto.TextRow{textRow("10"), textRow("20"), textRow("30")}
	rs := NewFromTextRows(cols, rows, ScrollInsensitive, ReadOnly, ZeroDateConvertError)

	ok, err := rs.Absolute(2)
	require.NoError(t, err)
	require.True(t, ok)
	v, err := rs.GetInt64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)

	ok, err = rs.Absolute(-1)
	require.NoError(t, err)
	require.True(t, ok)
	v, err = rs.GetInt64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)

	ok, err = rs.Relative(-2)
	require.NoError(t, err)
	require.True(t, ok)
	v, err = rs.GetInt64(1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	require.NoError(t, rs.BeforeFirst())
	assert.True(t, rs.IsBeforeFirst())

	require.NoError(t, rs.AfterLast())
	assert.True(t, rs.IsAfterLast())
}

func TestResultSetNullTracking(t *testing.T) {
	cols := textColumns("value")
	rows := []*mysqlproto.TextRow{textRow("\x00NULL")}
	rs := NewFromTextRows(cols, rows, ForwardOnly, ReadOnly, ZeroDateConvertError)

	ok, err := rs.Next()
	require.NoError(t, err)
	require.True(t, ok)

	s, err := rs.GetString(1)
	require.NoError(t, err)
	assert.Equal(t, "", s)
	assert.True(t, rs.WasNull())
}

func TestResultSetGetDecimal(t *testing.T) {
	cols := textColumns("price")
	rows := []*mysqlproto.TextRow{textRow("19.99")}
	rs := NewFromTextRows(cols, rows, ForwardOnly, ReadOnly, ZeroDateConvertError)

	ok, err := rs.Next()
	require.NoError(t, err)
	require.True(t, ok)

	d, err := rs.GetDecimal(1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(19.99).Equal(d))
}

func TestResultSetZeroDateBehaviors(t *testing.T) {
	cols := textColumns("created_at")

	rs := NewFromTextRows(cols, []*mysqlproto.TextRow{textRow("0000-00-00")}, ForwardOnly, ReadOnly, ZeroDateConvertError)
	ok, err := rs.Next()
	require.NoError(t, err)
	require.True(t, ok)
	_, err = rs.GetTime(1)
	assert.Error(t, err)

	rs = NewFromTextRows(cols, []*mysqlproto.TextRow{textRow("0000-00-00")}, ForwardOnly, ReadOnly, ZeroDateToNull)
	ok, err = rs.Next()
	require.NoError(t, err)
	require.True(t, ok)
	_, err = rs.GetTime(1)
	require.NoError(t, err)
	assert.True(t, rs.WasNull())
}

func TestResultSetCloseInvalidatesCursor(t *testing.T) {
	cols := textColumns("id")
	rs := NewFromTextRows(cols, []*mysqlproto.TextRow{textRow("1")}, ForwardOnly, ReadOnly, ZeroDateConvertError)
	rs.Close()

	_, err := rs.Next()
	assert.Error(t, err)
}
