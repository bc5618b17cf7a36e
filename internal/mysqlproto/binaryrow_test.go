package mysqlproto

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBinaryParamsAndDecodeBinaryRowRoundTrip(t *testing.T) {
	nullBitmap, typesAndValues, err := EncodeBinaryParams([]interface{}{
		int64(42),
		"hello",
		nil,
	})
	require.NoError(t, err)
	require.Len(t, nullBitmap, 1)
	assert.Equal(t, byte(1<<2), nullBitmap[0])

	columns := []*ColumnDefinition41{
		{Type: TypeLonglong},
		{Type: TypeVarString},
		{Type: TypeNull},
	}

	// types section is 2 bytes per param, values follow.
	types := typesAndValues[:len(columns)*2]
	values := typesAndValues[len(columns)*2:]
	assert.Equal(t, byte(TypeLonglong), types[0])
	assert.Equal(t, byte(TypeVarString), types[2])
	assert.Equal(t, byte(TypeNull), types[4])

	rowBuf := []byte{0x00}
	rowBuf = append(rowBuf, encodeRowNullBitmap(len(columns), []bool{false, false, true})...)
	rowBuf = append(rowBuf, values...)

	row, err := DecodeBinaryRow(rowBuf, columns)
	require.NoError(t, err)
	assert.Equal(t, int64(42), row.Values[0])
	assert.Equal(t, "hello", string(row.Values[1].([]byte)))
	assert.True(t, row.Null[2])
}

// encodeRowNullBitmap builds a binary-protocol row's null bitmap, offset by
// 2 bits per spec §4.8, mirroring nullBitmapSize's layout.
func encodeRowNullBitmap(n int, null []bool) []byte {
	buf := make([]byte, nullBitmapSize(n))
	for i, isNull := range null {
		if !isNull {
			continue
		}
		bytePos := (i + 2) / 8
		bitPos := uint((i + 2) % 8)
		buf[bytePos] |= 1 << bitPos
	}
	return buf
}

func TestDecodeBinaryValueUnsignedInteger(t *testing.T) {
	buf := appendU32(nil, 4000000000)
	v, pos, err := decodeBinaryValue(buf, 0, TypeLong, FlagUnsigned)
	require.NoError(t, err)
	assert.Equal(t, 4, pos)
	assert.Equal(t, uint32(4000000000), v)
}

func TestEncodeBinaryParamsBoolDecimalAndTime(t *testing.T) {
	when := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	_, typesAndValues, err := EncodeBinaryParams([]interface{}{
		true,
		decimal.RequireFromString("12.50"),
		when,
	})
	require.NoError(t, err)

	types := typesAndValues[:6]
	values := typesAndValues[6:]
	assert.Equal(t, byte(TypeTiny), types[0])
	assert.Equal(t, byte(TypeNewDecimal), types[2])
	assert.Equal(t, byte(TypeDatetime), types[4])

	// bool(true) -> single 0x01 byte.
	require.Equal(t, byte(1), values[0])
	values = values[1:]

	// decimal -> lenenc string "12.50".
	require.Equal(t, byte(5), values[0])
	assert.Equal(t, "12.50", string(values[1:6]))
	values = values[6:]

	// time.Time at midnight-free wall clock -> length=7 temporal.
	require.Equal(t, byte(7), values[0])
	v, pos, err := decodeBinaryValue(values, 0, TypeDatetime, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, pos)
	temporal := v.(*BinaryTemporal)
	assert.Equal(t, uint16(2024), temporal.Year)
	assert.Equal(t, byte(3), temporal.Month)
	assert.Equal(t, byte(15), temporal.Day)
	assert.Equal(t, byte(9), temporal.Hour)
	assert.Equal(t, byte(30), temporal.Minute)
}

func TestDecodeBinaryTemporalDateOnly(t *testing.T) {
	buf := []byte{4} // length=4: date only
	buf = appendU16(buf, 2024)
	buf = append(buf, 3, 15) // month, day
	v, pos, err := decodeBinaryValue(buf, 0, TypeDate, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), pos)
	temporal := v.(*BinaryTemporal)
	assert.Equal(t, uint16(2024), temporal.Year)
	assert.Equal(t, byte(3), temporal.Month)
	assert.Equal(t, byte(15), temporal.Day)
}
