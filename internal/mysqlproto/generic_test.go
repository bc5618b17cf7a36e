package mysqlproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildOKPacket(affectedRows, lastInsertID uint64, status, warnings uint16, info string) []byte {
	buf := []byte{headerOK}
	buf = appendLengthEncodedInt(buf, affectedRows)
	buf = appendLengthEncodedInt(buf, lastInsertID)
	buf = appendU16(buf, status)
	buf = appendU16(buf, warnings)
	buf = append(buf, info...)
	return buf
}

func TestDecodeOK(t *testing.T) {
	payload := buildOKPacket(3, 42, 0x0002, 0, "")
	ok, err := DecodeOK(payload, ClientProtocol41)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ok.AffectedRows)
	assert.Equal(t, uint64(42), ok.LastInsertID)
	assert.Equal(t, uint16(0x0002), ok.StatusFlags)
}

func TestDecodeErr(t *testing.T) {
	buf := []byte{headerErr}
	buf = appendU16(buf, 1213)
	buf = append(buf, '#')
	buf = append(buf, "40001"...)
	buf = append(buf, "Deadlock found"...)

	e, err := DecodeErr(buf, ClientProtocol41)
	require.NoError(t, err)
	assert.Equal(t, uint16(1213), e.Code)
	assert.Equal(t, "40001", e.SQLState)
	assert.Equal(t, "Deadlock found", e.Message)
}

func TestDecodeEOF(t *testing.T) {
	buf := []byte{headerEOF}
	buf = appendU16(buf, 0)
	buf = appendU16(buf, 0x0002)
	eof, err := DecodeEOF(buf, ClientProtocol41)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0002), eof.StatusFlags)
}

func TestIsOKHeaderUnderDeprecateEOF(t *testing.T) {
	caps := ClientProtocol41 | ClientDeprecateEOF
	payload := buildOKPacket(0, 0, 0, 0, "")
	payload[0] = headerEOF
	assert.True(t, IsOKHeader(payload, caps))
}

func TestDecodeColumnDefinition41RoundTrip(t *testing.T) {
	buf := appendLengthEncodedString(nil, []byte("def"))
	buf = appendLengthEncodedString(buf, []byte("testdb"))
	buf = appendLengthEncodedString(buf, []byte("t"))
	buf = appendLengthEncodedString(buf, []byte("t"))
	buf = appendLengthEncodedString(buf, []byte("id"))
	buf = appendLengthEncodedString(buf, []byte("id"))
	buf = appendLengthEncodedInt(buf, 0x0c)
	buf = appendU16(buf, 33)
	buf = appendU32(buf, 11)
	buf = append(buf, byte(TypeLong))
	buf = appendU16(buf, uint16(FlagNotNull|FlagPriKey))
	buf = append(buf, 0)

	cd, err := DecodeColumnDefinition41(buf)
	require.NoError(t, err)
	assert.Equal(t, "testdb", cd.Schema)
	assert.Equal(t, "id", cd.Name)
	assert.Equal(t, TypeLong, cd.Type)
	assert.True(t, cd.Flags.Has(FlagPriKey))
}

func TestDecodeTextRowWithNull(t *testing.T) {
	buf := appendLengthEncodedString(nil, []byte("1"))
	buf = append(buf, 0xfb) // NULL
	row, err := DecodeTextRow(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "1", string(row.Values[0]))
	assert.False(t, row.Null[0])
	assert.True(t, row.Null[1])
}
