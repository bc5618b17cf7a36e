package mysqlproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthEncodedIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 250, 251, 252, 65535, 65536, 1<<24 - 1, 1 << 24, 1 << 40}
	for _, v := range cases {
		buf := appendLengthEncodedInt(nil, v)
		got, pos, ok, err := readLengthEncodedInt(buf, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), pos)
		assert.Equal(t, len(buf), lengthEncodedIntSize(v))
	}
}

func TestLengthEncodedIntNull(t *testing.T) {
	v, pos, ok, err := readLengthEncodedInt([]byte{0xfb}, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, 1, pos)
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	buf := appendLengthEncodedString(nil, []byte("hello world"))
	got, pos, ok, err := readLengthEncodedString(buf, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello world", string(got))
	assert.Equal(t, len(buf), pos)
}

func TestNullTerminatedStringRoundTrip(t *testing.T) {
	buf := appendNullTerminatedString(nil, []byte("abc"))
	got, pos, err := readNullTerminatedString(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, len(buf), pos)
}

func TestReadLengthEncodedIntInvalidPrefix(t *testing.T) {
	// 0xff is not a valid lenenc-int prefix (reserved for ERR packet header
	// elsewhere, never a valid integer lead byte).
	_, _, _, err := readLengthEncodedInt([]byte{0xff}, 0)
	assert.Error(t, err)
}
