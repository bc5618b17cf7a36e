package mysqlproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildInitialPacket(nonce []byte, caps CapabilityFlags, plugin string) []byte {
	buf := []byte{10}
	buf = appendNullTerminatedString(buf, []byte("8.0.31"))
	buf = appendU32(buf, 42)
	buf = append(buf, nonce[:8]...)
	buf = append(buf, 0) // filler
	buf = appendU16(buf, uint16(caps))
	buf = append(buf, 0xff) // collation
	buf = appendU16(buf, 0x0002)
	buf = appendU16(buf, uint16(caps>>16))
	buf = append(buf, byte(len(nonce)+1))
	buf = append(buf, make([]byte, 10)...)
	buf = append(buf, nonce[8:]...)
	buf = append(buf, 0)
	buf = appendNullTerminatedString(buf, []byte(plugin))
	return buf
}

func TestDecodeInitialPacket(t *testing.T) {
	nonce := []byte("01234567890123456789")[:20]
	caps := ClientProtocol41 | ClientSecureConnection | ClientPluginAuth
	raw := buildInitialPacket(nonce, caps, "mysql_native_password")

	hs, err := DecodeInitialPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(10), hs.ProtocolVersion)
	assert.Equal(t, "8.0.31", hs.ServerVersion)
	assert.Equal(t, uint32(42), hs.ConnectionID)
	assert.Equal(t, nonce, hs.AuthPluginData)
	assert.Equal(t, "mysql_native_password", hs.AuthPluginName)
	assert.True(t, hs.Capabilities.Has(ClientPluginAuth))
}

func TestHandshakeResponseEncodeDecodeShape(t *testing.T) {
	resp := &HandshakeResponse{
		ClientFlags:    ClientProtocol41 | ClientSecureConnection | ClientPluginAuth | ClientConnectWithDB,
		MaxPacketSize:  MaxPayloadLen,
		Collation:      33,
		Username:       "root",
		AuthResponse:   []byte{1, 2, 3, 4},
		Database:       "testdb",
		AuthPluginName: "mysql_native_password",
	}
	buf := resp.Encode()

	pos := 0
	flags, pos, err := readU32(buf, pos)
	require.NoError(t, err)
	assert.Equal(t, uint32(resp.ClientFlags), flags)

	maxPacket, pos, err := readU32(buf, pos)
	require.NoError(t, err)
	assert.Equal(t, resp.MaxPacketSize, maxPacket)

	collation, pos, err := readByte(buf, pos)
	require.NoError(t, err)
	assert.Equal(t, resp.Collation, collation)

	pos += 23 // filler

	user, pos, err := readNullTerminatedString(buf, pos)
	require.NoError(t, err)
	assert.Equal(t, resp.Username, string(user))

	authLen, pos, err := readByte(buf, pos)
	require.NoError(t, err)
	auth, pos, err := readBytes(buf, pos, int(authLen))
	require.NoError(t, err)
	assert.Equal(t, resp.AuthResponse, auth)

	db, pos, err := readNullTerminatedString(buf, pos)
	require.NoError(t, err)
	assert.Equal(t, resp.Database, string(db))

	plugin, _, err := readNullTerminatedString(buf, pos)
	require.NoError(t, err)
	assert.Equal(t, resp.AuthPluginName, string(plugin))
}
