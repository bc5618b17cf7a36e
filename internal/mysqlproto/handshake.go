package mysqlproto

import (
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// InitialPacket is the server's greeting sent once per connection, before
// any command is possible (spec §3 "Initial packet").
type InitialPacket struct {
	ProtocolVersion  byte
	ServerVersion    string
	ConnectionID     uint32
	AuthPluginData   []byte // scramble part 1 (8 bytes) + part 2 concatenated
	Capabilities     CapabilityFlags
	Collation        byte
	StatusFlags      uint16
	AuthPluginName   string
}

// DecodeInitialPacket parses the server's handshake-v10 greeting. Grounded
// on the teacher's server/protocol/handshark.go DecodeHandshake, which
// already reads this exact layout (the teacher wrote it to drive its own
// test client); generalized here to assemble the two scramble halves into
// one nonce and to split the capability flags' low/high halves per spec §3.
func DecodeInitialPacket(payload []byte) (*InitialPacket, error) {
	pos := 0
	var err error
	hs := &InitialPacket{}

	hs.ProtocolVersion, pos, err = readByte(payload, pos)
	if err != nil {
		return nil, err
	}
	if hs.ProtocolVersion != 10 {
		return nil, xerrors.ProtocolViolation("unsupported handshake protocol version %d", hs.ProtocolVersion)
	}

	var verBytes []byte
	verBytes, pos, err = readNullTerminatedString(payload, pos)
	if err != nil {
		return nil, err
	}
	hs.ServerVersion = string(verBytes)

	var connID uint32
	connID, pos, err = readU32(payload, pos)
	if err != nil {
		return nil, err
	}
	hs.ConnectionID = connID

	var scramble1 []byte
	scramble1, pos, err = readBytes(payload, pos, 8)
	if err != nil {
		return nil, err
	}

	// filler
	_, pos, err = readByte(payload, pos)
	if err != nil {
		return nil, err
	}

	var capLow uint16
	capLow, pos, err = readU16(payload, pos)
	if err != nil {
		return nil, err
	}

	hs.Collation, pos, err = readByte(payload, pos)
	if err != nil {
		return nil, err
	}

	hs.StatusFlags, pos, err = readU16(payload, pos)
	if err != nil {
		return nil, err
	}

	var capHigh uint16
	capHigh, pos, err = readU16(payload, pos)
	if err != nil {
		return nil, err
	}
	hs.Capabilities = CapabilityFlags(uint32(capLow) | uint32(capHigh)<<16)

	var authDataLen byte
	authDataLen, pos, err = readByte(payload, pos)
	if err != nil {
		return nil, err
	}

	// 10 reserved bytes
	_, pos, err = readBytes(payload, pos, 10)
	if err != nil {
		return nil, err
	}

	scramble2Len := int(authDataLen) - 8
	if scramble2Len < 13 {
		scramble2Len = 13 // MySQL pads to at least 13 bytes (12 + null) when the server under-reports
	}
	var scramble2 []byte
	scramble2, pos, err = readBytes(payload, pos, scramble2Len)
	if err != nil {
		return nil, err
	}
	if n := len(scramble2); n > 0 && scramble2[n-1] == 0 {
		scramble2 = scramble2[:n-1]
	}
	hs.AuthPluginData = append(append([]byte{}, scramble1...), scramble2...)

	if hs.Capabilities.Has(ClientPluginAuth) && pos < len(payload) {
		var name []byte
		name, _, err = readNullTerminatedString(payload, pos)
		if err != nil {
			// some servers omit the trailing null on the final field
			name = payload[pos:]
		}
		hs.AuthPluginName = string(name)
	}

	return hs, nil
}

// HandshakeResponse is the client's answer to InitialPacket (spec §3/§4.2).
type HandshakeResponse struct {
	ClientFlags     CapabilityFlags
	MaxPacketSize   uint32
	Collation       byte
	Username        string
	AuthResponse    []byte
	Database        string
	AuthPluginName  string
}

// Encode serializes the handshake response per spec §3's field order.
func (r *HandshakeResponse) Encode() []byte {
	buf := make([]byte, 0, 64+len(r.Username)+len(r.AuthResponse)+len(r.Database))
	buf = appendU32(buf, uint32(r.ClientFlags))
	buf = appendU32(buf, r.MaxPacketSize)
	buf = append(buf, r.Collation)
	buf = append(buf, make([]byte, 23)...) // filler
	buf = appendNullTerminatedString(buf, []byte(r.Username))

	if r.ClientFlags.Has(ClientPluginAuthLenencClientData) {
		buf = appendLengthEncodedString(buf, r.AuthResponse)
	} else if r.ClientFlags.Has(ClientSecureConnection) {
		buf = append(buf, byte(len(r.AuthResponse)))
		buf = append(buf, r.AuthResponse...)
	} else {
		buf = appendNullTerminatedString(buf, r.AuthResponse)
	}

	if r.ClientFlags.Has(ClientConnectWithDB) {
		buf = appendNullTerminatedString(buf, []byte(r.Database))
	}

	if r.ClientFlags.Has(ClientPluginAuth) {
		buf = appendNullTerminatedString(buf, []byte(r.AuthPluginName))
	}

	return buf
}
