package mysqlproto

import (
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// Header bytes that disambiguate a generic response packet (spec §3).
const (
	headerOK           = 0x00
	headerEOF          = 0xfe
	headerErr          = 0xff
	headerLocalInFile  = 0xfb
	headerAuthMoreData = 0x01
)

// OKPacket is the server's acknowledgement of a successful command. Grounded
// on the teacher's server/protocol/ok.go OKPacket/Encode, read back here
// instead of written, plus the session-tracking tail the teacher never
// needed to parse as a server.
type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	StatusFlags  uint16
	WarningCount uint16
	Info         string
}

// ErrPacket is the server's report of a failed command. Grounded on the
// teacher's server/protocol/error.go ErrorPacket.
type ErrPacket struct {
	Code         uint16
	SQLStateFlag byte
	SQLState     string
	Message      string
}

func (e *ErrPacket) Error() string {
	return e.Message
}

// EOFPacket marks the end of a result-set column or row stream on servers
// that have not negotiated CLIENT_DEPRECATE_EOF. Grounded on the teacher's
// server/protocol/eof.go EOFPacket.
type EOFPacket struct {
	WarningCount uint16
	StatusFlags  uint16
}

// IsEOFHeader reports whether payload looks like a legacy EOF packet:
// header 0xfe and shorter than 9 bytes (a long lenenc-int result column
// could otherwise start with 0xfe too). It does not consult capabilities.
func IsEOFHeader(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerEOF && len(payload) < 9
}

// IsErrHeader reports whether payload is an ERR packet.
func IsErrHeader(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerErr
}

// IsOKHeader reports whether payload is an OK packet under caps. A
// CLIENT_DEPRECATE_EOF server also uses header 0xfe for OK packets that
// terminate a resultset (spec §4.2); under that flag any 0xfe payload
// shorter than 0xffffff bytes counts as OK.
func IsOKHeader(payload []byte, caps CapabilityFlags) bool {
	if len(payload) == 0 {
		return false
	}
	if payload[0] == headerOK {
		return true
	}
	if payload[0] == headerEOF && caps.Has(ClientDeprecateEOF) && len(payload) < 0xffffff {
		return true
	}
	return false
}

// DecodeOK decodes an OK packet body (header byte already consumed by the
// caller is NOT assumed here; header is read and validated).
func DecodeOK(payload []byte, caps CapabilityFlags) (*OKPacket, error) {
	pos := 0
	header, pos, err := readByte(payload, pos)
	if err != nil {
		return nil, err
	}
	if header != headerOK && !(header == headerEOF && caps.Has(ClientDeprecateEOF)) {
		return nil, xerrors.ProtocolViolation("not an OK packet: header 0x%02x", header)
	}

	ok := &OKPacket{}
	ok.AffectedRows, pos, _, err = readLengthEncodedInt(payload, pos)
	if err != nil {
		return nil, err
	}
	ok.LastInsertID, pos, _, err = readLengthEncodedInt(payload, pos)
	if err != nil {
		return nil, err
	}

	if caps.Has(ClientProtocol41) {
		ok.StatusFlags, pos, err = readU16(payload, pos)
		if err != nil {
			return nil, err
		}
		ok.WarningCount, pos, err = readU16(payload, pos)
		if err != nil {
			return nil, err
		}
	} else if caps.Has(ClientTransactions) {
		ok.StatusFlags, pos, err = readU16(payload, pos)
		if err != nil {
			return nil, err
		}
	}

	if pos < len(payload) {
		// remaining bytes are the human-readable info string, optionally
		// followed by a session-state-change block when ClientSessionTrack
		// is set; this client surfaces only the info text (spec §1 scopes
		// session-state tracking internals as an external concern).
		info, _, ok2, err := readLengthEncodedString(payload, pos)
		if err == nil && ok2 {
			ok.Info = string(info)
		} else {
			ok.Info = string(payload[pos:])
		}
	}

	return ok, nil
}

// DecodeErr decodes an ERR packet body. Grounded on server/protocol/error.go.
func DecodeErr(payload []byte, caps CapabilityFlags) (*ErrPacket, error) {
	pos := 0
	header, pos, err := readByte(payload, pos)
	if err != nil {
		return nil, err
	}
	if header != headerErr {
		return nil, xerrors.ProtocolViolation("not an ERR packet: header 0x%02x", header)
	}

	e := &ErrPacket{}
	e.Code, pos, err = readU16(payload, pos)
	if err != nil {
		return nil, err
	}

	if caps.Has(ClientProtocol41) {
		e.SQLStateFlag, pos, err = readByte(payload, pos)
		if err != nil {
			return nil, err
		}
		var state []byte
		state, pos, err = readBytes(payload, pos, 5)
		if err != nil {
			return nil, err
		}
		e.SQLState = string(state)
	}

	e.Message = string(payload[pos:])
	return e, nil
}

// DecodeEOF decodes an EOF packet body. Grounded on server/protocol/eof.go.
func DecodeEOF(payload []byte, caps CapabilityFlags) (*EOFPacket, error) {
	pos := 0
	header, pos, err := readByte(payload, pos)
	if err != nil {
		return nil, err
	}
	if header != headerEOF {
		return nil, xerrors.ProtocolViolation("not an EOF packet: header 0x%02x", header)
	}

	eof := &EOFPacket{}
	if caps.Has(ClientProtocol41) {
		eof.WarningCount, pos, err = readU16(payload, pos)
		if err != nil {
			return nil, err
		}
		eof.StatusFlags, _, err = readU16(payload, pos)
		if err != nil {
			return nil, err
		}
	}
	return eof, nil
}

// DecodeColumnCount reads the lenenc-int column count that opens a result
// set in the text and binary protocols alike (spec §4.6/§4.8).
func DecodeColumnCount(payload []byte) (uint64, error) {
	n, _, ok, err := readLengthEncodedInt(payload, 0)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, xerrors.ProtocolViolation("column count packet encoded NULL")
	}
	return n, nil
}

// ColumnDefinition41 is one column-definition packet under CLIENT_PROTOCOL_41,
// which every server this client targets negotiates. Grounded on the
// teacher's server/protocol/field.go Field struct and its WriteFields path,
// read back here instead of written.
type ColumnDefinition41 struct {
	Catalog      string
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	Collation    uint16
	ColumnLength uint32
	Type         ColumnType
	Flags        ColumnFlags
	Decimals     byte
}

// DecodeColumnDefinition41 parses a single column-definition packet body.
func DecodeColumnDefinition41(payload []byte) (*ColumnDefinition41, error) {
	pos := 0
	var raw []byte
	var ok bool
	var err error
	cd := &ColumnDefinition41{}

	read := func() ([]byte, error) {
		var b []byte
		b, pos, ok, err = readLengthEncodedString(payload, pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, xerrors.ProtocolViolation("column definition field encoded NULL")
		}
		return b, nil
	}

	if raw, err = read(); err != nil {
		return nil, err
	}
	cd.Catalog = string(raw)
	if raw, err = read(); err != nil {
		return nil, err
	}
	cd.Schema = string(raw)
	if raw, err = read(); err != nil {
		return nil, err
	}
	cd.Table = string(raw)
	if raw, err = read(); err != nil {
		return nil, err
	}
	cd.OrgTable = string(raw)
	if raw, err = read(); err != nil {
		return nil, err
	}
	cd.Name = string(raw)
	if raw, err = read(); err != nil {
		return nil, err
	}
	cd.OrgName = string(raw)

	// length of fixed-length fields, always 0x0c
	_, pos, _, err = readLengthEncodedInt(payload, pos)
	if err != nil {
		return nil, err
	}

	cd.Collation, pos, err = readU16(payload, pos)
	if err != nil {
		return nil, err
	}
	cd.ColumnLength, pos, err = readU32(payload, pos)
	if err != nil {
		return nil, err
	}
	var typeByte byte
	typeByte, pos, err = readByte(payload, pos)
	if err != nil {
		return nil, err
	}
	cd.Type = ColumnType(typeByte)

	var flags uint16
	flags, pos, err = readU16(payload, pos)
	if err != nil {
		return nil, err
	}
	cd.Flags = ColumnFlags(flags)

	cd.Decimals, _, err = readByte(payload, pos)
	if err != nil {
		return nil, err
	}

	return cd, nil
}

// TextRow is one row of the text result-set protocol: every field is
// either absent (SQL NULL) or the server's textual rendering of the value
// (spec §4.6). Grounded on server/protocol/rowdata.go RowData.
type TextRow struct {
	Values [][]byte
	Null   []bool
}

// DecodeTextRow parses one text-protocol row given the column count.
func DecodeTextRow(payload []byte, columnCount int) (*TextRow, error) {
	row := &TextRow{
		Values: make([][]byte, columnCount),
		Null:   make([]bool, columnCount),
	}
	pos := 0
	for i := 0; i < columnCount; i++ {
		val, newPos, ok, err := readLengthEncodedString(payload, pos)
		if err != nil {
			return nil, err
		}
		pos = newPos
		if !ok {
			row.Null[i] = true
			continue
		}
		row.Values[i] = val
	}
	return row, nil
}
