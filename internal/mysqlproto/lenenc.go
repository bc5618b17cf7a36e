package mysqlproto

import "github.com/xmysql/go-mysql-client/internal/xerrors"

// This file is the decode-direction twin of the teacher's util package
// (util/buffer_reader.go, util/buffer_writer.go): the teacher wrote these
// as a server encoding responses and decoding client requests; a client
// needs exactly the same lenenc-int/string scheme in both directions, so
// the byte layout — and therefore the bulk of this code — carries over
// unchanged in shape, reworked into cursor-returning helpers over a single
// buffer.

// readByte reads one byte and advances the cursor.
func readByte(buf []byte, pos int) (byte, int, error) {
	if pos >= len(buf) {
		return 0, pos, xerrors.ProtocolViolation("short packet: expected 1 byte at offset %d", pos)
	}
	return buf[pos], pos + 1, nil
}

func readBytes(buf []byte, pos, n int) ([]byte, int, error) {
	if n < 0 || pos+n > len(buf) {
		return nil, pos, xerrors.ProtocolViolation("short packet: expected %d bytes at offset %d", n, pos)
	}
	return buf[pos : pos+n], pos + n, nil
}

func readU16(buf []byte, pos int) (uint16, int, error) {
	b, pos, err := readBytes(buf, pos, 2)
	if err != nil {
		return 0, pos, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, pos, nil
}

func readU24(buf []byte, pos int) (uint32, int, error) {
	b, pos, err := readBytes(buf, pos, 3)
	if err != nil {
		return 0, pos, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, pos, nil
}

func readU32(buf []byte, pos int) (uint32, int, error) {
	b, pos, err := readBytes(buf, pos, 4)
	if err != nil {
		return 0, pos, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, pos, nil
}

func readU64(buf []byte, pos int) (uint64, int, error) {
	b, pos, err := readBytes(buf, pos, 8)
	if err != nil {
		return 0, pos, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, pos, nil
}

// readLengthEncodedInt decodes MySQL's mixed 1/3/4/9-byte lenenc-int
// scheme (spec §3 GLOSSARY). The bool return is false iff the encoded
// value was the NULL marker (0xFB).
func readLengthEncodedInt(buf []byte, pos int) (uint64, int, bool, error) {
	first, pos, err := readByte(buf, pos)
	if err != nil {
		return 0, pos, false, err
	}
	switch {
	case first < 0xfb:
		return uint64(first), pos, true, nil
	case first == 0xfb:
		return 0, pos, false, nil
	case first == 0xfc:
		v, pos, err := readU16(buf, pos)
		return uint64(v), pos, true, err
	case first == 0xfd:
		v, pos, err := readU24(buf, pos)
		return uint64(v), pos, true, err
	case first == 0xfe:
		v, pos, err := readU64(buf, pos)
		return v, pos, true, err
	default:
		return 0, pos, false, xerrors.ProtocolViolation("invalid length-encoded integer prefix 0x%02x", first)
	}
}

// readLengthEncodedString reads a lenenc-int length prefix followed by
// that many bytes. ok is false for a SQL NULL field.
func readLengthEncodedString(buf []byte, pos int) ([]byte, int, bool, error) {
	n, pos, ok, err := readLengthEncodedInt(buf, pos)
	if err != nil || !ok {
		return nil, pos, ok, err
	}
	b, pos, err := readBytes(buf, pos, int(n))
	return b, pos, true, err
}

// readNullTerminatedString reads bytes up to (and consuming) the next 0x00.
func readNullTerminatedString(buf []byte, pos int) ([]byte, int, error) {
	for i := pos; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[pos:i], i + 1, nil
		}
	}
	return nil, pos, xerrors.ProtocolViolation("unterminated null-terminated string at offset %d", pos)
}

// --- encode side ---

func appendU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func appendU24(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16))
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

// appendLengthEncodedInt encodes v using the fewest bytes the lenenc-int
// scheme allows.
func appendLengthEncodedInt(buf []byte, v uint64) []byte {
	switch {
	case v < 251:
		return append(buf, byte(v))
	case v < 1<<16:
		buf = append(buf, 0xfc)
		return appendU16(buf, uint16(v))
	case v < 1<<24:
		buf = append(buf, 0xfd)
		return appendU24(buf, uint32(v))
	default:
		buf = append(buf, 0xfe)
		return appendU64(buf, v)
	}
}

func appendLengthEncodedString(buf []byte, s []byte) []byte {
	buf = appendLengthEncodedInt(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendNullTerminatedString(buf []byte, s []byte) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// lengthEncodedIntSize returns how many bytes appendLengthEncodedInt(v)
// would produce, for pre-sizing buffers.
func lengthEncodedIntSize(v uint64) int {
	switch {
	case v < 251:
		return 1
	case v < 1<<16:
		return 3
	case v < 1<<24:
		return 4
	default:
		return 9
	}
}
