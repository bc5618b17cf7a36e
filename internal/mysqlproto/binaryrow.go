package mysqlproto

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// BinaryRow is one row of the binary (prepared-statement) result-set
// protocol: a leading packet header byte (always 0x00), a null-bitmap
// offset by 2, then one wire-encoded value per non-null column (spec §4.8).
// Grounded on the teacher's server/protocol/rowdata.go, generalized from
// its server-side encode path to a client-side decode path.
type BinaryRow struct {
	Null   []bool
	Values []interface{}
}

// nullBitmapSize returns the byte length of a binary-protocol null bitmap
// for n columns, offset by 2 bits per spec §4.8.
func nullBitmapSize(n int) int {
	return (n + 7 + 2) / 8
}

// DecodeBinaryRow parses one binary-protocol row given its column
// definitions (type drives the value's wire width).
func DecodeBinaryRow(payload []byte, columns []*ColumnDefinition41) (*BinaryRow, error) {
	pos := 0
	header, pos, err := readByte(payload, pos)
	if err != nil {
		return nil, err
	}
	if header != 0x00 {
		return nil, xerrors.ProtocolViolation("binary row packet missing 0x00 header, got 0x%02x", header)
	}

	n := len(columns)
	bitmapLen := nullBitmapSize(n)
	bitmap, pos, err := readBytes(payload, pos, bitmapLen)
	if err != nil {
		return nil, err
	}

	row := &BinaryRow{
		Null:   make([]bool, n),
		Values: make([]interface{}, n),
	}
	for i := range row.Null {
		bytePos := (i + 2) / 8
		bitPos := uint((i + 2) % 8)
		row.Null[i] = bitmap[bytePos]&(1<<bitPos) != 0
	}

	for i, col := range columns {
		if row.Null[i] {
			continue
		}
		var v interface{}
		v, pos, err = decodeBinaryValue(payload, pos, col.Type, col.Flags)
		if err != nil {
			return nil, err
		}
		row.Values[i] = v
	}

	return row, nil
}

func decodeBinaryValue(buf []byte, pos int, t ColumnType, flags ColumnFlags) (interface{}, int, error) {
	unsigned := flags.Has(FlagUnsigned)
	switch t {
	case TypeTiny:
		b, pos, err := readByte(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		if unsigned {
			return uint8(b), pos, nil
		}
		return int8(b), pos, nil

	case TypeShort, TypeYear:
		v, pos, err := readU16(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		if unsigned {
			return v, pos, nil
		}
		return int16(v), pos, nil

	case TypeLong, TypeInt24:
		v, pos, err := readU32(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		if unsigned {
			return v, pos, nil
		}
		return int32(v), pos, nil

	case TypeLonglong:
		v, pos, err := readU64(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		if unsigned {
			return v, pos, nil
		}
		return int64(v), pos, nil

	case TypeFloat:
		b, pos, err := readBytes(buf, pos, 4)
		if err != nil {
			return nil, pos, err
		}
		bits := binary.LittleEndian.Uint32(b)
		return math.Float32frombits(bits), pos, nil

	case TypeDouble:
		b, pos, err := readBytes(buf, pos, 8)
		if err != nil {
			return nil, pos, err
		}
		bits := binary.LittleEndian.Uint64(b)
		return math.Float64frombits(bits), pos, nil

	case TypeDate, TypeDatetime, TypeTimestamp:
		return decodeBinaryTemporal(buf, pos)

	case TypeTime:
		return decodeBinaryDuration(buf, pos)

	case TypeDecimal, TypeNewDecimal, TypeVarchar, TypeVarString, TypeString,
		TypeEnum, TypeSet, TypeJSON, TypeTinyBlob, TypeMediumBlob, TypeLongBlob,
		TypeBlob, TypeGeometry, TypeBit:
		b, pos, ok, err := readLengthEncodedString(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		if !ok {
			return nil, pos, xerrors.ProtocolViolation("non-null binary value encoded as lenenc NULL")
		}
		return append([]byte{}, b...), pos, nil

	default:
		return nil, pos, xerrors.ProtocolViolation("unsupported binary-protocol column type %s", t)
	}
}

// BinaryTemporal is the decoded form of DATE/DATETIME/TIMESTAMP binary
// values, all of which share one variable-length wire encoding (spec §4.8).
type BinaryTemporal struct {
	Year        uint16
	Month       byte
	Day         byte
	Hour        byte
	Minute      byte
	Second      byte
	Microsecond uint32
}

func decodeBinaryTemporal(buf []byte, pos int) (*BinaryTemporal, int, error) {
	length, pos, err := readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	t := &BinaryTemporal{}
	if length == 0 {
		return t, pos, nil
	}
	t.Year, pos, err = readU16(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	t.Month, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	t.Day, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	if length == 4 {
		return t, pos, nil
	}
	t.Hour, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	t.Minute, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	t.Second, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	if length == 7 {
		return t, pos, nil
	}
	t.Microsecond, pos, err = readU32(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	return t, pos, nil
}

// BinaryDuration is the decoded form of a binary-protocol TIME value.
type BinaryDuration struct {
	Negative    bool
	Days        uint32
	Hour        byte
	Minute      byte
	Second      byte
	Microsecond uint32
}

func decodeBinaryDuration(buf []byte, pos int) (*BinaryDuration, int, error) {
	length, pos, err := readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	d := &BinaryDuration{}
	if length == 0 {
		return d, pos, nil
	}
	neg, pos, err := readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	d.Negative = neg != 0
	d.Days, pos, err = readU32(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	d.Hour, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	d.Minute, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	d.Second, pos, err = readByte(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	if length == 8 {
		return d, pos, nil
	}
	d.Microsecond, pos, err = readU32(buf, pos)
	if err != nil {
		return nil, pos, err
	}
	return d, pos, nil
}

// EncodeBinaryParams serializes the parameter values of a COM_STMT_EXECUTE
// request: it returns the null-bitmap and, separately, the type block (two
// bytes per parameter, NULL parameters included) followed by the values of
// the non-NULL parameters (spec §4.8). The new-params-bound-flag byte is
// written by EncodeComStmtExecute, not here. Grounded on the same
// rowdata.go wire shapes, written instead of read this time.
func EncodeBinaryParams(params []interface{}) (nullBitmap []byte, typesAndValues []byte, err error) {
	n := len(params)
	bitmapLen := (n + 7) / 8
	nullBitmap = make([]byte, bitmapLen)

	types := make([]byte, 0, n*2)
	values := make([]byte, 0, n*8)

	for i, p := range params {
		if p == nil {
			nullBitmap[i/8] |= 1 << uint(i%8)
			types = append(types, byte(TypeNull), 0)
			continue
		}
		t, unsigned, encoded, encErr := encodeBinaryValue(p)
		if encErr != nil {
			return nil, nil, encErr
		}
		flagByte := byte(0)
		if unsigned {
			flagByte = 0x80
		}
		types = append(types, byte(t), flagByte)
		values = append(values, encoded...)
	}

	typesAndValues = append(types, values...)
	return nullBitmap, typesAndValues, nil
}

func encodeBinaryValue(v interface{}) (ColumnType, bool, []byte, error) {
	switch val := v.(type) {
	case bool:
		b := byte(0)
		if val {
			b = 1
		}
		return TypeTiny, false, []byte{b}, nil
	case int8:
		return TypeTiny, false, []byte{byte(val)}, nil
	case uint8:
		return TypeTiny, true, []byte{val}, nil
	case int16:
		return TypeShort, false, appendU16(nil, uint16(val)), nil
	case uint16:
		return TypeShort, true, appendU16(nil, val), nil
	case int32:
		return TypeLong, false, appendU32(nil, uint32(val)), nil
	case uint32:
		return TypeLong, true, appendU32(nil, val), nil
	case int:
		return TypeLonglong, false, appendU64(nil, uint64(val)), nil
	case int64:
		return TypeLonglong, false, appendU64(nil, uint64(val)), nil
	case uint64:
		return TypeLonglong, true, appendU64(nil, val), nil
	case float32:
		return TypeFloat, false, appendU32(nil, math.Float32bits(val)), nil
	case float64:
		return TypeDouble, false, appendU64(nil, math.Float64bits(val)), nil
	case string:
		return TypeVarString, false, appendLengthEncodedString(nil, []byte(val)), nil
	case []byte:
		return TypeBlob, false, appendLengthEncodedString(nil, val), nil
	case decimal.Decimal:
		return TypeNewDecimal, false, appendLengthEncodedString(nil, []byte(val.StringFixed(-val.Exponent()))), nil
	case time.Time:
		return TypeDatetime, false, encodeBinaryTemporal(val), nil
	default:
		return 0, false, nil, xerrors.BadParameter("unsupported bound parameter type %T", v)
	}
}

// encodeBinaryTemporal is the encode-side counterpart of
// decodeBinaryTemporal: the same variable-length DATE/DATETIME/TIMESTAMP
// wire format (length byte 0/4/7/11), trimmed to the shortest length that
// still carries t's non-zero fields.
func encodeBinaryTemporal(t time.Time) []byte {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()
	micro := t.Nanosecond() / 1000

	switch {
	case hour == 0 && minute == 0 && second == 0 && micro == 0:
		buf := []byte{4}
		buf = appendU16(buf, uint16(year))
		buf = append(buf, byte(month), byte(day))
		return buf
	case micro == 0:
		buf := []byte{7}
		buf = appendU16(buf, uint16(year))
		buf = append(buf, byte(month), byte(day), byte(hour), byte(minute), byte(second))
		return buf
	default:
		buf := []byte{11}
		buf = appendU16(buf, uint16(year))
		buf = append(buf, byte(month), byte(day), byte(hour), byte(minute), byte(second))
		buf = appendU32(buf, uint32(micro))
		return buf
	}
}
