// Package resultset implements the result-set cursor model: a materialized
// row vector with scroll semantics and MySQL-type-keyed typed getters.
// Grounded on the teacher's server/protocol/rowdata.go and field.go for
// the row/column shapes, generalized from "what the server writes" to
// "what the client reads and converts".
package resultset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// CursorType selects the scroll discipline (spec §4.10).
type CursorType int

const (
	ForwardOnly CursorType = iota
	ScrollInsensitive
	ScrollSensitive
)

// Concurrency selects whether the cursor permits row mutation. This client
// never issues UPDATE-through-cursor statements — Updatable is accepted
// for API-surface parity only and behaves identically to ReadOnly.
type Concurrency int

const (
	ReadOnly Concurrency = iota
	Updatable
)

// ZeroDateBehavior controls how the `0000-00-00` temporal literal
// converts (spec §4.10).
type ZeroDateBehavior int

const (
	ZeroDateConvertError ZeroDateBehavior = iota
	ZeroDateRound
	ZeroDateToNull
)

// row is one materialized record, normalized to raw bytes-or-nil
// regardless of whether it arrived via the text or binary protocol.
type row struct {
	raw  []interface{} // nil entry means SQL NULL
	text bool          // true if raw entries are []byte requiring text parsing
}

// ResultSet is a client-side, fully materialized cursor over one query's
// rows (spec §4.10). The core is written against an abstract effect; this
// implementation blocks synchronously for I/O and doesn't need one — all
// rows are read up front by the caller before constructing a ResultSet.
type ResultSet struct {
	columns          []*mysqlproto.ColumnDefinition41
	nameIndex        map[string]int
	rows             []row
	cursorType       CursorType
	concurrency      Concurrency
	zeroDateBehavior ZeroDateBehavior

	pos      int // -1 = before-first, len(rows) = after-last
	wasNull  bool
	closed   bool
}

// NewFromTextRows builds a ResultSet from the text protocol's decoded rows.
func NewFromTextRows(columns []*mysqlproto.ColumnDefinition41, textRows []*mysqlproto.TextRow, cursorType CursorType, concurrency Concurrency, zdb ZeroDateBehavior) *ResultSet {
	rs := newResultSet(columns, cursorType, concurrency, zdb)
	for _, tr := range textRows {
		r := row{raw: make([]interface{}, len(columns)), text: true}
		for i := range columns {
			if tr.Null[i] {
				r.raw[i] = nil
			} else {
				r.raw[i] = tr.Values[i]
			}
		}
		rs.rows = append(rs.rows, r)
	}
	return rs
}

// NewFromBinaryRows builds a ResultSet from the binary protocol's decoded
// rows (prepared-statement path).
func NewFromBinaryRows(columns []*mysqlproto.ColumnDefinition41, binRows []*mysqlproto.BinaryRow, cursorType CursorType, concurrency Concurrency, zdb ZeroDateBehavior) *ResultSet {
	rs := newResultSet(columns, cursorType, concurrency, zdb)
	for _, br := range binRows {
		r := row{raw: make([]interface{}, len(columns)), text: false}
		for i := range columns {
			if br.Null[i] {
				r.raw[i] = nil
			} else {
				r.raw[i] = br.Values[i]
			}
		}
		rs.rows = append(rs.rows, r)
	}
	return rs
}

func newResultSet(columns []*mysqlproto.ColumnDefinition41, cursorType CursorType, concurrency Concurrency, zdb ZeroDateBehavior) *ResultSet {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[strings.ToLower(c.Name)] = i
	}
	return &ResultSet{
		columns:          columns,
		nameIndex:        idx,
		cursorType:       cursorType,
		concurrency:      concurrency,
		zeroDateBehavior: zdb,
		pos:              -1,
	}
}

func (rs *ResultSet) checkOpen() error {
	if rs.closed {
		return xerrors.ClosedResource("result set")
	}
	return nil
}

// Close invalidates the cursor; subsequent operations raise
// ClosedResource without touching any transport (spec §8 invariant).
func (rs *ResultSet) Close() { rs.closed = true }

// ColumnCount returns the number of columns in the result set.
func (rs *ResultSet) ColumnCount() int { return len(rs.columns) }

// ColumnName returns the 0-based column's name.
func (rs *ResultSet) ColumnName(i int) string { return rs.columns[i].Name }

// WasNull reports whether the most recent getter observed SQL NULL.
func (rs *ResultSet) WasNull() bool { return rs.wasNull }

// Next advances to the following row, returning false once past the last
// row. On a forward-only cursor that has already returned false, further
// calls return false without touching rs.rows (spec §8 invariant).
func (rs *ResultSet) Next() (bool, error) {
	if err := rs.checkOpen(); err != nil {
		return false, err
	}
	if rs.pos >= len(rs.rows) {
		rs.pos = len(rs.rows)
		return false, nil
	}
	rs.pos++
	return rs.pos < len(rs.rows), nil
}

// Previous moves to the prior row; raises on a forward-only cursor.
func (rs *ResultSet) Previous() (bool, error) {
	if err := rs.checkOpen(); err != nil {
		return false, err
	}
	if rs.cursorType == ForwardOnly {
		return false, xerrors.BadParameter("cannot move backward on a forward-only result set")
	}
	if rs.pos <= 0 {
		rs.pos = -1
		return false, nil
	}
	rs.pos--
	return true, nil
}

// First moves to the first row.
func (rs *ResultSet) First() (bool, error) { return rs.Absolute(1) }

// Last moves to the last row.
func (rs *ResultSet) Last() (bool, error) { return rs.Absolute(len(rs.rows)) }

// BeforeFirst rewinds to the position before the first row.
func (rs *ResultSet) BeforeFirst() error {
	if err := rs.checkOpen(); err != nil {
		return err
	}
	if rs.cursorType == ForwardOnly {
		return xerrors.BadParameter("cannot rewind a forward-only result set")
	}
	rs.pos = -1
	return nil
}

// AfterLast advances to the position after the last row.
func (rs *ResultSet) AfterLast() error {
	if err := rs.checkOpen(); err != nil {
		return err
	}
	rs.pos = len(rs.rows)
	return nil
}

// Absolute moves to the 1-based row n (negative counts from the end).
func (rs *ResultSet) Absolute(n int) (bool, error) {
	if err := rs.checkOpen(); err != nil {
		return false, err
	}
	if rs.cursorType == ForwardOnly {
		return false, xerrors.BadParameter("cannot perform absolute positioning on a forward-only result set")
	}
	if n < 0 {
		n = len(rs.rows) + n + 1
	}
	rs.pos = n - 1
	if rs.pos < 0 {
		rs.pos = -1
		return false, nil
	}
	if rs.pos >= len(rs.rows) {
		rs.pos = len(rs.rows)
		return false, nil
	}
	return true, nil
}

// Relative moves by n rows relative to the current position.
func (rs *ResultSet) Relative(n int) (bool, error) {
	if err := rs.checkOpen(); err != nil {
		return false, err
	}
	if rs.cursorType == ForwardOnly && n < 0 {
		return false, xerrors.BadParameter("cannot move backward on a forward-only result set")
	}
	return rs.Absolute(rs.pos + 1 + n)
}

func (rs *ResultSet) IsBeforeFirst() bool { return rs.pos < 0 }
func (rs *ResultSet) IsAfterLast() bool   { return rs.pos >= len(rs.rows) }
func (rs *ResultSet) RowCount() int       { return len(rs.rows) }

func (rs *ResultSet) columnIndex(label string) (int, error) {
	i, ok := rs.nameIndex[strings.ToLower(label)]
	if !ok {
		return 0, xerrors.BadParameter("no such column %q", label)
	}
	return i, nil
}

func (rs *ResultSet) field(idx1 int) (interface{}, *mysqlproto.ColumnDefinition41, bool, error) {
	if err := rs.checkOpen(); err != nil {
		return nil, nil, false, err
	}
	if rs.pos < 0 || rs.pos >= len(rs.rows) {
		return nil, nil, false, xerrors.BadParameter("cursor is not positioned on a row")
	}
	idx := idx1 - 1
	if idx < 0 || idx >= len(rs.columns) {
		return nil, nil, false, xerrors.BadParameter("column index %d out of range", idx1)
	}
	r := rs.rows[rs.pos]
	v := r.raw[idx]
	rs.wasNull = v == nil
	return v, rs.columns[idx], r.text, nil
}

// GetString converts column idx1 (1-based) to a string.
func (rs *ResultSet) GetString(idx1 int) (string, error) {
	v, _, isText, err := rs.field(idx1)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	if isText {
		return string(v.([]byte)), nil
	}
	return fmt.Sprintf("%v", v), nil
}

// GetStringByLabel converts the named column to a string.
func (rs *ResultSet) GetStringByLabel(label string) (string, error) {
	idx, err := rs.columnIndex(label)
	if err != nil {
		return "", err
	}
	return rs.GetString(idx + 1)
}

// GetInt64 converts column idx1 to an int64, applying the numeric
// conversion table (spec §4.10).
func (rs *ResultSet) GetInt64(idx1 int) (int64, error) {
	v, col, isText, err := rs.field(idx1)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	if isText {
		s := strings.TrimSpace(string(v.([]byte)))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return 0, xerrors.ConversionError("cannot convert %q in column %s to integer", s, col.Name)
			}
			return int64(f), nil
		}
		return n, nil
	}
	return toInt64(v, col)
}

func toInt64(v interface{}, col *mysqlproto.ColumnDefinition41) (int64, error) {
	switch n := v.(type) {
	case int8:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, xerrors.ConversionError("cannot convert value of type %T in column %s to integer", v, col.Name)
	}
}

// GetFloat64 converts column idx1 to a float64.
func (rs *ResultSet) GetFloat64(idx1 int) (float64, error) {
	v, col, isText, err := rs.field(idx1)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	if isText {
		s := strings.TrimSpace(string(v.([]byte)))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, xerrors.ConversionError("cannot convert %q in column %s to float", s, col.Name)
		}
		return f, nil
	}
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		i, err := toInt64(v, col)
		return float64(i), err
	}
}

// GetDecimal converts column idx1 to an exact decimal.Decimal, the
// conversion path for DECIMAL/NEWDECIMAL columns (spec §4.10, §2 domain
// stack: shopspring/decimal).
func (rs *ResultSet) GetDecimal(idx1 int) (decimal.Decimal, error) {
	v, col, isText, err := rs.field(idx1)
	if err != nil {
		return decimal.Zero, err
	}
	if v == nil {
		return decimal.Zero, nil
	}
	var s string
	if isText {
		s = string(v.([]byte))
	} else if b, ok := v.([]byte); ok {
		s = string(b)
	} else {
		s = fmt.Sprintf("%v", v)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, xerrors.ConversionError("cannot convert %q in column %s to decimal", s, col.Name)
	}
	return d, nil
}

// GetBool converts column idx1 to a bool: MySQL represents BOOL as TINYINT,
// so any nonzero numeric value is true.
func (rs *ResultSet) GetBool(idx1 int) (bool, error) {
	n, err := rs.GetInt64(idx1)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// GetBytes returns the raw bytes of column idx1 without any textual
// parsing — the path for BLOB/BINARY columns.
func (rs *ResultSet) GetBytes(idx1 int) ([]byte, error) {
	v, _, isText, err := rs.field(idx1)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if isText {
		return v.([]byte), nil
	}
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return []byte(fmt.Sprintf("%v", v)), nil
}

const (
	layoutDate     = "2006-01-02"
	layoutTime     = "15:04:05"
	layoutDatetime = "2006-01-02 15:04:05"
)

// GetTime converts column idx1 to a time.Time, accepting the temporal
// string forms named in spec §4.10 and applying the configured
// zero-date-behavior to `0000-00-00`.
func (rs *ResultSet) GetTime(idx1 int) (time.Time, error) {
	v, col, isText, err := rs.field(idx1)
	if err != nil {
		return time.Time{}, err
	}
	if v == nil {
		return time.Time{}, nil
	}

	if !isText {
		switch t := v.(type) {
		case *mysqlproto.BinaryTemporal:
			if strings.HasPrefix(col.Type.String(), "DATE") && t.Year == 0 && t.Month == 0 && t.Day == 0 {
				return rs.zeroDate(col)
			}
			return time.Date(int(t.Year), time.Month(t.Month), int(t.Day), int(t.Hour), int(t.Minute), int(t.Second), int(t.Microsecond)*1000, time.UTC), nil
		default:
			return time.Time{}, xerrors.ConversionError("cannot convert value of type %T in column %s to time", v, col.Name)
		}
	}

	s := strings.TrimSpace(string(v.([]byte)))
	if strings.HasPrefix(s, "0000-00-00") {
		return rs.zeroDate(col)
	}

	for _, layout := range []string{layoutDatetime + ".000000", layoutDatetime, layoutDate, layoutTime} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, xerrors.ConversionError("cannot convert %q in column %s to a temporal value", s, col.Name)
}

func (rs *ResultSet) zeroDate(col *mysqlproto.ColumnDefinition41) (time.Time, error) {
	switch rs.zeroDateBehavior {
	case ZeroDateToNull:
		rs.wasNull = true
		return time.Time{}, nil
	case ZeroDateRound:
		return time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, xerrors.ConversionError("zero date value in column %s rejected by configured zero-date-behavior", col.Name)
	}
}
