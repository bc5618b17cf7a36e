// Package clientprep implements client-side prepared statements: textual
// `?` substitution into SQL-escaped literals, submitted as a COM_QUERY.
// Grounded on the teacher's server/protocol/com_query.go ComQueryPacket
// (the wire shape this package ultimately feeds) and util/byte_util.go's
// byte-handling conventions for the escaping pass.
package clientprep

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// Render splices each parameter's SQL literal into sql in place of its `?`
// placeholder, in order (spec §4.7).
func Render(sql string, params []interface{}) (string, error) {
	var b strings.Builder
	argIdx := 0
	inString := false
	var quote byte

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(sql) {
				i++
				b.WriteByte(sql[i])
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '\'', '"':
			inString = true
			quote = c
			b.WriteByte(c)
		case '?':
			if argIdx >= len(params) {
				return "", xerrors.BadParameter("not enough parameters for placeholder %d in query", argIdx+1)
			}
			literal, err := RenderLiteral(params[argIdx])
			if err != nil {
				return "", err
			}
			b.WriteString(literal)
			argIdx++
		default:
			b.WriteByte(c)
		}
	}

	if argIdx != len(params) {
		return "", xerrors.BadParameter("bound %d parameters but query has %d placeholders", len(params), argIdx)
	}
	return b.String(), nil
}

// RenderLiteral converts one bound value to its SQL-literal rendering
// (spec §4.7/§3's escape table).
func RenderLiteral(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case decimal.Decimal:
		return val.String(), nil
	case string:
		return quoteString(val), nil
	case []byte:
		return "x'" + hex.EncodeToString(val) + "'", nil
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05.000000") + "'", nil
	default:
		return "", xerrors.BadParameter("unsupported client-side prepared statement parameter type %T", v)
	}
}

// quoteString escapes \0 \n \r \\ ' " \x1a and wraps the result in single
// quotes, per spec §3's escape set.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('\'')
	return b.String()
}
