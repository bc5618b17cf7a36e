// Package textstmt implements COM_QUERY text execution: send the SQL text,
// then branch on whatever the server answers with. Grounded on the
// teacher's server/protocol/com_query.go, which decodes the same request
// shape from the server side.
package textstmt

import (
	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/protocolfacade"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// Result is what Execute returns: either an update result (OK packet) or a
// full result set (columns + rows).
type Result struct {
	OK      *mysqlproto.OKPacket
	Columns []*mysqlproto.ColumnDefinition41
	Rows    []*mysqlproto.TextRow
}

// Execute runs sql over f and returns the shaped response (spec §4.6).
func Execute(f *protocolfacade.Facade, sql string) (*Result, error) {
	f.ResetSequenceID()
	if err := f.Send(mysqlproto.EncodeComQuery(sql)); err != nil {
		return nil, err
	}

	raw, err := protocolfacade.Receive(f, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		return nil, err
	}

	caps := f.Capabilities()

	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, caps)
		if err != nil {
			return nil, err
		}
		return nil, xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, sql, nil)
	}

	if mysqlproto.IsOKHeader(raw, caps) {
		ok, err := mysqlproto.DecodeOK(raw, caps)
		if err != nil {
			return nil, err
		}
		return &Result{OK: ok}, nil
	}

	colCount, err := mysqlproto.DecodeColumnCount(raw)
	if err != nil {
		return nil, err
	}

	columns, err := protocolfacade.RepeatProcess(f, int(colCount), mysqlproto.DecodeColumnDefinition41)
	if err != nil {
		return nil, err
	}

	if !caps.Has(mysqlproto.ClientDeprecateEOF) {
		eofRaw, err := protocolfacade.Receive(f, func(p []byte) ([]byte, error) { return p, nil })
		if err != nil {
			return nil, err
		}
		if !mysqlproto.IsEOFHeader(eofRaw) {
			return nil, xerrors.ProtocolViolation("expected EOF terminating column definitions")
		}
		if _, err := mysqlproto.DecodeEOF(eofRaw, caps); err != nil {
			return nil, err
		}
	}

	rows, _, err := protocolfacade.ReadUntilEOF(f, func(p []byte) (*mysqlproto.TextRow, error) {
		return mysqlproto.DecodeTextRow(p, int(colCount))
	})
	if err != nil {
		return nil, err
	}

	return &Result{Columns: columns, Rows: rows}, nil
}
