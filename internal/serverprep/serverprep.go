// Package serverprep implements the server-side prepared statement
// lifecycle: COM_STMT_PREPARE, COM_STMT_EXECUTE, COM_STMT_CLOSE, and binary
// row decoding. Grounded on mysqlproto's binary-protocol codecs (in turn
// grounded on the teacher's server/protocol/rowdata.go), since no file in
// the retrieved corpus implements a prepared-statement *client* — this
// package is the natural new home for that client-side half.
package serverprep

import (
	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/protocolfacade"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// PrepareResult is what Prepare returns once the server has allocated a
// statement handle (spec §4.8).
type PrepareResult struct {
	StatementID  uint32
	ColumnCount  uint16
	ParamCount   uint16
	WarningCount uint16
	Params       []*mysqlproto.ColumnDefinition41
	Columns      []*mysqlproto.ColumnDefinition41
}

// Prepare sends COM_STMT_PREPARE and reads back the prepared-ok plus any
// parameter/column metadata.
func Prepare(f *protocolfacade.Facade, sql string) (*PrepareResult, error) {
	f.ResetSequenceID()
	if err := f.Send(mysqlproto.EncodeComStmtPrepare(sql)); err != nil {
		return nil, err
	}

	caps := f.Capabilities()

	raw, err := protocolfacade.Receive(f, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		return nil, err
	}
	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, caps)
		if err != nil {
			return nil, err
		}
		return nil, xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, sql, nil)
	}

	res, err := decodePreparedOK(raw)
	if err != nil {
		return nil, err
	}

	if res.ParamCount > 0 {
		res.Params, err = protocolfacade.RepeatProcess(f, int(res.ParamCount), mysqlproto.DecodeColumnDefinition41)
		if err != nil {
			return nil, err
		}
		if !caps.Has(mysqlproto.ClientDeprecateEOF) {
			if err := consumeEOF(f); err != nil {
				return nil, err
			}
		}
	}

	if res.ColumnCount > 0 {
		res.Columns, err = protocolfacade.RepeatProcess(f, int(res.ColumnCount), mysqlproto.DecodeColumnDefinition41)
		if err != nil {
			return nil, err
		}
		if !caps.Has(mysqlproto.ClientDeprecateEOF) {
			if err := consumeEOF(f); err != nil {
				return nil, err
			}
		}
	}

	return res, nil
}

func decodePreparedOK(payload []byte) (*PrepareResult, error) {
	if len(payload) < 12 || payload[0] != 0x00 {
		return nil, xerrors.ProtocolViolation("malformed COM_STMT_PREPARE response")
	}
	pos := 1
	r := &PrepareResult{}

	stmtID := uint32(payload[pos]) | uint32(payload[pos+1])<<8 | uint32(payload[pos+2])<<16 | uint32(payload[pos+3])<<24
	pos += 4
	r.StatementID = stmtID

	r.ColumnCount = uint16(payload[pos]) | uint16(payload[pos+1])<<8
	pos += 2
	r.ParamCount = uint16(payload[pos]) | uint16(payload[pos+1])<<8
	pos += 2
	pos++ // filler
	if pos+2 <= len(payload) {
		r.WarningCount = uint16(payload[pos]) | uint16(payload[pos+1])<<8
	}
	return r, nil
}

func consumeEOF(f *protocolfacade.Facade) error {
	raw, err := protocolfacade.Receive(f, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		return err
	}
	if !mysqlproto.IsEOFHeader(raw) {
		return xerrors.ProtocolViolation("expected EOF terminating parameter/column metadata")
	}
	_, err = mysqlproto.DecodeEOF(raw, f.Capabilities())
	return err
}

// ExecuteResult is what Execute returns.
type ExecuteResult struct {
	OK      *mysqlproto.OKPacket
	Columns []*mysqlproto.ColumnDefinition41
	Rows    []*mysqlproto.BinaryRow
}

// Execute sends COM_STMT_EXECUTE with the given bound parameters and reads
// back either an OK (no result set) or a binary result set (spec §4.8).
func Execute(f *protocolfacade.Facade, statementID uint32, params []interface{}) (*ExecuteResult, error) {
	nullBitmap, typesAndValues, err := mysqlproto.EncodeBinaryParams(params)
	if err != nil {
		return nil, err
	}

	f.ResetSequenceID()
	req := mysqlproto.EncodeComStmtExecute(statementID, mysqlproto.CursorTypeNoCursor, len(params), true, nullBitmap, typesAndValues)
	if err := f.Send(req); err != nil {
		return nil, err
	}

	caps := f.Capabilities()
	raw, err := protocolfacade.Receive(f, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		return nil, err
	}

	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, caps)
		if err != nil {
			return nil, err
		}
		return nil, xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, "", params)
	}
	if mysqlproto.IsOKHeader(raw, caps) {
		ok, err := mysqlproto.DecodeOK(raw, caps)
		if err != nil {
			return nil, err
		}
		return &ExecuteResult{OK: ok}, nil
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
		if err := consumeEOF(f); err != nil {
			return nil, err
		}
	}

	rows, _, err := protocolfacade.ReadUntilEOF(f, func(p []byte) (*mysqlproto.BinaryRow, error) {
		return mysqlproto.DecodeBinaryRow(p, columns)
	})
	if err != nil {
		return nil, err
	}

	return &ExecuteResult{Columns: columns, Rows: rows}, nil
}

// Close sends COM_STMT_CLOSE; the server never responds to it (spec §4.8).
func Close(f *protocolfacade.Facade, statementID uint32) error {
	f.ResetSequenceID()
	return f.Send(mysqlproto.EncodeComStmtClose(statementID))
}

// Reset sends COM_STMT_RESET, discarding any data buffered by a prior
// COM_STMT_SEND_LONG_DATA sequence and resetting the statement's cursor
// without re-preparing it. Unlike Close, the server replies with OK/ERR.
func Reset(f *protocolfacade.Facade, statementID uint32) error {
	f.ResetSequenceID()
	if err := f.Send(mysqlproto.EncodeComStmtReset(statementID)); err != nil {
		return err
	}
	caps := f.Capabilities()
	raw, err := protocolfacade.Receive(f, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		return err
	}
	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, caps)
		if err != nil {
			return err
		}
		return xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, "", nil)
	}
	_, err = mysqlproto.DecodeOK(raw, caps)
	return err
}
