package mysqlproto

// CommandID is a COM_* wire opcode, the first byte of every command
// request payload (spec §4.5-§4.9). Grounded on the teacher's
// server/common/constant.go COM_* block.
type CommandID byte

const (
	ComSleep            CommandID = 0x00
	ComQuit             CommandID = 0x01
	ComInitDB           CommandID = 0x02
	ComQuery            CommandID = 0x03
	ComFieldList        CommandID = 0x04
	ComCreateDB         CommandID = 0x05
	ComDropDB           CommandID = 0x06
	ComRefresh          CommandID = 0x07
	ComShutdown         CommandID = 0x08
	ComStatistics       CommandID = 0x09
	ComProcessInfo      CommandID = 0x0a
	ComConnect          CommandID = 0x0b
	ComProcessKill      CommandID = 0x0c
	ComDebug            CommandID = 0x0d
	ComPing             CommandID = 0x0e
	ComTime             CommandID = 0x0f
	ComDelayedInsert    CommandID = 0x10
	ComChangeUser       CommandID = 0x11
	ComBinlogDump       CommandID = 0x12
	ComTableDump        CommandID = 0x13
	ComConnectOut       CommandID = 0x14
	ComRegisterSlave    CommandID = 0x15
	ComStmtPrepare      CommandID = 0x16
	ComStmtExecute      CommandID = 0x17
	ComStmtSendLongData CommandID = 0x18
	ComStmtClose        CommandID = 0x19
	ComStmtReset        CommandID = 0x1a
	ComSetOption        CommandID = 0x1b
	ComStmtFetch        CommandID = 0x1c
	ComResetConnection  CommandID = 0x1f
)

// EncodeComQuery builds a COM_QUERY request body. Grounded on the teacher's
// server/protocol/com_query.go ComQueryPacket.Encode.
func EncodeComQuery(sql string) []byte {
	buf := make([]byte, 0, len(sql)+1)
	buf = append(buf, byte(ComQuery))
	buf = append(buf, sql...)
	return buf
}

// EncodeComInitDB builds a COM_INIT_DB request body (spec §4.10 setCatalog).
func EncodeComInitDB(schema string) []byte {
	buf := make([]byte, 0, len(schema)+1)
	buf = append(buf, byte(ComInitDB))
	buf = append(buf, schema...)
	return buf
}

// EncodeComPing builds a COM_PING request body (spec §4.10 isValid).
func EncodeComPing() []byte {
	return []byte{byte(ComPing)}
}

// EncodeComQuit builds a COM_QUIT request body (spec §4.10 close).
func EncodeComQuit() []byte {
	return []byte{byte(ComQuit)}
}

// EncodeComStatistics builds a COM_STATISTICS request body, used by
// Conn.Statistics; the server answers with a bare text status line.
func EncodeComStatistics() []byte {
	return []byte{byte(ComStatistics)}
}

// EncodeComResetConnection builds a COM_RESET_CONNECTION request body,
// resetting session state without a full reconnect (spec §4.10).
func EncodeComResetConnection() []byte {
	return []byte{byte(ComResetConnection)}
}

// SetOptionValue is the payload of COM_SET_OPTION (spec §4.10 ComSetOption).
type SetOptionValue uint16

const (
	SetOptionMultiStatementsOn  SetOptionValue = 0
	SetOptionMultiStatementsOff SetOptionValue = 1
)

// EncodeComSetOption builds a COM_SET_OPTION request body.
func EncodeComSetOption(value SetOptionValue) []byte {
	buf := make([]byte, 0, 3)
	buf = append(buf, byte(ComSetOption))
	buf = appendU16(buf, uint16(value))
	return buf
}

// EncodeComStmtPrepare builds a COM_STMT_PREPARE request body (spec §4.8).
func EncodeComStmtPrepare(sql string) []byte {
	buf := make([]byte, 0, len(sql)+1)
	buf = append(buf, byte(ComStmtPrepare))
	buf = append(buf, sql...)
	return buf
}

// EncodeComStmtClose builds a COM_STMT_CLOSE request body.
func EncodeComStmtClose(statementID uint32) []byte {
	buf := make([]byte, 0, 5)
	buf = append(buf, byte(ComStmtClose))
	return appendU32(buf, statementID)
}

// EncodeComStmtReset builds a COM_STMT_RESET request body, clearing any
// long-data buffers accumulated by COM_STMT_SEND_LONG_DATA.
func EncodeComStmtReset(statementID uint32) []byte {
	buf := make([]byte, 0, 5)
	buf = append(buf, byte(ComStmtReset))
	return appendU32(buf, statementID)
}

// StmtExecuteFlags is the single flag byte of COM_STMT_EXECUTE. This
// client always uses cursor type NONE: server-side cursors are an
// unexercised extension the teacher's own prepared-statement path never
// used either.
type StmtExecuteFlags byte

const (
	CursorTypeNoCursor StmtExecuteFlags = 0x00
)

// EncodeComStmtExecute builds a COM_STMT_EXECUTE request body given the
// already-encoded parameter section from EncodeBinaryParams (spec §4.8).
func EncodeComStmtExecute(statementID uint32, flags StmtExecuteFlags, paramCount int, newParamsBound bool, nullBitmap, typesAndValues []byte) []byte {
	buf := make([]byte, 0, 11+len(nullBitmap)+len(typesAndValues))
	buf = append(buf, byte(ComStmtExecute))
	buf = appendU32(buf, statementID)
	buf = append(buf, byte(flags))
	buf = appendU32(buf, 1) // iteration-count, always 1
	if paramCount > 0 {
		buf = append(buf, nullBitmap...)
		if newParamsBound {
			buf = append(buf, 1)
			buf = append(buf, typesAndValues...)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}
