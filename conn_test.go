package xmysql

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/resultset"
)

// The lower-level packages (mysqlproto, authphase, protocolfacade, ...)
// exercise the wire codecs directly over net.Pipe. Connect dials a real
// address, so this file drives the same state machine end to end over a
// real TCP loopback listener with a goroutine standing in for the server,
// the way the teacher's client/main.go talks to an actual mysqld.

func lenencStr(s string) []byte {
	return append([]byte{byte(len(s))}, []byte(s)...)
}

func okBytes() []byte {
	return []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
}

func initialHandshakeBytes(nonce []byte) []byte {
	serverCaps := uint32(mysqlproto.ClientLongPassword | mysqlproto.ClientProtocol41 |
		mysqlproto.ClientSecureConnection | mysqlproto.ClientTransactions |
		mysqlproto.ClientPluginAuth | mysqlproto.ClientPluginAuthLenencClientData |
		mysqlproto.ClientDeprecateEOF | mysqlproto.ClientMultiResults | mysqlproto.ClientPSMultiResults)

	buf := []byte{0x0a}
	buf = append(buf, []byte("8.0.34")...)
	buf = append(buf, 0x00)
	buf = append(buf, 7, 0, 0, 0) // connection id
	buf = append(buf, nonce[:8]...)
	buf = append(buf, 0x00) // filler
	buf = append(buf, byte(serverCaps), byte(serverCaps>>8))
	buf = append(buf, 0x2d)       // collation
	buf = append(buf, 0x02, 0x00) // status flags: autocommit
	buf = append(buf, byte(serverCaps>>16), byte(serverCaps>>24))
	buf = append(buf, byte(8+len(nonce[8:])+1)) // auth data len
	buf = append(buf, make([]byte, 10)...)      // reserved
	buf = append(buf, nonce[8:]...)
	buf = append(buf, 0x00) // scramble2 null terminator
	buf = append(buf, []byte("mysql_native_password")...)
	buf = append(buf, 0x00)
	return buf
}

func columnDefBytes(name string) []byte {
	buf := lenencStr("def")               // catalog
	buf = append(buf, lenencStr("")...)   // schema
	buf = append(buf, lenencStr("")...)   // table
	buf = append(buf, lenencStr("")...)   // org_table
	buf = append(buf, lenencStr(name)...) // name
	buf = append(buf, lenencStr("")...)   // org_name
	buf = append(buf, 0x0c)               // length of fixed fields
	buf = append(buf, 0x2d, 0x00)         // collation
	buf = append(buf, 1, 0, 0, 0)         // column length
	buf = append(buf, byte(mysqlproto.TypeVarString))
	buf = append(buf, 0x00, 0x00) // flags
	buf = append(buf, 0x00)       // decimals
	return buf
}

func preparedOKBytes(stmtID uint32, paramCount, colCount uint16) []byte {
	buf := []byte{0x00}
	buf = append(buf, byte(stmtID), byte(stmtID>>8), byte(stmtID>>16), byte(stmtID>>24))
	buf = append(buf, byte(colCount), byte(colCount>>8))
	buf = append(buf, byte(paramCount), byte(paramCount>>8))
	buf = append(buf, 0x00)       // filler
	buf = append(buf, 0x00, 0x00) // warning count
	return buf
}

// expectPacket reads one single-frame command request and fails the test
// if its payload isn't exactly want.
func expectPacket(t *testing.T, sock *mysqlproto.PacketSocket, want []byte) {
	t.Helper()
	raw, err := mysqlproto.Receive(sock, func(p []byte) ([]byte, error) { return p, nil })
	require.NoError(t, err)
	require.Equal(t, want, raw)
}

func TestConnectExecuteQueryTransactionsAndCachedPrepare(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	nonce := []byte("12345678901234567890") // 8 + 13 (12 + pad)
	serverDone := make(chan struct{})

	go func() {
		defer close(serverDone)
		raw, err := ln.Accept()
		require.NoError(t, err)
		defer raw.Close()
		sock := mysqlproto.NewPacketSocket(raw)

		require.NoError(t, sock.Send(initialHandshakeBytes(nonce)))

		// handshake response: not decoded here, just drained.
		_, err = mysqlproto.Receive(sock, func(p []byte) ([]byte, error) { return p, nil })
		require.NoError(t, err)
		require.NoError(t, sock.Send(okBytes()))

		// Statement.ExecuteQuery("SELECT 1")
		expectPacket(t, sock, mysqlproto.EncodeComQuery("SELECT 1"))
		require.NoError(t, sock.Send([]byte{0x01})) // column count = 1
		require.NoError(t, sock.Send(columnDefBytes("1")))
		require.NoError(t, sock.Send(lenencStr("1"))) // one text row
		require.NoError(t, sock.Send([]byte{0xfe, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00})) // deprecate-EOF terminator

		// Begin -> START TRANSACTION
		expectPacket(t, sock, mysqlproto.EncodeComQuery("START TRANSACTION"))
		require.NoError(t, sock.Send(okBytes()))

		// SetSavepoint
		expectPacket(t, sock, mysqlproto.EncodeComQuery("SAVEPOINT sp1"))
		require.NoError(t, sock.Send(okBytes()))

		// RollbackToSavepoint
		expectPacket(t, sock, mysqlproto.EncodeComQuery("ROLLBACK TO SAVEPOINT sp1"))
		require.NoError(t, sock.Send(okBytes()))

		// Commit
		expectPacket(t, sock, mysqlproto.EncodeComQuery("COMMIT"))
		require.NoError(t, sock.Send(okBytes()))

		// PrepareStatementCached("SELECT 1") — exactly one COM_STMT_PREPARE
		// round trip for the two calls the test makes below.
		expectPacket(t, sock, mysqlproto.EncodeComStmtPrepare("SELECT 1"))
		require.NoError(t, sock.Send(preparedOKBytes(1, 0, 0)))

		// PrepareStatement("SELECT ?") for the bad-parameter-doesn't-poison
		// check below; the server side of that check never receives an
		// Execute, since the bad parameter fails before any bytes go out.
		expectPacket(t, sock, mysqlproto.EncodeComStmtPrepare("SELECT ?"))
		require.NoError(t, sock.Send(preparedOKBytes(2, 1, 0)))
		require.NoError(t, sock.Send(columnDefBytes("?")))

		// Statement.ExecuteQuery("SELECT 1") again, proving the connection
		// survived the bad-parameter Execute above unpoisoned.
		expectPacket(t, sock, mysqlproto.EncodeComQuery("SELECT 1"))
		require.NoError(t, sock.Send([]byte{0x01}))
		require.NoError(t, sock.Send(columnDefBytes("1")))
		require.NoError(t, sock.Send(lenencStr("1")))
		require.NoError(t, sock.Send([]byte{0xfe, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00})) // deprecate-EOF terminator

		// Close: the uncached "SELECT ?" handle is closed explicitly
		// first, then conn.Close() closes the cached "SELECT 1" handle
		// before sending COM_QUIT (no replies expected for any of these).
		expectPacket(t, sock, mysqlproto.EncodeComStmtClose(2))
		expectPacket(t, sock, mysqlproto.EncodeComStmtClose(1))
		expectPacket(t, sock, mysqlproto.EncodeComQuit())
	}()

	conn, err := Connect(Config{
		Host:     ln.Addr().(*net.TCPAddr).IP.String(),
		Port:     ln.Addr().(*net.TCPAddr).Port,
		User:     "root",
		Password: "secret",
	})
	require.NoError(t, err)
	require.True(t, conn.Ready())

	stmt := conn.CreateStatement(resultset.ForwardOnly, resultset.ReadOnly)
	rs, err := stmt.ExecuteQuery("SELECT 1")
	require.NoError(t, err)
	require.Equal(t, 1, rs.ColumnCount())
	has, err := rs.Next()
	require.NoError(t, err)
	require.True(t, has)
	v, err := rs.GetString(1)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	has, err = rs.Next()
	require.NoError(t, err)
	assert.False(t, has)

	tx, err := conn.Begin()
	require.NoError(t, err)

	sp, err := tx.SetSavepoint("sp1")
	require.NoError(t, err)
	assert.Equal(t, "sp1", sp.Name())

	require.NoError(t, tx.RollbackToSavepoint(sp))
	require.NoError(t, tx.Commit())

	first, err := conn.PrepareStatementCached("SELECT 1", resultset.ForwardOnly, resultset.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, 0, first.ParameterCount())

	second, err := conn.PrepareStatementCached("SELECT 1", resultset.ForwardOnly, resultset.ReadOnly)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// An unsupported bound-parameter type fails before anything is sent
	// on the wire and must not poison the connection (spec §7:
	// BadParameter is a caller bug, not a protocol violation).
	paramStmt, err := conn.PrepareStatement("SELECT ?", resultset.ForwardOnly, resultset.ReadOnly)
	require.NoError(t, err)
	_, _, err = paramStmt.Execute([]interface{}{map[string]int{"a": 1}})
	require.Error(t, err)
	assert.True(t, conn.Ready(), "a caller-side BadParameter must not poison the connection")

	// The connection is still usable after that failed Execute.
	stmt2 := conn.CreateStatement(resultset.ForwardOnly, resultset.ReadOnly)
	rs2, err := stmt2.ExecuteQuery("SELECT 1")
	require.NoError(t, err)
	has2, err := rs2.Next()
	require.NoError(t, err)
	require.True(t, has2)

	require.NoError(t, paramStmt.Close())
	require.NoError(t, conn.Close())
	<-serverDone
}
