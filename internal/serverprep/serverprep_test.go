package serverprep

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/protocolfacade"
)

func pipeFacade(caps mysqlproto.CapabilityFlags) (*protocolfacade.Facade, *mysqlproto.PacketSocket) {
	clientConn, serverConn := net.Pipe()
	clientSock := mysqlproto.NewPacketSocket(clientConn)
	serverSock := mysqlproto.NewPacketSocket(serverConn)
	return protocolfacade.New(clientSock, caps, "8.0.34", "127.0.0.1", 3306, nil), serverSock
}

func preparedOKBytes(stmtID uint32, colCount, paramCount uint16) []byte {
	buf := []byte{0x00}
	buf = append(buf, byte(stmtID), byte(stmtID>>8), byte(stmtID>>16), byte(stmtID>>24))
	buf = append(buf, byte(colCount), byte(colCount>>8))
	buf = append(buf, byte(paramCount), byte(paramCount>>8))
	buf = append(buf, 0x00)       // filler
	buf = append(buf, 0x00, 0x00) // warning count
	return buf
}

func TestPrepareWithParametersConsumesMetadataAndEOF(t *testing.T) {
	f, server := pipeFacade(mysqlproto.ClientProtocol41)

	paramDef := []byte{0x03, 'd', 'e', 'f'}
	for i := 0; i < 5; i++ {
		paramDef = append(paramDef, 0x00) // schema, table, org_table, name, org_name all empty
	}
	paramDef = append(paramDef, 0x0c)
	paramDef = append(paramDef, 0x2d, 0x00)
	paramDef = append(paramDef, 1, 0, 0, 0)
	paramDef = append(paramDef, byte(mysqlproto.TypeLong))
	paramDef = append(paramDef, 0x00, 0x00)
	paramDef = append(paramDef, 0x00)

	go func() {
		raw, err := mysqlproto.Receive(server, func(p []byte) ([]byte, error) { return p, nil })
		require.NoError(t, err)
		assert.Equal(t, mysqlproto.EncodeComStmtPrepare("SELECT * FROM t WHERE id = ?"), raw)

		require.NoError(t, server.Send(preparedOKBytes(7, 0, 1)))
		require.NoError(t, server.Send(paramDef))
		require.NoError(t, server.Send([]byte{0xfe, 0x00, 0x00, 0x02, 0x00})) // EOF, no deprecate-eof
	}()

	res, err := Prepare(f, "SELECT * FROM t WHERE id = ?")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), res.StatementID)
	assert.Equal(t, uint16(1), res.ParamCount)
	require.Len(t, res.Params, 1)
}

func TestExecuteReturnsOKForNoResultSet(t *testing.T) {
	f, server := pipeFacade(mysqlproto.ClientProtocol41)

	go func() {
		raw, err := mysqlproto.Receive(server, func(p []byte) ([]byte, error) { return p, nil })
		require.NoError(t, err)
		require.NotEmpty(t, raw)
		require.NoError(t, server.Send([]byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00}))
	}()

	res, err := Execute(f, 7, []interface{}{int64(1)})
	require.NoError(t, err)
	require.NotNil(t, res.OK)
	assert.Equal(t, uint64(1), res.OK.AffectedRows)
}

func TestCloseSendsComStmtCloseWithNoResponse(t *testing.T) {
	f, server := pipeFacade(mysqlproto.ClientProtocol41)

	done := make(chan struct{})
	go func() {
		defer close(done)
		raw, err := mysqlproto.Receive(server, func(p []byte) ([]byte, error) { return p, nil })
		require.NoError(t, err)
		assert.Equal(t, mysqlproto.EncodeComStmtClose(7), raw)
	}()

	require.NoError(t, Close(f, 7))
	<-done
}
