// Package protocolfacade wraps a PacketSocket plus the negotiated
// capability set into the small set of primitives every higher-level flow
// (text queries, prepared statements, utility commands) is built from.
// Grounded on the teacher's server/protocol/mysql_protocol.go
// MySQLProtocolHandler, which plays the same "one place that knows the
// current capability flags and dispatches packet decoding" role on the
// server side.
package protocolfacade

import (
	"github.com/xmysql/go-mysql-client/internal/mlog"
	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// Facade is the per-connection protocol session: immutable negotiated
// state plus the packet transport.
type Facade struct {
	sock         *mysqlproto.PacketSocket
	caps         mysqlproto.CapabilityFlags
	serverVer    string
	host         string
	port         int
	log          mlog.Logger
}

// New constructs a Facade from an already-authenticated socket.
func New(sock *mysqlproto.PacketSocket, caps mysqlproto.CapabilityFlags, serverVer, host string, port int, log mlog.Logger) *Facade {
	if log == nil {
		log = mlog.Discard()
	}
	return &Facade{sock: sock, caps: caps, serverVer: serverVer, host: host, port: port, log: log}
}

func (f *Facade) Capabilities() mysqlproto.CapabilityFlags { return f.caps }
func (f *Facade) ServerVersion() string                    { return f.serverVer }
func (f *Facade) Host() string                             { return f.host }
func (f *Facade) Port() int                                { return f.port }

// ResetSequenceID must precede every new command (spec §3 invariant).
func (f *Facade) ResetSequenceID() {
	f.log.Debugf("resetting sequence id for new command on %s:%d", f.host, f.port)
	f.sock.ResetSequenceID()
}

// Send writes a single command request payload.
func (f *Facade) Send(payload []byte) error {
	if err := f.sock.Send(payload); err != nil {
		f.log.Warnf("send to %s:%d failed: %v", f.host, f.port, err)
		return err
	}
	return nil
}

// Receive reads one logical payload and decodes it with decode.
func Receive[T any](f *Facade, decode mysqlproto.Decoder[T]) (T, error) {
	return mysqlproto.Receive(f.sock, decode)
}

// RepeatProcess reads n consecutive packets, decoding each with decode —
// used for reading a known count of column-definition packets.
func RepeatProcess[T any](f *Facade, n int, decode mysqlproto.Decoder[T]) ([]T, error) {
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := mysqlproto.Receive(f.sock, decode)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadUntilEOF reads rows with decode until an EOF (or, under
// CLIENT_DEPRECATE_EOF, a 0xfe-headed OK) terminator packet, raising on ERR.
// A 0x00-headed packet is a row here, since every binary row starts with 0x00.
func ReadUntilEOF[T any](f *Facade, decode mysqlproto.Decoder[T]) ([]T, *mysqlproto.OKPacket, error) {
	var rows []T
	for {
		raw, err := mysqlproto.Receive(f.sock, func(p []byte) ([]byte, error) { return p, nil })
		if err != nil {
			return nil, nil, err
		}
		switch {
		case mysqlproto.IsErrHeader(raw):
			ep, err := mysqlproto.DecodeErr(raw, f.caps)
			if err != nil {
				return nil, nil, err
			}
			f.log.Warnf("server error %d (%s) on %s:%d: %s", ep.Code, ep.SQLState, f.host, f.port, ep.Message)
			return nil, nil, xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, "", nil)

		case f.caps.Has(mysqlproto.ClientDeprecateEOF) && len(raw) > 0 && raw[0] == 0xfe && mysqlproto.IsOKHeader(raw, f.caps):
			ok, err := mysqlproto.DecodeOK(raw, f.caps)
			if err != nil {
				return nil, nil, err
			}
			return rows, ok, nil

		case !f.caps.Has(mysqlproto.ClientDeprecateEOF) && mysqlproto.IsEOFHeader(raw):
			if _, err := mysqlproto.DecodeEOF(raw, f.caps); err != nil {
				return nil, nil, err
			}
			return rows, nil, nil

		default:
			row, err := decode(raw)
			if err != nil {
				return nil, nil, err
			}
			rows = append(rows, row)
		}
	}
}

// ComSetOption toggles CLIENT_MULTI_STATEMENTS for the lifetime of a
// batch UPDATE/DELETE flow (spec §4.5/§4.7).
func (f *Facade) ComSetOption(value mysqlproto.SetOptionValue) error {
	f.ResetSequenceID()
	if err := f.Send(mysqlproto.EncodeComSetOption(value)); err != nil {
		return err
	}
	raw, err := mysqlproto.Receive(f.sock, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		return err
	}
	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, f.caps)
		if err != nil {
			return err
		}
		return xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, "", nil)
	}
	// Either EOF or OK is an acceptable terminator depending on
	// CLIENT_DEPRECATE_EOF (spec §4.9); no further decoding is needed.
	return nil
}
