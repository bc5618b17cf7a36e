package mysqlproto

import (
	"io"
	"net"

	gxbytes "github.com/dubbogo/gost/bytes"

	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// MaxPayloadLen is the largest payload a single physical frame can carry
// before the client must split it across frames (spec §3/§4.1).
const MaxPayloadLen = 1<<24 - 1

// PacketSocket owns the framed byte transport: it segments logical
// payloads into MySQL packets and reassembles multi-packet payloads on
// read. Grounded on the 3-byte-length/1-byte-sequence framing the teacher
// encodes in util.WriteUB3 + util.WriteByte pairs throughout
// server/protocol, read back here instead of written.
type PacketSocket struct {
	conn net.Conn
	seq  byte
}

// NewPacketSocket wraps an already-dialed connection.
func NewPacketSocket(conn net.Conn) *PacketSocket {
	return &PacketSocket{conn: conn}
}

// ResetSequenceID zeros the sequence counter. Callers MUST invoke this at
// the start of every new command (spec §3 invariant).
func (p *PacketSocket) ResetSequenceID() {
	p.seq = 0
}

// Send writes a single logical payload, chunking into MaxPayloadLen-sized
// physical frames and incrementing the sequence id per frame (spec §4.1).
func (p *PacketSocket) Send(payload []byte) error {
	for {
		n := len(payload)
		if n > MaxPayloadLen {
			n = MaxPayloadLen
		}
		header := make([]byte, 4)
		header = appendU24(header[:0], uint32(n))
		header = append(header, p.seq)
		if _, err := p.conn.Write(header); err != nil {
			return xerrors.IOFailure(err)
		}
		if n > 0 {
			if _, err := p.conn.Write(payload[:n]); err != nil {
				return xerrors.IOFailure(err)
			}
		}
		p.seq++
		payload = payload[n:]
		if n < MaxPayloadLen {
			return nil
		}
		if len(payload) == 0 {
			// A final physical frame exactly MaxPayloadLen long must be
			// followed by an empty terminating frame (spec §4.1).
			continue
		}
	}
}

// Decoder parses a fully reassembled logical payload into a typed result.
type Decoder[T any] func(payload []byte) (T, error)

// Receive reads one logical payload — possibly spanning several physical
// frames — and runs decode on the concatenated bytes (spec §4.1).
func Receive[T any](p *PacketSocket, decode Decoder[T]) (T, error) {
	var zero T
	payload, err := p.receiveRaw()
	if err != nil {
		return zero, err
	}
	v, err := decode(payload)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// receiveRaw reassembles one logical payload without decoding it.
func (p *PacketSocket) receiveRaw() ([]byte, error) {
	out := gxbytes.GetBytesBuffer()
	defer gxbytes.PutBytesBuffer(out)

	header := gxbytes.GetBytes(4)
	defer gxbytes.PutBytes(header)

	for {
		if err := p.readFull((*header)[:4]); err != nil {
			return nil, err
		}
		length, _, err := readU24((*header)[:4], 0)
		if err != nil {
			return nil, err
		}
		p.seq = (*header)[3] + 1

		body := gxbytes.GetBytes(int(length))
		if length > 0 {
			if err := p.readFull((*body)[:length]); err != nil {
				gxbytes.PutBytes(body)
				return nil, err
			}
		}
		out.Write((*body)[:length])
		gxbytes.PutBytes(body)

		if length < MaxPayloadLen {
			break
		}
	}

	result := make([]byte, out.Len())
	copy(result, out.Bytes())
	return result, nil
}

func (p *PacketSocket) readFull(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	_, err := io.ReadFull(p.conn, buf)
	if err != nil {
		return xerrors.IOFailure(err)
	}
	return nil
}

// Close drops the underlying transport.
func (p *PacketSocket) Close() error {
	return p.conn.Close()
}

// Upgrade swaps the underlying transport for conn, leaving the sequence
// counter untouched. Connect uses it to wrap the transport in
// CompressedConn once CLIENT_COMPRESS is negotiated (spec §3's
// capability-flags list names compression without detailing the frame;
// this is where it attaches). No TLS transport is installed through it.
func (p *PacketSocket) Upgrade(conn net.Conn) {
	p.conn = conn
}
