package mysqlproto

import (
	"bytes"
	"io"
	"net"
	"time"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// CompressionCodec names the body codec used once CLIENT_COMPRESS is
// negotiated. MySQL's own wire compression is zlib-based; this client
// instead offers the two compressors the teacher's connection layer
// already wires (server/net/connection.go's SetCompressType), since the
// codec choice is a private agreement between the two ends of a
// compressed stream and either is a legal "opaque stream transform" per
// spec §1's TLS/compression scoping note.
type CompressionCodec int

const (
	CompressionNone CompressionCodec = iota
	CompressionSnappy
	CompressionLZ4
)

// NewCompressedReader returns a reader that decompresses r using codec, or
// r itself when codec is CompressionNone. Used by DecompressAll to drain an
// already-framed compressed packet in one shot.
func NewCompressedReader(r io.Reader, codec CompressionCodec) io.Reader {
	switch codec {
	case CompressionSnappy:
		return snappy.NewReader(r)
	case CompressionLZ4:
		return lz4.NewReader(r)
	default:
		return r
	}
}

// DecompressAll drains r fully, used when a compressed packet arrives as
// a single already-framed chunk rather than a long-lived stream.
func DecompressAll(data []byte, codec CompressionCodec) ([]byte, error) {
	r := NewCompressedReader(bytes.NewReader(data), codec)
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.IOFailure(err)
	}
	return out, nil
}

// compressedPacketThreshold is MYSQL_COMPRESS_MIN_LEN: payloads shorter
// than this are sent uncompressed inside the compression framing (still
// wrapped in the outer header, with uncompressed length 0 signalling "not
// actually compressed"), matching the convention the teacher's
// connection.go defers to its codec for.
const compressedPacketThreshold = 50

// CompressedConn wraps an already-connected net.Conn with the MySQL
// compressed-packet protocol envelope client and server agree to use once
// CLIENT_COMPRESS is negotiated: every physical frame written by the inner
// PacketSocket is additionally wrapped in a
// {compressed_length:u24, seq:u8, uncompressed_length:u24} header, with
// the payload optionally run through codec. Grounded on the teacher's
// server/net/connection.go SetCompressType/CompressSnappy wiring,
// generalized from "the server picks a codec for its own writes" to "the
// client wraps a net.Conn transparently," so PacketSocket above it never
// has to know compression is in play (spec §1 scopes the exact compressed
// frame format as an expansion the distilled spec only gestures at via
// "compression" in the capability-flags list).
type CompressedConn struct {
	net.Conn
	codec CompressionCodec
	seq   byte

	readBuf bytes.Buffer
}

// NewCompressedConn returns conn wrapped in the compressed-packet envelope.
// Pass CompressionNone to get a conn whose envelope framing is present but
// never actually compresses (useful for interoperability testing against
// the wrapper itself).
func NewCompressedConn(conn net.Conn, codec CompressionCodec) *CompressedConn {
	return &CompressedConn{Conn: conn, codec: codec}
}

// Write implements net.Conn by wrapping p in one compressed-packet frame.
// The inner PacketSocket may call Write more than once per logical MySQL
// packet (header, then body); CompressedConn does not need those calls
// aligned with compressed-frame boundaries, since the envelope is a pure
// byte-stream transform below the uncompressed packet framing.
func (c *CompressedConn) Write(p []byte) (int, error) {
	payload := p
	codec := c.codec
	uncompressedLen := 0
	if len(p) >= compressedPacketThreshold && codec != CompressionNone {
		var buf bytes.Buffer
		w := compressWriterFor(&buf, codec)
		if _, err := w.Write(p); err != nil {
			return 0, xerrors.IOFailure(err)
		}
		if err := w.Close(); err != nil {
			return 0, xerrors.IOFailure(err)
		}
		payload = buf.Bytes()
		uncompressedLen = len(p)
	} else {
		codec = CompressionNone
	}

	header := make([]byte, 0, 7)
	header = appendU24(header, uint32(len(payload)))
	header = append(header, c.seq)
	header = appendU24(header, uint32(uncompressedLen))
	c.seq++

	if _, err := c.Conn.Write(header); err != nil {
		return 0, xerrors.IOFailure(err)
	}
	if len(payload) > 0 {
		if _, err := c.Conn.Write(payload); err != nil {
			return 0, xerrors.IOFailure(err)
		}
	}
	return len(p), nil
}

// Read implements net.Conn, decompressing one compressed-packet frame per
// call into an internal buffer and draining it before reading the next
// frame off the wire.
func (c *CompressedConn) Read(p []byte) (int, error) {
	if c.readBuf.Len() == 0 {
		if err := c.fillReadBuf(); err != nil {
			return 0, err
		}
	}
	return c.readBuf.Read(p)
}

func (c *CompressedConn) fillReadBuf() error {
	header := make([]byte, 7)
	if _, err := io.ReadFull(c.Conn, header); err != nil {
		return xerrors.IOFailure(err)
	}
	compLen, _, err := readU24(header, 0)
	if err != nil {
		return err
	}
	uncompLen, _, err := readU24(header, 4)
	if err != nil {
		return err
	}

	body := make([]byte, compLen)
	if compLen > 0 {
		if _, err := io.ReadFull(c.Conn, body); err != nil {
			return xerrors.IOFailure(err)
		}
	}

	if uncompLen == 0 {
		c.readBuf.Write(body)
		return nil
	}
	out, err := DecompressAll(body, c.codec)
	if err != nil {
		return err
	}
	c.readBuf.Write(out)
	return nil
}

// SetDeadline/SetReadDeadline/SetWriteDeadline pass through to the
// wrapped conn; embedding net.Conn already provides these, but they're
// listed for readability at call sites that only hold a *CompressedConn.
func (c *CompressedConn) SetDeadline(t time.Time) error      { return c.Conn.SetDeadline(t) }
func (c *CompressedConn) SetReadDeadline(t time.Time) error  { return c.Conn.SetReadDeadline(t) }
func (c *CompressedConn) SetWriteDeadline(t time.Time) error { return c.Conn.SetWriteDeadline(t) }

func compressWriterFor(buf *bytes.Buffer, codec CompressionCodec) io.WriteCloser {
	switch codec {
	case CompressionSnappy:
		return snappy.NewBufferedWriter(buf)
	case CompressionLZ4:
		return lz4.NewWriter(buf)
	default:
		return nopWriteCloser{buf}
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
