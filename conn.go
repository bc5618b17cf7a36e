// Package xmysql is a client-side implementation of the MySQL
// client/server wire protocol: packet framing, handshake authentication
// (mysql_native_password and caching_sha2_password), text and binary
// query execution, and a result-set cursor, without depending on
// database/sql. Grounded throughout on the teacher's server/net and
// server/protocol packages, read for their wire-format knowledge and
// reworked from the server's encode path to a client's decode path.
package xmysql

import (
	"fmt"
	"net"
	"time"

	"github.com/xmysql/go-mysql-client/internal/authphase"
	"github.com/xmysql/go-mysql-client/internal/mlog"
	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/protocolfacade"
	"github.com/xmysql/go-mysql-client/internal/resultset"
	"github.com/xmysql/go-mysql-client/internal/telemetry"
	"github.com/xmysql/go-mysql-client/internal/textstmt"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// SSLMode is the caller's TLS preference (spec §6 connection parameters).
// Connect performs no TLS handshake and never wraps the transport in TLS;
// SSLRequired makes Connect fail when the server does not offer CLIENT_SSL.
type SSLMode int

const (
	SSLDisabled SSLMode = iota
	SSLPreferred
	SSLRequired
)

// DatabaseTerm distinguishes the vocabulary a caller's metadata layer uses
// for MySQL's single-level database namespace (spec §4.11).
type DatabaseTerm int

const (
	DatabaseTermSchema DatabaseTerm = iota
	DatabaseTermCatalog
)

// TransactionIsolation is one of the four standard SQL isolation levels
// (spec §4.11; TRANSACTION_NONE is intentionally absent — unsupported).
type TransactionIsolation int

const (
	ReadUncommitted TransactionIsolation = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

func (l TransactionIsolation) sql() (string, error) {
	switch l {
	case ReadUncommitted:
		return "READ UNCOMMITTED", nil
	case ReadCommitted:
		return "READ COMMITTED", nil
	case RepeatableRead:
		return "REPEATABLE READ", nil
	case Serializable:
		return "SERIALIZABLE", nil
	default:
		return "", xerrors.BadParameter("unsupported transaction isolation level %d", l)
	}
}

// Config holds every caller-supplied connection parameter named in spec §6.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	SSL                      SSLMode
	AllowPublicKeyRetrieval  bool
	Compression              mysqlproto.CompressionCodec
	CapabilitiesExtra        mysqlproto.CapabilityFlags
	Charset                  string
	DatabaseTerm             DatabaseTerm
	GetProceduresReturnsFunc bool
	ServerVariables          map[string]string
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	ZeroDateBehavior         resultset.ZeroDateBehavior

	Logger mlog.Logger
	Tracer telemetry.Tracer
}

// Conn is a single-threaded client connection: the orchestrator described
// in spec §4.11. Exactly one command may be outstanding at a time; callers
// must serialize access themselves (spec §5 per-connection invariant) —
// this client does not take an internal lock, matching the teacher's
// single-goroutine-per-session model in server/net/session.go.
type Conn struct {
	cfg      Config
	sock     *mysqlproto.PacketSocket
	facade   *protocolfacade.Facade
	log      mlog.Logger
	tracer   telemetry.Tracer
	valid    bool
	poisoned bool

	autoCommit bool

	// stmtCache is this connection's per-connection server-side prepared
	// statement cache (spec §5 "Prepared-statement caches are per-
	// connection"), keyed by a stable fingerprint of the SQL text.
	stmtCache map[uint64]*ServerPreparedStatement
}

// Connect performs the construction sequence from spec §4.11: dial, read
// the initial packet, negotiate capabilities, optionally wrap the transport
// for compression, run the authentication phase, then build the Protocol
// Facade. It does not upgrade the transport to TLS (see SSLMode).
func Connect(cfg Config) (*Conn, error) {
	log := cfg.Logger
	if log == nil {
		log = mlog.Discard()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rawConn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, xerrors.IOFailure(err)
	}

	sock := mysqlproto.NewPacketSocket(rawConn)

	hs, err := mysqlproto.Receive(sock, mysqlproto.DecodeInitialPacket)
	if err != nil {
		rawConn.Close()
		return nil, err
	}

	wanted := mysqlproto.DefaultClientCapabilities | cfg.CapabilitiesExtra
	if cfg.Database != "" {
		wanted |= mysqlproto.ClientConnectWithDB
	}
	if cfg.SSL != SSLDisabled && hs.Capabilities.Has(mysqlproto.ClientSSL) {
		wanted |= mysqlproto.ClientSSL
	} else if cfg.SSL == SSLRequired {
		rawConn.Close()
		return nil, xerrors.New(xerrors.KindNonTransient, nil, "server does not support TLS but ssl=required")
	}

	useCompression := cfg.Compression != mysqlproto.CompressionNone && hs.Capabilities.Has(mysqlproto.ClientCompress)
	if useCompression {
		wanted |= mysqlproto.ClientCompress
		sock.Upgrade(mysqlproto.NewCompressedConn(rawConn, cfg.Compression))
	}

	result, err := authphase.Run(sock, hs, authphase.Options{
		Username:                cfg.User,
		Password:                []byte(cfg.Password),
		Database:                cfg.Database,
		ClientWantedCaps:        wanted,
		AllowPublicKeyRetrieval: cfg.AllowPublicKeyRetrieval,
	})
	if err != nil {
		rawConn.Close()
		return nil, err
	}

	facade := protocolfacade.New(sock, result.Capabilities, hs.ServerVersion, cfg.Host, cfg.Port, log)

	c := &Conn{
		cfg:        cfg,
		sock:       sock,
		facade:     facade,
		log:        log,
		tracer:     tracer,
		valid:      true,
		autoCommit: true,
		stmtCache:  make(map[uint64]*ServerPreparedStatement),
	}

	for name, value := range cfg.ServerVariables {
		if _, err := textstmt.Execute(facade, fmt.Sprintf("SET SESSION %s = %s", name, value)); err != nil {
			rawConn.Close()
			return nil, err
		}
	}

	return c, nil
}

func (c *Conn) checkUsable() error {
	if c.poisoned {
		return xerrors.New(xerrors.KindNonTransient, nil, "connection is poisoned after a protocol violation")
	}
	if !c.valid {
		return xerrors.ClosedResource("connection")
	}
	return nil
}

// poison marks the connection unusable after a protocol violation or
// cancellation, matching spec §5's cancellation policy.
func (c *Conn) poison() {
	c.poisoned = true
}

// startSpan emits a telemetry span for one command exchange, named and
// attributed per spec §4.12; the caller ends it with the exchange's
// outcome.
func (c *Conn) startSpan(sql string) telemetry.Span {
	return telemetry.EmitSpan(c.tracer, sql, c.cfg.Host, c.cfg.Port)
}

// execSimple runs a plain SQL statement that expects only an OK response,
// the building block every transaction-control method uses. Wrapped in a
// telemetry span per spec §4.12/§1(e): the core only emits span
// boundaries and attributes, never implements the sink.
func (c *Conn) execSimple(sql string) error {
	if err := c.checkUsable(); err != nil {
		return err
	}
	span := telemetry.EmitSpan(c.tracer, sql, c.cfg.Host, c.cfg.Port)
	res, err := textstmt.Execute(c.facade, sql)
	span.End(err)
	if err != nil {
		if _, ok := err.(*xerrors.SQLException); ok {
			c.poisonOnViolation(err)
			return err
		}
		c.poison()
		return err
	}
	_ = res
	return nil
}

// SetAutoCommit toggles autocommit, a no-op if unchanged (spec §4.11).
func (c *Conn) SetAutoCommit(on bool) error {
	if c.autoCommit == on {
		return nil
	}
	val := "0"
	if on {
		val = "1"
	}
	if err := c.execSimple("SET autocommit=" + val); err != nil {
		return err
	}
	c.autoCommit = on
	return nil
}

// AutoCommit reports the last-known autocommit setting.
func (c *Conn) AutoCommit() bool { return c.autoCommit }

// Commit issues a SQL COMMIT.
func (c *Conn) Commit() error { return c.execSimple("COMMIT") }

// Rollback issues a SQL ROLLBACK.
func (c *Conn) Rollback() error { return c.execSimple("ROLLBACK") }

// SetTransactionIsolation maps level to `SET SESSION TRANSACTION ISOLATION
// LEVEL …` (spec §4.11).
func (c *Conn) SetTransactionIsolation(level TransactionIsolation) error {
	s, err := level.sql()
	if err != nil {
		return err
	}
	return c.execSimple("SET SESSION TRANSACTION ISOLATION LEVEL " + s)
}

// SetReadOnly maps to `SET SESSION TRANSACTION READ ONLY|WRITE`.
func (c *Conn) SetReadOnly(readOnly bool) error {
	mode := "READ WRITE"
	if readOnly {
		mode = "READ ONLY"
	}
	return c.execSimple("SET SESSION TRANSACTION " + mode)
}

// SetCatalog and SetSchema both map to COM_INIT_DB: MySQL has a
// single-level database namespace, and the distinction only matters to a
// caller's DatabaseMetaData layer via cfg.DatabaseTerm (spec §4.11).
func (c *Conn) SetCatalog(name string) error { return c.comInitDB(name) }
func (c *Conn) SetSchema(name string) error  { return c.comInitDB(name) }

func (c *Conn) comInitDB(name string) error {
	if err := c.checkUsable(); err != nil {
		return err
	}
	c.facade.ResetSequenceID()
	if err := c.facade.Send(mysqlproto.EncodeComInitDB(name)); err != nil {
		c.poison()
		return err
	}
	raw, err := protocolfacade.Receive(c.facade, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		c.poison()
		return err
	}
	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, c.facade.Capabilities())
		if err != nil {
			return err
		}
		return xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, "", nil)
	}
	_, err = mysqlproto.DecodeOK(raw, c.facade.Capabilities())
	return err
}

// IsValid sends COM_PING with a bounded wait and reports whether the
// server answered in time, without tearing down the connection on
// failure (spec §4.11).
func (c *Conn) IsValid(timeout time.Duration) bool {
	if err := c.checkUsable(); err != nil {
		return false
	}
	type pingResult struct {
		err error
	}
	done := make(chan pingResult, 1)
	go func() {
		c.facade.ResetSequenceID()
		if err := c.facade.Send(mysqlproto.EncodeComPing()); err != nil {
			done <- pingResult{err}
			return
		}
		_, err := protocolfacade.Receive(c.facade, func(p []byte) ([]byte, error) { return p, nil })
		done <- pingResult{err}
	}()

	select {
	case r := <-done:
		return r.err == nil
	case <-time.After(timeout):
		return false
	}
}

// ResetConnection sends COM_RESET_CONNECTION, which clears session state
// (temporary tables, user variables, transaction state, prepared
// statements) while keeping the TCP connection and authentication alive —
// cheaper than a full reconnect (spec §4.9/§4.11).
func (c *Conn) ResetConnection() error {
	if err := c.checkUsable(); err != nil {
		return err
	}
	c.facade.ResetSequenceID()
	if err := c.facade.Send(mysqlproto.EncodeComResetConnection()); err != nil {
		c.poison()
		return err
	}
	raw, err := protocolfacade.Receive(c.facade, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		c.poison()
		return err
	}
	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, c.facade.Capabilities())
		if err != nil {
			return err
		}
		return xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, "", nil)
	}
	_, err = mysqlproto.DecodeOK(raw, c.facade.Capabilities())
	if err == nil {
		c.autoCommit = true
	}
	return err
}

// Statistics sends COM_STATISTICS and returns the server's human-readable
// status line (uptime, threads, queries/sec — spec §4.9). Unlike every
// other command this reply carries no header byte at all: it is a bare
// text blob.
func (c *Conn) Statistics() (string, error) {
	if err := c.checkUsable(); err != nil {
		return "", err
	}
	c.facade.ResetSequenceID()
	if err := c.facade.Send(mysqlproto.EncodeComStatistics()); err != nil {
		c.poison()
		return "", err
	}
	raw, err := protocolfacade.Receive(c.facade, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		c.poison()
		return "", err
	}
	return string(raw), nil
}

// Close sends COM_QUIT (no response expected) and drops the transport.
// Closing a connection closes every statement it cached (spec §3
// lifecycles: "closing the connection closes all").
func (c *Conn) Close() error {
	if !c.valid {
		return nil
	}
	for key, stmt := range c.stmtCache {
		_ = stmt.Close()
		delete(c.stmtCache, key)
	}
	c.valid = false
	if !c.poisoned {
		c.facade.ResetSequenceID()
		_ = c.facade.Send(mysqlproto.EncodeComQuit())
	}
	return c.sock.Close()
}

// Ready reports whether the connection completed its construction
// sequence and is neither closed nor poisoned.
func (c *Conn) Ready() bool {
	return c.valid && !c.poisoned
}

// DatabaseTerm reports the vocabulary this connection was configured with
// (spec §4.11), for an external DatabaseMetaData-style layer to use when
// labeling the single-level MySQL namespace as "schema" or "catalog".
func (c *Conn) DatabaseTerm() DatabaseTerm {
	return c.cfg.DatabaseTerm
}
