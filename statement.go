package xmysql

import (
	"github.com/OneOfOne/xxhash"

	"github.com/xmysql/go-mysql-client/internal/clientprep"
	"github.com/xmysql/go-mysql-client/internal/mysqlproto"
	"github.com/xmysql/go-mysql-client/internal/protocolfacade"
	"github.com/xmysql/go-mysql-client/internal/resultset"
	"github.com/xmysql/go-mysql-client/internal/serverprep"
	"github.com/xmysql/go-mysql-client/internal/telemetry"
	"github.com/xmysql/go-mysql-client/internal/textstmt"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// Statement executes plain SQL text directly, with no parameter binding
// (spec §6 Connection.createStatement).
type Statement struct {
	conn        *Conn
	cursorType  resultset.CursorType
	concurrency resultset.Concurrency
	closed      bool
}

// CreateStatement builds a Statement with the given scroll/concurrency
// discipline (spec §6).
func (c *Conn) CreateStatement(cursorType resultset.CursorType, concurrency resultset.Concurrency) *Statement {
	return &Statement{conn: c, cursorType: cursorType, concurrency: concurrency}
}

func (s *Statement) checkOpen() error {
	if s.closed {
		return xerrors.ClosedResource("statement")
	}
	return s.conn.checkUsable()
}

// ExecuteQuery runs sql and returns its result set.
func (s *Statement) ExecuteQuery(sql string) (*resultset.ResultSet, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	span := s.conn.startSpan(sql)
	res, err := textstmt.Execute(s.conn.facade, sql)
	span.End(err)
	if err != nil {
		s.conn.poisonOnViolation(err)
		return nil, err
	}
	return resultset.NewFromTextRows(res.Columns, res.Rows, s.cursorType, s.concurrency, s.conn.cfg.ZeroDateBehavior), nil
}

// ExecuteUpdate runs sql (expected to be DML/DDL) and returns the
// affected-row count.
func (s *Statement) ExecuteUpdate(sql string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	span := s.conn.startSpan(sql)
	res, err := textstmt.Execute(s.conn.facade, sql)
	span.End(err)
	if err != nil {
		s.conn.poisonOnViolation(err)
		return 0, err
	}
	if res.OK == nil {
		return 0, xerrors.ProtocolViolation("ExecuteUpdate received a result set instead of an OK response")
	}
	return int64(res.OK.AffectedRows), nil
}

// Execute runs sql and reports whether it produced a result set.
func (s *Statement) Execute(sql string) (hasResultSet bool, err error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	span := s.conn.startSpan(sql)
	res, err := textstmt.Execute(s.conn.facade, sql)
	span.End(err)
	if err != nil {
		s.conn.poisonOnViolation(err)
		return false, err
	}
	return res.OK == nil, nil
}

// Close invalidates the statement (spec §8: idempotent, no further I/O).
func (s *Statement) Close() { s.closed = true }

// poisonOnViolation poisons the owning connection when err represents a
// protocol violation, matching spec §5's "connection poisoning is the
// default safe response to any ProtocolViolation" policy. Spec §7's table
// gives BadParameter/ConversionError/ClosedResource no such consequence —
// those are caller bugs, not wire-level corruption — so this checks the
// dedicated ProtocolViolation marker rather than inferring it from Kind,
// which BadParameter also happens to share.
func (c *Conn) poisonOnViolation(err error) {
	if xerrors.IsProtocolViolation(err) {
		c.poison()
	}
}

// ClientPreparedStatement performs textual `?` substitution locally and
// submits each execution as a COM_QUERY (spec §4.7).
type ClientPreparedStatement struct {
	conn        *Conn
	template    string
	cursorType  resultset.CursorType
	concurrency resultset.Concurrency
	batch       [][]interface{}
	closed      bool
}

// PrepareClientStatement builds a client-side prepared statement from
// template.
func (c *Conn) PrepareClientStatement(template string, cursorType resultset.CursorType, concurrency resultset.Concurrency) *ClientPreparedStatement {
	return &ClientPreparedStatement{conn: c, template: template, cursorType: cursorType, concurrency: concurrency}
}

func (p *ClientPreparedStatement) checkOpen() error {
	if p.closed {
		return xerrors.ClosedResource("prepared statement")
	}
	return p.conn.checkUsable()
}

// ExecuteQuery renders params into the template and runs the resulting
// COM_QUERY, returning its result set.
func (p *ClientPreparedStatement) ExecuteQuery(params []interface{}) (*resultset.ResultSet, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	sql, err := clientprep.Render(p.template, params)
	if err != nil {
		return nil, err
	}
	span := p.conn.startSpan(sql)
	res, err := textstmt.Execute(p.conn.facade, sql)
	span.End(err)
	if err != nil {
		p.conn.poisonOnViolation(err)
		return nil, err
	}
	return resultset.NewFromTextRows(res.Columns, res.Rows, p.cursorType, p.concurrency, p.conn.cfg.ZeroDateBehavior), nil
}

// ExecuteLargeUpdate renders params and runs the statement, returning the
// affected-row count; ERR responses carry the bound parameter snapshot,
// and an EOF in place of OK/ERR is a protocol violation (spec §4.7).
func (p *ClientPreparedStatement) ExecuteLargeUpdate(params []interface{}) (affectedRows int64, lastInsertID uint64, err error) {
	if err := p.checkOpen(); err != nil {
		return 0, 0, err
	}
	sql, err := clientprep.Render(p.template, params)
	if err != nil {
		return 0, 0, err
	}

	p.conn.facade.ResetSequenceID()
	res, err := executeWithParamSnapshot(p.conn, sql, params)
	if err != nil {
		return 0, 0, err
	}
	if res.OK == nil {
		return 0, 0, xerrors.ProtocolViolation("executeLargeUpdate received a result set instead of OK")
	}
	return int64(res.OK.AffectedRows), res.OK.LastInsertID, nil
}

func executeWithParamSnapshot(c *Conn, sql string, params []interface{}) (*textstmt.Result, error) {
	span := c.startSpan(sql)
	res, err := textstmt.Execute(c.facade, sql)
	span.End(err)
	if err != nil {
		if se, ok := err.(*xerrors.SQLException); ok {
			se.SQL = sql
			se.Params = params
			c.poisonOnViolation(err)
		} else {
			c.poison()
		}
		return nil, err
	}
	return res, nil
}

// AddBatch appends one parameter set to the pending batch (spec §4.7).
func (p *ClientPreparedStatement) AddBatch(params []interface{}) {
	p.batch = append(p.batch, params)
}

// ExecuteBatch submits the accumulated batch per the INSERT-collapse or
// multi-statement UPDATE/DELETE rules (spec §4.7), clearing the batch on
// return.
func (p *ClientPreparedStatement) ExecuteBatch() ([]int64, error) {
	defer func() { p.batch = nil }()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if len(p.batch) == 0 {
		return nil, nil
	}

	upperTrim := trimUpperPrefix(p.template)
	switch {
	case upperTrim == "INSERT":
		sql, results, err := clientprep.CollapseInsert(p.template, p.batch)
		if err != nil {
			return nil, err
		}
		if _, err := executeWithParamSnapshot(p.conn, sql, nil); err != nil {
			return nil, err
		}
		return results, nil

	case upperTrim == "UPDATE" || upperTrim == "DELETE":
		return p.executeMultiStatementBatch()

	default:
		return nil, xerrors.BadParameter("ExecuteBatch only supports INSERT/UPDATE/DELETE templates")
	}
}

func (p *ClientPreparedStatement) executeMultiStatementBatch() ([]int64, error) {
	multi, err := clientprep.CollapseUpdateDelete(p.template, p.batch)
	if err != nil {
		return nil, err
	}

	if err := p.conn.facade.ComSetOption(0); err != nil { // multi-statements on
		return nil, err
	}
	defer p.conn.facade.ComSetOption(1) // multi-statements off, best-effort

	results := make([]int64, 0, len(p.batch))
	p.conn.facade.ResetSequenceID()
	if err := p.conn.facade.Send(encodeComQueryText(multi)); err != nil {
		p.conn.poison()
		return nil, err
	}

	for range p.batch {
		res, err := decodeUpdateResponse(p.conn)
		if err != nil {
			return nil, err
		}
		results = append(results, int64(res.AffectedRows))
	}
	return results, nil
}

// Close invalidates the prepared statement (spec §8: idempotent close).
func (p *ClientPreparedStatement) Close() { p.closed = true }

// ServerPreparedStatement wraps a server-allocated statement handle
// (COM_STMT_PREPARE/EXECUTE/CLOSE), binding parameters in the binary
// protocol (spec §4.8).
type ServerPreparedStatement struct {
	conn        *Conn
	sql         string
	prepared    *serverprep.PrepareResult
	cursorType  resultset.CursorType
	concurrency resultset.Concurrency
	closed      bool
}

// PrepareStatement sends COM_STMT_PREPARE and returns a handle bound to
// the resulting statement id (spec §6 Connection.prepareStatement).
func (c *Conn) PrepareStatement(sql string, cursorType resultset.CursorType, concurrency resultset.Concurrency) (*ServerPreparedStatement, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	span := c.startSpan(sql)
	prepared, err := serverprep.Prepare(c.facade, sql)
	span.End(err)
	if err != nil {
		c.poisonOnViolation(err)
		return nil, err
	}
	return &ServerPreparedStatement{conn: c, sql: sql, prepared: prepared, cursorType: cursorType, concurrency: concurrency}, nil
}

// PrepareStatementCached is PrepareStatement, but reuses an
// already-prepared handle for the same SQL text on this connection
// instead of issuing a redundant COM_STMT_PREPARE round trip (spec §5:
// "Prepared-statement caches are per-connection"). The fingerprint is
// computed the same way the teacher computes statement-cache keys in
// util/hash_utils.go HashCode.
func (c *Conn) PrepareStatementCached(sql string, cursorType resultset.CursorType, concurrency resultset.Concurrency) (*ServerPreparedStatement, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	h := xxhash.New64()
	h.Write([]byte(sql))
	key := h.Sum64()

	if stmt, ok := c.stmtCache[key]; ok && !stmt.closed {
		stmt.cursorType = cursorType
		stmt.concurrency = concurrency
		return stmt, nil
	}

	stmt, err := c.PrepareStatement(sql, cursorType, concurrency)
	if err != nil {
		return nil, err
	}
	c.stmtCache[key] = stmt
	return stmt, nil
}

func (p *ServerPreparedStatement) checkOpen() error {
	if p.closed {
		return xerrors.ClosedResource("prepared statement")
	}
	return p.conn.checkUsable()
}

// ParameterCount reports how many `?` placeholders the server found.
func (p *ServerPreparedStatement) ParameterCount() int { return int(p.prepared.ParamCount) }

// Execute binds params positionally (params[0] fills the first `?`) and
// runs COM_STMT_EXECUTE. There is no 1-based per-index setter.
func (p *ServerPreparedStatement) Execute(params []interface{}) (*resultset.ResultSet, *OKResult, error) {
	if err := p.checkOpen(); err != nil {
		return nil, nil, err
	}
	if len(params) != int(p.prepared.ParamCount) {
		return nil, nil, xerrors.BadParameter("bound %d parameters but statement expects %d", len(params), p.prepared.ParamCount)
	}

	span := p.conn.startSpan(p.sql)
	res, err := serverprep.Execute(p.conn.facade, p.prepared.StatementID, params)
	span.End(err)
	if err != nil {
		p.conn.poisonOnViolation(err)
		return nil, nil, err
	}
	if res.OK != nil {
		return nil, &OKResult{AffectedRows: int64(res.OK.AffectedRows), LastInsertID: res.OK.LastInsertID}, nil
	}
	rs := resultset.NewFromBinaryRows(res.Columns, res.Rows, p.cursorType, p.concurrency, p.conn.cfg.ZeroDateBehavior)
	return rs, nil, nil
}

// Reset sends COM_STMT_RESET, discarding any long-data buffers and
// resetting the statement's server-side cursor without re-preparing it.
func (p *ServerPreparedStatement) Reset() error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if err := serverprep.Reset(p.conn.facade, p.prepared.StatementID); err != nil {
		p.conn.poisonOnViolation(err)
		return err
	}
	return nil
}

// Close sends COM_STMT_CLOSE (no response) and invalidates the handle;
// repeated Close calls are no-ops that never touch the socket (spec §8).
func (p *ServerPreparedStatement) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return serverprep.Close(p.conn.facade, p.prepared.StatementID)
}

// OKResult is the affected-row/last-insert-id pair an update-shaped
// execution returns.
type OKResult struct {
	AffectedRows int64
	LastInsertID uint64
}

// encodeComQueryText builds a COM_QUERY request body for an
// already-rendered, already-joined multi-statement batch.
func encodeComQueryText(sql string) []byte {
	return mysqlproto.EncodeComQuery(sql)
}

// decodeUpdateResponse reads one OK/ERR response for a single statement
// within a multi-statement batch.
func decodeUpdateResponse(c *Conn) (*mysqlproto.OKPacket, error) {
	raw, err := protocolfacade.Receive(c.facade, func(p []byte) ([]byte, error) { return p, nil })
	if err != nil {
		c.poison()
		return nil, err
	}
	caps := c.facade.Capabilities()
	if mysqlproto.IsErrHeader(raw) {
		ep, err := mysqlproto.DecodeErr(raw, caps)
		if err != nil {
			return nil, err
		}
		return nil, xerrors.FromServerError(ep.Code, ep.SQLState, ep.Message, "", nil)
	}
	return mysqlproto.DecodeOK(raw, caps)
}

func trimUpperPrefix(sql string) string {
	i := 0
	for i < len(sql) && (sql[i] == ' ' || sql[i] == '\t' || sql[i] == '\n' || sql[i] == '\r') {
		i++
	}
	j := i
	for j < len(sql) && sql[j] != ' ' && sql[j] != '\t' && sql[j] != '\n' && sql[j] != '\r' && sql[j] != '(' {
		j++
	}
	s := sql[i:j]
	out := make([]byte, len(s))
	for k := 0; k < len(s); k++ {
		c := s[k]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[k] = c
	}
	return string(out)
}
