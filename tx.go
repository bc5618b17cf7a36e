package xmysql

import (
	"github.com/xmysql/go-mysql-client/internal/resultset"
	"github.com/xmysql/go-mysql-client/internal/xerrors"
)

// Tx is a thin handle over a connection's transaction controls, giving
// callers a begin/commit/rollback-scoped object instead of juggling the
// Conn's bare SetAutoCommit/Commit/Rollback trio directly (spec §4.11;
// §6's Connection surface leaves transaction scoping to the caller, this
// type is the idiomatic Go shape for it).
type Tx struct {
	conn *Conn
	done bool
}

// Begin disables autocommit and returns a Tx scoped to the resulting
// transaction.
func (c *Conn) Begin() (*Tx, error) {
	if err := c.checkUsable(); err != nil {
		return nil, err
	}
	if err := c.execSimple("START TRANSACTION"); err != nil {
		return nil, err
	}
	return &Tx{conn: c}, nil
}

func (t *Tx) checkOpen() error {
	if t.done {
		return xerrors.ClosedResource("transaction")
	}
	return t.conn.checkUsable()
}

// Commit issues COMMIT and marks the transaction done.
func (t *Tx) Commit() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.done = true
	return t.conn.execSimple("COMMIT")
}

// Rollback issues ROLLBACK and marks the transaction done. Calling
// Rollback after Commit (or vice versa) raises ClosedResource rather than
// sending a second statement.
func (t *Tx) Rollback() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.done = true
	return t.conn.execSimple("ROLLBACK")
}

// Statement builds a Statement scoped to this transaction's connection.
func (t *Tx) Statement(cursorType resultset.CursorType, concurrency resultset.Concurrency) *Statement {
	return t.conn.CreateStatement(cursorType, concurrency)
}

// Savepoint names a point within a transaction that RollbackToSavepoint can
// later unwind to, without discarding the whole transaction (spec §4.11).
type Savepoint struct {
	name string
}

// Name returns the savepoint's identifier: the caller's own name, sent on
// the wire as-is, unquoted and unescaped (MySQL savepoint names are not
// parameter-bindable).
func (s *Savepoint) Name() string { return s.name }

// SetSavepoint issues `SAVEPOINT name` and returns a handle to it.
func (t *Tx) SetSavepoint(name string) (*Savepoint, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, xerrors.BadParameter("savepoint name must not be empty")
	}
	if err := t.conn.execSimple("SAVEPOINT " + name); err != nil {
		return nil, err
	}
	return &Savepoint{name: name}, nil
}

// RollbackToSavepoint issues `ROLLBACK TO SAVEPOINT name`, undoing work
// performed since sp was set while leaving the surrounding transaction open.
func (t *Tx) RollbackToSavepoint(sp *Savepoint) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.conn.execSimple("ROLLBACK TO SAVEPOINT " + sp.name)
}

// ReleaseSavepoint issues `RELEASE SAVEPOINT name`, discarding it without
// rolling back the work performed since it was set.
func (t *Tx) ReleaseSavepoint(sp *Savepoint) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.conn.execSimple("RELEASE SAVEPOINT " + sp.name)
}
