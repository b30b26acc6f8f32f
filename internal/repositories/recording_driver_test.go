package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// recordedStatement is one statement the recording driver received.
type recordedStatement struct {
	query string
	args  []driver.Value
}

// recorder is a database/sql driver that keeps every statement it is given.
// Queries are answered by respond; Exec reports affected rows.
type recorder struct {
	mu         sync.Mutex
	statements []recordedStatement
	respond    func(query string, args []driver.Value) (columns []string, rows [][]driver.Value)
	affected   int64
}

func newRecordingDB(t *testing.T, rec *recorder) *sql.DB {
	t.Helper()
	db := sql.OpenDB(rec)
	t.Cleanup(func() { db.Close() })
	return db
}

func (r *recorder) record(query string, args []driver.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, recordedStatement{query: query, args: args})
}

func (r *recorder) recorded() []recordedStatement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedStatement(nil), r.statements...)
}

func (r *recorder) Connect(context.Context) (driver.Conn, error) { return &recordingConn{rec: r}, nil }
func (r *recorder) Driver() driver.Driver                        { return recordingDriver{rec: r} }

type recordingDriver struct{ rec *recorder }

func (d recordingDriver) Open(string) (driver.Conn, error) { return &recordingConn{rec: d.rec}, nil }

type recordingConn struct{ rec *recorder }

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return &recordingStmt{rec: c.rec, query: query}, nil
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return recordingTx{}, nil }

type recordingTx struct{}

func (recordingTx) Commit() error   { return nil }
func (recordingTx) Rollback() error { return nil }

type recordingStmt struct {
	rec   *recorder
	query string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }

func (s *recordingStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.rec.record(s.query, args)
	return driver.RowsAffected(s.rec.affected), nil
}

func (s *recordingStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.rec.record(s.query, args)
	if s.rec.respond == nil {
		return nil, errors.New("recording driver: no responder")
	}
	columns, rows := s.rec.respond(s.query, args)
	return &recordingRows{columns: columns, rows: rows}, nil
}

type recordingRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *recordingRows) Columns() []string { return r.columns }
func (r *recordingRows) Close() error      { return nil }

func (r *recordingRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}
