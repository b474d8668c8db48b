// Package tenanttest provides an in-memory database/sql driver that
// understands the statements issued by the tenant content store, so the store
// can be exercised without a running Postgres.
package tenanttest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var stubSeq uint64

// StubConn is a normalized fake backing store. Schemas and tables honor the
// IF NOT EXISTS semantics of the real database, and inserts with an ON
// CONFLICT clause behave as upserts keyed on the first column.
type StubConn struct {
	mu      sync.Mutex
	Schemas map[string]bool
	Tables  map[string][]map[string]interface{}
	Execs   []string

	// Failure injection.
	FailExec       bool   // every exec fails
	FailProvision  bool   // CREATE statements fail
	FailDocumentID string // inserts for this document_id fail
	FailQuery      bool   // every query fails
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{
		Schemas: make(map[string]bool),
		Tables:  make(map[string][]map[string]interface{}),
	}
	name := fmt.Sprintf("stubpg%d", atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// TableRows returns a copy of the rows stored for the given table.
func (c *StubConn) TableRows(table string) []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make([]map[string]interface{}, len(c.Tables[table]))
	copy(rows, c.Tables[table])
	return rows
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("not implemented") }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error { return nil }

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	normalized := normalize(query)
	c.Execs = append(c.Execs, normalized)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}

	upper := strings.ToUpper(normalized)
	switch {
	case strings.HasPrefix(upper, "CREATE SCHEMA IF NOT EXISTS"):
		if c.FailProvision {
			return nil, fmt.Errorf("create schema fail")
		}
		schema := unquote(strings.TrimSpace(normalized[len("CREATE SCHEMA IF NOT EXISTS"):]))
		c.Schemas[schema] = true
		return driver.RowsAffected(0), nil

	case strings.HasPrefix(upper, "CREATE TABLE IF NOT EXISTS"):
		if c.FailProvision {
			return nil, fmt.Errorf("create table fail")
		}
		rest := strings.TrimSpace(normalized[len("CREATE TABLE IF NOT EXISTS"):])
		table := tableName(rest[:strings.Index(rest, "(")])
		if _, exists := c.Tables[table]; !exists {
			c.Tables[table] = []map[string]interface{}{}
		}
		return driver.RowsAffected(0), nil

	case strings.HasPrefix(upper, "INSERT INTO"):
		return c.execInsert(normalized, args)

	case strings.HasPrefix(upper, "DELETE FROM"):
		return c.execDelete(normalized, args)
	}

	return driver.RowsAffected(0), nil
}

func (c *StubConn) execInsert(query string, args []driver.NamedValue) (driver.Result, error) {
	table, cols, values, err := parseInsert(query, args)
	if err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(cols))
	for i, col := range cols {
		row[col] = values[i]
	}
	if c.FailDocumentID != "" && row[cols[0]] == c.FailDocumentID {
		return nil, fmt.Errorf("insert fail for %s", c.FailDocumentID)
	}
	if _, exists := c.Tables[table]; !exists {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	if strings.Contains(strings.ToUpper(query), "ON CONFLICT") {
		key := cols[0]
		filtered := c.Tables[table][:0:0]
		for _, existing := range c.Tables[table] {
			if existing[key] == row[key] {
				continue
			}
			filtered = append(filtered, existing)
		}
		c.Tables[table] = filtered
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

func (c *StubConn) execDelete(query string, args []driver.NamedValue) (driver.Result, error) {
	table, col, err := parseDelete(query)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("missing args for delete from %s", table)
	}
	target := args[0].Value
	before := len(c.Tables[table])
	filtered := c.Tables[table][:0:0]
	for _, row := range c.Tables[table] {
		if row[col] == target {
			continue
		}
		filtered = append(filtered, row)
	}
	c.Tables[table] = filtered
	return driver.RowsAffected(int64(before - len(filtered))), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}

	table, cols, whereCol, orderCol, err := parseSelect(normalize(query))
	if err != nil {
		return nil, err
	}
	if _, exists := c.Tables[table]; !exists {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	matched := make([]map[string]interface{}, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		if whereCol != "" {
			if len(args) == 0 || row[whereCol] != args[0].Value {
				continue
			}
		}
		matched = append(matched, row)
	}
	if orderCol != "" {
		sort.Slice(matched, func(i, j int) bool {
			return fmt.Sprint(matched[i][orderCol]) < fmt.Sprint(matched[j][orderCol])
		})
	}

	values := make([][]driver.Value, 0, len(matched))
	for _, row := range matched {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values}, nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func normalize(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func unquote(token string) string {
	return strings.Trim(token, `"`)
}

// tableName normalizes a possibly schema-qualified, possibly quoted table
// reference to schema.table form.
func tableName(token string) string {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ".")
	for i, part := range parts {
		parts[i] = unquote(part)
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func parseInsert(query string, args []driver.NamedValue) (string, []string, []interface{}, error) {
	intoIdx := strings.Index(strings.ToUpper(query), "INTO ")
	if intoIdx == -1 {
		return "", nil, nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx <= open {
		return "", nil, nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := tableName(rest[:open])
	cols := splitColumns(rest[open+1 : closeIdx])

	valuesIdx := strings.Index(strings.ToUpper(rest), "VALUES")
	if valuesIdx == -1 {
		return "", nil, nil, fmt.Errorf("cannot parse insert values: %s", query)
	}
	tuple := rest[valuesIdx+len("VALUES"):]
	tupleOpen := strings.Index(tuple, "(")
	if tupleOpen == -1 {
		return "", nil, nil, fmt.Errorf("cannot parse insert values: %s", query)
	}
	// Values may contain nested parens (NOW(), casts), so the tuple ends at
	// the paren matching the opening one, not at the first ")".
	tupleClose := -1
	depth := 0
	for i := tupleOpen; i < len(tuple); i++ {
		switch tuple[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				tupleClose = i
			}
		}
		if tupleClose != -1 {
			break
		}
	}
	if tupleClose == -1 {
		return "", nil, nil, fmt.Errorf("cannot parse insert values: %s", query)
	}

	items := strings.Split(tuple[tupleOpen+1:tupleClose], ",")
	if len(items) != len(cols) {
		return "", nil, nil, fmt.Errorf("column/value mismatch: %s", query)
	}
	values := make([]interface{}, len(items))
	argIdx := 0
	for i, item := range items {
		item = strings.TrimSpace(item)
		switch {
		case strings.HasPrefix(item, "$"):
			if argIdx >= len(args) {
				return "", nil, nil, fmt.Errorf("missing arg for %s", item)
			}
			values[i] = args[argIdx].Value
			argIdx++
		case strings.EqualFold(item, "NOW()"):
			values[i] = time.Now()
		default:
			values[i] = strings.Trim(item, "'")
		}
	}
	return table, cols, values, nil
}

func parseDelete(query string) (string, string, error) {
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "delete from ") {
		return "", "", fmt.Errorf("cannot parse delete: %s", query)
	}
	rest := strings.TrimSpace(query[len("delete from "):])
	whereIdx := strings.Index(strings.ToLower(rest), " where ")
	if whereIdx == -1 {
		return "", "", fmt.Errorf("cannot parse delete: %s", query)
	}
	table := tableName(rest[:whereIdx])
	predicate := strings.SplitN(rest[whereIdx+len(" where "):], "=", 2)
	if len(predicate) != 2 {
		return "", "", fmt.Errorf("cannot parse delete predicate: %s", query)
	}
	return table, strings.ToLower(strings.TrimSpace(predicate[0])), nil
}

func parseSelect(query string) (table string, cols []string, whereCol, orderCol string, err error) {
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "select ") {
		return "", nil, "", "", fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx == -1 {
		return "", nil, "", "", fmt.Errorf("cannot parse select: %s", query)
	}
	cols = splitColumns(query[len("select "):fromIdx])

	rest := strings.TrimSpace(query[fromIdx+len(" from "):])
	restLower := strings.ToLower(rest)

	if orderIdx := strings.Index(restLower, " order by "); orderIdx != -1 {
		orderCol = strings.ToLower(strings.TrimSpace(rest[orderIdx+len(" order by "):]))
		rest = strings.TrimSpace(rest[:orderIdx])
		restLower = strings.ToLower(rest)
	}
	if whereIdx := strings.Index(restLower, " where "); whereIdx != -1 {
		predicate := strings.SplitN(rest[whereIdx+len(" where "):], "=", 2)
		if len(predicate) != 2 {
			return "", nil, "", "", fmt.Errorf("cannot parse select predicate: %s", query)
		}
		whereCol = strings.ToLower(strings.TrimSpace(predicate[0]))
		rest = strings.TrimSpace(rest[:whereIdx])
	}

	table = tableName(strings.Fields(rest)[0])
	return table, cols, whereCol, orderCol, nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
