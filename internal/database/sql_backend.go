package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

const (
	mysqlNoSuchTable    = 1146
	postgresUndefinedTb = "42P01"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLBackend runs Store operations against a MySQL or Postgres database.
type SQLBackend struct {
	db     *sql.DB
	driver string
	format sq.PlaceholderFormat
}

// NewSQLBackend wraps an open pool. driver must be "mysql" or "postgres".
func NewSQLBackend(db *sql.DB, driver string) *SQLBackend {
	var format sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		format = sq.Dollar
	}
	return &SQLBackend{db: db, driver: driver, format: format}
}

func (b *SQLBackend) quote(ident string) (string, error) {
	if !identPattern.MatchString(ident) {
		return "", fmt.Errorf("invalid identifier %q", ident)
	}
	if b.driver == "mysql" {
		return "`" + ident + "`", nil
	}
	return `"` + ident + `"`, nil
}

func (b *SQLBackend) where(preds []Predicate) ([]sq.Sqlizer, error) {
	conds := make([]sq.Sqlizer, 0, len(preds))
	for _, p := range preds {
		col, err := b.quote(p.Column)
		if err != nil {
			return nil, err
		}
		switch p.Op {
		case OpEq:
			conds = append(conds, sq.Eq{col: p.Value})
		case OpIn:
			conds = append(conds, sq.Eq{col: p.Values})
		case OpIsNull:
			conds = append(conds, sq.Eq{col: nil})
		default:
			return nil, fmt.Errorf("unsupported operator %d on %s", p.Op, p.Column)
		}
	}
	return conds, nil
}

func (b *SQLBackend) columns(rec Record) (map[string]any, error) {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		col, err := b.quote(k)
		if err != nil {
			return nil, err
		}
		out[col] = v
	}
	return out, nil
}

// Select implements Backend.
func (b *SQLBackend) Select(ctx context.Context, table string, q Query) ([]Record, error) {
	tbl, err := b.quote(table)
	if err != nil {
		return nil, err
	}
	conds, err := b.where(q.Where)
	if err != nil {
		return nil, err
	}

	stmt := sq.Select("*").From(tbl).PlaceholderFormat(b.format)
	for _, c := range conds {
		stmt = stmt.Where(c)
	}
	if q.Order != nil {
		col, err := b.quote(q.Order.Column)
		if err != nil {
			return nil, err
		}
		if q.Order.Desc {
			col += " DESC"
		} else {
			col += " ASC"
		}
		stmt = stmt.OrderBy(col)
	}
	if q.Limit > 0 {
		stmt = stmt.Limit(uint64(q.Limit))
	}

	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(table, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Insert implements Backend. The stored row is read back by id.
func (b *SQLBackend) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	tbl, err := b.quote(table)
	if err != nil {
		return nil, err
	}
	values, err := b.columns(rec)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Insert(tbl).SetMap(values).PlaceholderFormat(b.format).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return nil, classify(table, err)
	}

	id := rec.ID()
	if id == "" {
		return rec, nil
	}
	rows, err := b.Select(ctx, table, Query{Where: []Predicate{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rec, nil
	}
	return rows[0], nil
}

// Update implements Backend. Matching rows are read back after the update.
func (b *SQLBackend) Update(ctx context.Context, table string, where []Predicate, patch Record) ([]Record, error) {
	tbl, err := b.quote(table)
	if err != nil {
		return nil, err
	}
	conds, err := b.where(where)
	if err != nil {
		return nil, err
	}

	if len(patch) > 0 {
		values, err := b.columns(patch)
		if err != nil {
			return nil, err
		}
		stmt := sq.Update(tbl).SetMap(values).PlaceholderFormat(b.format)
		for _, c := range conds {
			stmt = stmt.Where(c)
		}
		query, args, err := stmt.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build update: %w", err)
		}
		if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
			return nil, classify(table, err)
		}
	}

	return b.Select(ctx, table, Query{Where: where})
}

// Delete implements Backend. Matching rows are read before deletion.
func (b *SQLBackend) Delete(ctx context.Context, table string, where []Predicate) ([]Record, error) {
	existing, err := b.Select(ctx, table, Query{Where: where})
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return existing, nil
	}

	tbl, _ := b.quote(table)
	conds, err := b.where(where)
	if err != nil {
		return nil, err
	}
	stmt := sq.Delete(tbl).PlaceholderFormat(b.format)
	for _, c := range conds {
		stmt = stmt.Where(c)
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return nil, classify(table, err)
	}
	return existing, nil
}

// scanRecords reads every row into a Record, turning []byte into string the
// same way the read-only AI query runner used to.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := []Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := make(Record, len(columns))
		for i, col := range columns {
			if raw, ok := values[i].([]byte); ok {
				rec[col] = string(raw)
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func classify(table string, err error) error {
	if isRelationMissing(err) {
		return fmt.Errorf("%w: %s", ErrRelationNotFound, table)
	}
	return err
}

func isRelationMissing(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == postgresUndefinedTb {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlNoSuchTable {
		return true
	}
	return false
}
