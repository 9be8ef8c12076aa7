package recordquery

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var validCollectionName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Mirror keeps a local, queryable copy of a remote collection's records in
// a SQLite table. `T` must be a struct describing the record shape. If it
// has a string field tagged `recordquery:"id"`, that field carries the
// record id; otherwise ids are generated on every Put.
//
// The same predicates that Render to remote filter text can be compiled and
// executed against a Mirror, within the subset of operators SQLite can
// answer (the '?'-prefixed any-variants cannot be evaluated locally).
type Mirror[T any] struct {
	db         *sql.DB
	collection string

	// idField holds information about the `recordquery:"id"` tagged field.
	// It is nil if no such field is present.
	idField *reflect.StructField

	// fields holds the set of JSON keys for type T, used to drop
	// conditions on unknown fields at query-compile time.
	fields map[string]struct{}

	// Prepared statements
	putStmt    *sql.Stmt
	getStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewMirror creates a Mirror for one collection. The collection name must
// be a valid SQL identifier; the backing table is created if missing.
func NewMirror[T any](ctx context.Context, db *sql.DB, collection string) (*Mirror[T], error) {
	if !validCollectionName.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name: %s", collection)
	}

	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type T must be a struct, but got %v", typ)
	}

	var idField *reflect.StructField
	for i := range typ.NumField() {
		field := typ.Field(i)
		if tag := field.Tag.Get("recordquery"); tag == "id" {
			if field.Type.Kind() != reflect.String {
				return nil, fmt.Errorf("field with recordquery:\"id\" tag must be a string, but field %s is %s", field.Name, field.Type.Kind())
			}
			f := field
			idField = &f
		}
	}

	m := &Mirror[T]{
		db:         db,
		collection: collection,
		idField:    idField,
		fields:     jsonFieldSet(typ),
	}

	if err := m.init(ctx); err != nil {
		return nil, err
	}
	if err := m.prepareStatements(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("preparing statements for %s: %w", collection, err)
	}
	return m, nil
}

// Close releases the prepared statements. It should be called when the
// mirror is no longer needed.
func (m *Mirror[T]) Close() error {
	var errStrings []string
	stmts := []*sql.Stmt{m.putStmt, m.getStmt, m.deleteStmt}
	for _, stmt := range stmts {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errStrings = append(errStrings, err.Error())
			}
		}
	}
	if len(errStrings) > 0 {
		return fmt.Errorf("errors while closing statements: %s", strings.Join(errStrings, "; "))
	}
	return nil
}

// Put stores a record, acting as an upsert on the record id.
// It takes a pointer so a generated id can be written back: if the
// `recordquery:"id"` field is empty, a new UUID is generated and set on the
// struct. Without a tagged id field, every Put inserts under a fresh UUID.
func (m *Mirror[T]) Put(ctx context.Context, record *T) error {
	stmt := m.putStmt
	if tx, ok := GetTx(ctx); ok {
		stmt = tx.StmtContext(ctx, stmt)
	}

	var id string

	if m.idField != nil {
		recordValue := reflect.ValueOf(record).Elem()
		idFieldValue := recordValue.FieldByIndex(m.idField.Index)

		id = idFieldValue.String()
		if id == "" {
			id = uuid.NewString()
			if !idFieldValue.CanSet() {
				return fmt.Errorf("cannot set id on unexported field %s", m.idField.Name)
			}
			idFieldValue.SetString(id)
		}
	} else {
		id = uuid.NewString()
	}

	dataBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := stmt.ExecContext(ctx, id, dataBytes); err != nil {
		return fmt.Errorf("putting record %s: %w", id, err)
	}
	return nil
}

// Get retrieves a record by its id. It returns an error wrapping
// sql.ErrNoRows if the id is unknown.
func (m *Mirror[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	stmt := m.getStmt
	if tx, ok := GetTx(ctx); ok {
		stmt = tx.StmtContext(ctx, stmt)
	}

	var jsonData string
	if err := stmt.QueryRowContext(ctx, id).Scan(&jsonData); err != nil {
		return zero, fmt.Errorf("getting record %s: %w", id, err)
	}

	var record T
	if err := json.Unmarshal([]byte(jsonData), &record); err != nil {
		return zero, fmt.Errorf("unmarshaling record %s: %w", id, err)
	}
	return record, nil
}

// Delete removes a record by its id.
func (m *Mirror[T]) Delete(ctx context.Context, id string) error {
	stmt := m.deleteStmt
	if tx, ok := GetTx(ctx); ok {
		stmt = tx.StmtContext(ctx, stmt)
	}

	if _, err := stmt.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	return nil
}

// Count returns the number of records matching a predicate.
// A nil predicate counts all records.
func (m *Mirror[T]) Count(ctx context.Context, p Predicate) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", m.collection)
	var args []any

	if p != nil {
		whereClause, whereArgs, err := compilePredicate(p, m.fields)
		if err != nil {
			return 0, fmt.Errorf("compiling predicate: %w", err)
		}
		if whereClause != "" {
			query += " WHERE " + whereClause
			args = whereArgs
		}
	}

	var count int
	var err error
	if tx, ok := GetTx(ctx); ok {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&count)
	} else {
		err = m.db.QueryRowContext(ctx, query, args...).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// Iter returns an iterator over records that match a given query.
// If the query is nil, it iterates over all records.
// The iterator yields a record and an error for each item.
func (m *Mirror[T]) Iter(ctx context.Context, q *Query) (iter.Seq2[T, error], error) {
	if q == nil {
		q = &Query{}
	}

	querySQL, args, err := q.build(m.collection, m.fields)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	var rows *sql.Rows
	var queryErr error

	if tx, ok := GetTx(ctx); ok {
		rows, queryErr = tx.QueryContext(ctx, querySQL, args...)
	} else {
		rows, queryErr = m.db.QueryContext(ctx, querySQL, args...)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("querying records: %w", queryErr)
	}

	seq := func(yield func(T, error) bool) {
		defer func() {
			_ = rows.Close()
		}()
		var zero T

		for rows.Next() {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			var id, jsonData string
			if scanErr := rows.Scan(&id, &jsonData); scanErr != nil {
				yield(zero, fmt.Errorf("scanning record row: %w", scanErr))
				return
			}

			var record T
			if unmarshalErr := json.Unmarshal([]byte(jsonData), &record); unmarshalErr != nil {
				yield(zero, fmt.Errorf("unmarshaling record: %w", unmarshalErr))
				return
			}

			if !yield(record, nil) {
				return
			}
		}

		if iterErr := rows.Err(); iterErr != nil {
			yield(zero, fmt.Errorf("during row iteration: %w", iterErr))
		}
	}

	return seq, nil
}

func (m *Mirror[T]) init(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			json TEXT NOT NULL
		)`, m.collection)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating collection table %s: %w", m.collection, err)
	}
	return nil
}

func (m *Mirror[T]) prepareStatements(ctx context.Context) (err error) {
	queryPut := fmt.Sprintf(`
		INSERT INTO %s (id, json)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			json = excluded.json
	`, m.collection)
	if m.putStmt, err = m.db.PrepareContext(ctx, queryPut); err != nil {
		return fmt.Errorf("preparing put statement: %w", err)
	}

	queryGet := fmt.Sprintf("SELECT json FROM %s WHERE id = ?", m.collection)
	if m.getStmt, err = m.db.PrepareContext(ctx, queryGet); err != nil {
		return fmt.Errorf("preparing get statement: %w", err)
	}

	queryDelete := fmt.Sprintf("DELETE FROM %s WHERE id = ?", m.collection)
	if m.deleteStmt, err = m.db.PrepareContext(ctx, queryDelete); err != nil {
		return fmt.Errorf("preparing delete statement: %w", err)
	}

	return nil
}
