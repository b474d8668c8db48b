package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Conn is the subset of *sql.DB the store needs. Operations run directly
// against the shared pool; there is no in-process locking and no caching of
// namespace existence, every call re-checks via provisioning.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Content is an opaque document payload. The store imposes no schema on its
// shape beyond JSON serializability.
type Content map[string]interface{}

// Record is the stored content for one document ID within a lab's schema.
type Record struct {
	DocumentID string    `json:"document_id"`
	LabPrefix  string    `json:"lab_prefix"`
	Content    Content   `json:"content"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store reads and writes per-lab document content.
type Store struct {
	pool Conn
}

// NewStore creates a content store on top of the given connection pool.
func NewStore(pool Conn) *Store {
	return &Store{pool: pool}
}

// ensureNamespace provisions the lab's schema and doccontent table. Both
// statements are IF NOT EXISTS, so racing first-use requests converge on the
// same schema without coordination; atomicity is the database's concern.
func (s *Store) ensureNamespace(ctx context.Context, prefix, schema string) error {
	createSchema := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schema)
	if _, err := s.pool.ExecContext(ctx, createSchema); err != nil {
		return &ProvisioningError{Prefix: prefix, Err: err}
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q.doccontent (
		document_id VARCHAR(100) PRIMARY KEY,
		lab_prefix VARCHAR(50) NOT NULL,
		content JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`, schema)
	if _, err := s.pool.ExecContext(ctx, createTable); err != nil {
		return &ProvisioningError{Prefix: prefix, Err: err}
	}

	return nil
}

func (s *Store) upsert(ctx context.Context, schema, prefix, documentID string, content Content) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return &StorageError{Op: "encode", Prefix: prefix, Err: err}
	}

	query := fmt.Sprintf(`INSERT INTO %q.doccontent (document_id, lab_prefix, content, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (document_id)
		DO UPDATE SET content = EXCLUDED.content, lab_prefix = EXCLUDED.lab_prefix, updated_at = NOW()`, schema)

	if _, err := s.pool.ExecContext(ctx, query, documentID, prefix, string(payload)); err != nil {
		return &StorageError{Op: "save", Prefix: prefix, Err: err}
	}
	return nil
}

// Provision creates the lab's schema and content table if absent. Every
// store operation provisions lazily as well; this is for callers that want
// the namespace ready before any content arrives.
func (s *Store) Provision(ctx context.Context, prefix string) error {
	schema, err := SchemaName(prefix)
	if err != nil {
		return err
	}
	return s.ensureNamespace(ctx, prefix, schema)
}

// Save upserts the content for the given document ID, replacing any previous
// payload wholesale. The lab's namespace is provisioned first if absent.
func (s *Store) Save(ctx context.Context, prefix, documentID string, content Content) error {
	schema, err := SchemaName(prefix)
	if err != nil {
		return err
	}
	if err := s.ensureNamespace(ctx, prefix, schema); err != nil {
		return err
	}
	return s.upsert(ctx, schema, prefix, documentID, content)
}

// BulkSave upserts every entry, provisioning once up front. Entries are
// applied sequentially in document ID order; on the first failure the
// remaining entries are abandoned and the count persisted so far is returned.
// Entries already written are not rolled back.
func (s *Store) BulkSave(ctx context.Context, prefix string, documents map[string]Content) (int, error) {
	schema, err := SchemaName(prefix)
	if err != nil {
		return 0, err
	}
	if err := s.ensureNamespace(ctx, prefix, schema); err != nil {
		return 0, err
	}

	documentIDs := make([]string, 0, len(documents))
	for documentID := range documents {
		documentIDs = append(documentIDs, documentID)
	}
	sort.Strings(documentIDs)

	count := 0
	for _, documentID := range documentIDs {
		if err := s.upsert(ctx, schema, prefix, documentID, documents[documentID]); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// FindByDocument returns the records matching the document ID: zero or one,
// returned as a slice. Provisioning runs first so reads against a lab that
// has never stored content see an empty table rather than an error.
func (s *Store) FindByDocument(ctx context.Context, prefix, documentID string) ([]Record, error) {
	schema, err := SchemaName(prefix)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNamespace(ctx, prefix, schema); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT document_id, lab_prefix, content, updated_at
		FROM %q.doccontent WHERE document_id = $1`, schema)
	rows, err := s.pool.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, &StorageError{Op: "find", Prefix: prefix, Err: err}
	}
	return scanRecords(rows, prefix)
}

// FindAll returns every record in the lab's schema ordered by document ID.
func (s *Store) FindAll(ctx context.Context, prefix string) ([]Record, error) {
	schema, err := SchemaName(prefix)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNamespace(ctx, prefix, schema); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT document_id, lab_prefix, content, updated_at
		FROM %q.doccontent ORDER BY document_id`, schema)
	rows, err := s.pool.QueryContext(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "find", Prefix: prefix, Err: err}
	}
	return scanRecords(rows, prefix)
}

// Delete removes the record for the document ID and reports whether a row was
// removed. A missing record is not an error.
func (s *Store) Delete(ctx context.Context, prefix, documentID string) (bool, error) {
	schema, err := SchemaName(prefix)
	if err != nil {
		return false, err
	}
	if err := s.ensureNamespace(ctx, prefix, schema); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`DELETE FROM %q.doccontent WHERE document_id = $1`, schema)
	result, err := s.pool.ExecContext(ctx, query, documentID)
	if err != nil {
		return false, &StorageError{Op: "delete", Prefix: prefix, Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "delete", Prefix: prefix, Err: err}
	}
	return affected > 0, nil
}

func scanRecords(rows *sql.Rows, prefix string) ([]Record, error) {
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var record Record
		var payload []byte
		if err := rows.Scan(&record.DocumentID, &record.LabPrefix, &payload, &record.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scan", Prefix: prefix, Err: err}
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &record.Content); err != nil {
				return nil, &StorageError{Op: "decode", Prefix: prefix, Err: err}
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "scan", Prefix: prefix, Err: err}
	}
	return records, nil
}
