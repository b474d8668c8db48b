package tenanttest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertTupleWithNestedParens(t *testing.T) {
	db, conn := NewStubDB()
	defer db.Close()

	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS "tenant_acme"`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS "tenant_acme".doccontent (
		document_id VARCHAR(100) PRIMARY KEY,
		lab_prefix VARCHAR(50) NOT NULL,
		content JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`)
	require.NoError(t, err)

	// NOW() nests parens inside the VALUES tuple; it must parse as a time
	// value, not as the literal string "NOW(".
	_, err = db.Exec(`INSERT INTO "tenant_acme".doccontent (document_id, lab_prefix, content, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (document_id)
		DO UPDATE SET content = EXCLUDED.content, lab_prefix = EXCLUDED.lab_prefix, updated_at = NOW()`,
		"doc-1", "acme", `{"a":1}`)
	require.NoError(t, err)

	rows := conn.TableRows("tenant_acme.doccontent")
	require.Len(t, rows, 1)
	updatedAt, ok := rows[0]["updated_at"].(time.Time)
	assert.True(t, ok, "updated_at should be stored as time.Time, got %T", rows[0]["updated_at"])
	assert.False(t, updatedAt.IsZero())

	// And it scans back into *time.Time through database/sql.
	result, err := db.Query(`SELECT updated_at FROM "tenant_acme".doccontent WHERE document_id = $1`, "doc-1")
	require.NoError(t, err)
	defer result.Close()
	require.True(t, result.Next())
	var scanned time.Time
	require.NoError(t, result.Scan(&scanned))
	assert.False(t, scanned.IsZero())
}
