package tenant

import (
	"context"
	"sync"
	"testing"

	"github.com/docuveda/lab-service/internal/tenant/tenanttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *tenanttest.StubConn) {
	t.Helper()
	db, conn := tenanttest.NewStubDB()
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), conn
}

func TestSaveRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	content := Content{
		"status": "draft",
		"header": map[string]interface{}{
			"title":    "Quality Manual",
			"revision": float64(3),
			"approved": true,
		},
		"sections": []interface{}{"scope", "terms"},
	}
	require.NoError(t, store.Save(ctx, "ACME", "doc-1", content))

	records, err := store.FindByDocument(ctx, "ACME", "doc-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "doc-1", records[0].DocumentID)
	assert.Equal(t, "ACME", records[0].LabPrefix)
	assert.Equal(t, content, records[0].Content)
	assert.False(t, records[0].UpdatedAt.IsZero())
}

func TestSaveUpsertsAcrossCaseVariants(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ACME", "doc-1", Content{"status": "draft"}))
	require.NoError(t, store.Save(ctx, "acme", "doc-1", Content{"status": "final"}))

	// Both writes landed in the same schema and upserted the same row.
	records, err := store.FindAll(ctx, "ACME")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Content{"status": "final"}, records[0].Content)
	assert.Len(t, conn.TableRows("tenant_acme.doccontent"), 1)
}

func TestFindAllOrdersByDocumentID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, documentID := range []string{"doc-3", "doc-1", "doc-2"} {
		require.NoError(t, store.Save(ctx, "beta", documentID, Content{"id": documentID}))
	}

	records, err := store.FindAll(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "doc-1", records[0].DocumentID)
	assert.Equal(t, "doc-2", records[1].DocumentID)
	assert.Equal(t, "doc-3", records[2].DocumentID)
}

func TestFindOnFreshTenantReturnsEmpty(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()

	// A read against a never-seen lab provisions the namespace and sees an
	// empty table rather than an error.
	records, err := store.FindByDocument(ctx, "fresh", "doc-1")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, conn.Schemas["tenant_fresh"])
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "gamma", "doc-1", Content{"status": "draft"}))

	removed, err := store.Delete(ctx, "gamma", "doc-1")
	require.NoError(t, err)
	assert.True(t, removed)

	records, err := store.FindByDocument(ctx, "gamma", "doc-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Deleting an absent record is a valid empty result, not an error.
	removed, err = store.Delete(ctx, "gamma", "doc-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestBulkSave(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	count, err := store.BulkSave(ctx, "delta", map[string]Content{
		"doc-1": {"status": "draft"},
		"doc-2": {"status": "review"},
		"doc-3": {"status": "final"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	records, err := store.FindAll(ctx, "delta")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestBulkSaveStopsOnFirstErrorWithoutRollback(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()

	conn.FailDocumentID = "doc-2"

	count, err := store.BulkSave(ctx, "delta", map[string]Content{
		"doc-1": {"status": "draft"},
		"doc-2": {"status": "review"},
		"doc-3": {"status": "final"},
	})
	require.Error(t, err)
	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)
	assert.Equal(t, 1, count)

	// doc-1 persisted before the failure and stays persisted; doc-3 was
	// never attempted.
	conn.FailDocumentID = ""
	records, err := store.FindAll(ctx, "delta")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "doc-1", records[0].DocumentID)
}

func TestConcurrentFirstUse(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			documentID := string(rune('a'+i)) + "-doc"
			errs[i] = store.Save(ctx, "brandnew", documentID, Content{"n": float64(i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}
	assert.True(t, conn.Schemas["tenant_brandnew"])
	assert.Len(t, conn.TableRows("tenant_brandnew.doccontent"), writers)
}

func TestProvisioningFailureAbortsOperation(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()

	conn.FailProvision = true

	err := store.Save(ctx, "omega", "doc-1", Content{"status": "draft"})
	require.Error(t, err)
	var provErr *ProvisioningError
	assert.ErrorAs(t, err, &provErr)
	assert.Equal(t, "omega", provErr.Prefix)

	_, err = store.FindAll(ctx, "omega")
	assert.ErrorAs(t, err, &provErr)

	// Provisioning is idempotent, so the failed call is retryable.
	conn.FailProvision = false
	assert.NoError(t, store.Save(ctx, "omega", "doc-1", Content{"status": "draft"}))
}

func TestInvalidPrefixNeverReachesThePool(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()

	err := store.Save(ctx, "bad prefix", "doc-1", Content{})
	assert.ErrorIs(t, err, ErrInvalidPrefix)

	_, err = store.FindAll(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidPrefix)

	_, err = store.Delete(ctx, `x";DROP`, "doc-1")
	assert.ErrorIs(t, err, ErrInvalidPrefix)

	assert.Empty(t, conn.Execs)
}
