package tenant

import (
	"errors"
	"fmt"
)

// ErrInvalidPrefix is returned when a lab prefix is empty or contains
// characters outside the allowed identifier set.
var ErrInvalidPrefix = errors.New("invalid lab prefix")

// ProvisioningError wraps a backing-store failure while creating a tenant's
// schema or its doccontent table. Provisioning is idempotent, so the failed
// operation is safe to retry.
type ProvisioningError struct {
	Prefix string
	Err    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning namespace for lab %q: %v", e.Prefix, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// StorageError wraps a backing-store failure during a content read, write or
// delete. The store performs no local retries; retry policy is the caller's.
type StorageError struct {
	Op     string
	Prefix string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s content for lab %q: %v", e.Op, e.Prefix, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
