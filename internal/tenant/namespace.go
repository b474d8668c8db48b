// Package tenant implements the per-lab document content store. Each lab gets
// its own database schema, named deterministically from the lab's document ID
// prefix and provisioned lazily on first use.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

const schemaPrefix = "tenant_"

// Lab prefixes become part of schema identifiers, so they are restricted to
// an allow-listed character set before reaching any statement text.
var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)

// ValidatePrefix rejects prefixes that may not be used in identifier
// position.
func ValidatePrefix(prefix string) error {
	if !prefixPattern.MatchString(prefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}

// SchemaName resolves a lab prefix to its schema name. The mapping is a pure
// function of the prefix: case variants of the same prefix always resolve to
// the same schema.
func SchemaName(prefix string) (string, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return "", err
	}
	return schemaPrefix + strings.ToLower(prefix), nil
}
