package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaName(t *testing.T) {
	schema, err := SchemaName("ACME")
	assert.NoError(t, err)
	assert.Equal(t, "tenant_acme", schema)

	// Case variants of the same prefix resolve to the same schema.
	for _, prefix := range []string{"acme", "Acme", "aCmE"} {
		got, err := SchemaName(prefix)
		assert.NoError(t, err)
		assert.Equal(t, schema, got)
	}

	// The mapping is stable across calls.
	again, err := SchemaName("ACME")
	assert.NoError(t, err)
	assert.Equal(t, schema, again)
}

func TestSchemaNameRejectsInvalidPrefixes(t *testing.T) {
	invalid := []string{
		"",
		"has space",
		"semi;colon",
		`quo"ted`,
		"dash-ed",
		"dot.ted",
		"x'); DROP SCHEMA public; --",
		"waytoolongwaytoolongwaytoolongwaytoolongwaytoolongx", // 51 chars
	}
	for _, prefix := range invalid {
		_, err := SchemaName(prefix)
		assert.ErrorIs(t, err, ErrInvalidPrefix, "prefix %q", prefix)
	}
}

func TestValidatePrefixAllowsIdentifierCharacters(t *testing.T) {
	for _, prefix := range []string{"ACME", "lab_01", "X", "a1_b2_c3"} {
		assert.NoError(t, ValidatePrefix(prefix), "prefix %q", prefix)
	}
}
