package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB creates an in-memory SQLite database with the registry schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &Lab{}, &Document{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestLabExistsIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, db.Create(&Lab{DocumentIDPrefix: "Acme", Name: "Acme Labs"}).Error)

	for _, prefix := range []string{"acme", "ACME", "Acme", "aCmE"} {
		exists, err := LabExists(db, prefix)
		assert.NoError(t, err)
		assert.True(t, exists, "prefix %q should match", prefix)
	}

	exists, err := LabExists(db, "other")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestFindLabByPrefix(t *testing.T) {
	db := newTestDB(t)

	created := &Lab{
		DocumentIDPrefix:    "central",
		Name:                "Central Diagnostics",
		City:                "Pune",
		SampleSource:        []string{"in_house", "referral"},
		SelectedDepartments: []string{"hematology", "biochemistry"},
	}
	assert.NoError(t, db.Create(created).Error)

	lab, err := FindLabByPrefix(db, "CENTRAL")
	assert.NoError(t, err)
	assert.Equal(t, "Central Diagnostics", lab.Name)
	assert.Equal(t, []string{"in_house", "referral"}, lab.SampleSource)
	assert.Equal(t, []string{"hematology", "biochemistry"}, lab.SelectedDepartments)

	_, err = FindLabByPrefix(db, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindAllLabsNewestFirst(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, db.Create(&Lab{DocumentIDPrefix: "first", Name: "First"}).Error)
	assert.NoError(t, db.Create(&Lab{DocumentIDPrefix: "second", Name: "Second"}).Error)

	labs, err := FindAllLabs(db)
	assert.NoError(t, err)
	assert.Len(t, labs, 2)
}

func TestDeleteLabByPrefix(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, db.Create(&Lab{DocumentIDPrefix: "gone", Name: "Gone Labs"}).Error)

	deleted, err := DeleteLabByPrefix(db, "GONE")
	assert.NoError(t, err)
	assert.True(t, deleted)

	exists, err := LabExists(db, "gone")
	assert.NoError(t, err)
	assert.False(t, exists)

	deleted, err = DeleteLabByPrefix(db, "gone")
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestLabStatusDefaultsToActive(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, db.Create(&Lab{DocumentIDPrefix: "fresh", Name: "Fresh Labs"}).Error)

	lab, err := FindLabByPrefix(db, "fresh")
	assert.NoError(t, err)
	assert.Equal(t, LabStatusActive, lab.LabStatus)
}
