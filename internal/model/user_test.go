package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	assert.NoError(t, err)
	assert.NotEqual(t, "s3cret", hashed)

	user := &User{Password: hashed}
	assert.True(t, user.CheckPassword("s3cret"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestCanManageUsers(t *testing.T) {
	assert.True(t, (&User{Role: RoleSuperAdmin}).CanManageUsers())
	assert.True(t, (&User{Role: RoleManagerAdmin}).CanManageUsers())
	assert.False(t, (&User{Role: "viewer"}).CanManageUsers())
	assert.False(t, (&User{}).CanManageUsers())
}

func TestFindUserByEmail(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, db.Create(&User{
		Email:    "admin@example.com",
		Username: "admin@example.com",
		Name:     "Admin",
		Role:     RoleSuperAdmin,
		IsActive: true,
	}).Error)

	user, err := FindUserByEmail(db, "admin@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "Admin", user.Name)
	assert.True(t, user.IsActive)

	_, err = FindUserByEmail(db, "missing@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCountUsersByRole(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, db.Create(&User{Email: "a@example.com", Role: RoleSuperAdmin}).Error)
	assert.NoError(t, db.Create(&User{Email: "b@example.com", Role: RoleSuperAdmin}).Error)
	assert.NoError(t, db.Create(&User{Email: "c@example.com", Role: RoleManagerAdmin}).Error)

	count, err := CountUsersByRole(db, RoleSuperAdmin)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = CountUsersByRole(db, "viewer")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
