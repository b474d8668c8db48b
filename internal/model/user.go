package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Roles that may manage other user accounts.
const (
	RoleSuperAdmin   = "super_admin"
	RoleManagerAdmin = "manager_admin"
)

// User represents a user account stored in the database
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Username  string         `json:"username" gorm:"type:varchar(100)"`
	Name      string         `json:"name" gorm:"type:varchar(100)"`
	Role      string         `json:"role" gorm:"type:varchar(50)"`
	Password  string         `json:"-" gorm:"type:varchar(255)"`
	IsActive  bool           `json:"is_active" gorm:"default:true"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"date_joined"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// CanManageUsers reports whether the user's role allows user administration.
func (u *User) CanManageUsers() bool {
	return u.Role == RoleSuperAdmin || u.Role == RoleManagerAdmin
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares the stored hash against a plaintext candidate.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// FindUserByEmail looks a user up by email address.
func FindUserByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CountUsersByRole returns the number of users holding the given role.
func CountUsersByRole(db *gorm.DB, role string) (int64, error) {
	var count int64
	err := db.Model(&User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}
