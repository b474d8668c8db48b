package model

import (
	"time"

	"gorm.io/gorm"
)

// Document represents a document record owned by a user
type Document struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Title     string         `json:"title" gorm:"type:varchar(200);not null"`
	Content   string         `json:"content" gorm:"type:text"`
	OwnerID   uint           `json:"owner_id" gorm:"index;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
