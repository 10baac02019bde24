package models

import "github.com/google/uuid"

// User model
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username       string    `gorm:"size:255;not null" json:"username"`
	Email          string    `gorm:"size:255;not null;unique" json:"email"`
	HashedPassword []byte    `gorm:"not null" json:"-"`
	CreatedAt      int64     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      int64     `gorm:"autoUpdateTime" json:"updated_at"`
}
