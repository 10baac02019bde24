package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one issued refresh token: a server-side row per login/device.
// Rows are never deleted; revocation flips Revoked so the record stays as an
// audit trail. Expired-but-unrevoked rows persist and are filtered at
// verification time.
type Session struct {
	JTI            uuid.UUID `gorm:"type:uuid;primaryKey;column:jti_id" json:"jti_id"`
	UserID         uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	IPAddress      string    `gorm:"size:64" json:"ip_address"`
	UserAgent      string    `gorm:"size:512" json:"user_agent"`
	Device         string    `gorm:"size:128" json:"device"`
	Browser        string    `gorm:"size:128" json:"browser"`
	OS             string    `gorm:"size:128" json:"os"`
	IsRefreshToken bool      `gorm:"not null;default:true" json:"is_refresh_token"`
	Revoked        bool      `gorm:"not null;default:false" json:"revoked"`
	ExpiresAt      int64     `gorm:"index;not null" json:"expires_at"`
	CreatedAt      int64     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      int64     `gorm:"autoUpdateTime" json:"updated_at"`
}

// Valid reports whether the session may still be exchanged for access tokens.
func (s *Session) Valid(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt > now.Unix()
}
