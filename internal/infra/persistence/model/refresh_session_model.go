package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSessionModel mirrors the 'refresh_sessions' table. The
// refresh_jti unique index is what makes rotation races resolvable.
type RefreshSessionModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	AccessJTI  uuid.UUID  `gorm:"type:uuid;not null"`
	RefreshJTI uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	Status     string     `gorm:"type:varchar(16);not null;default:'active';index"`
	UserAgent  string     `gorm:"type:varchar(512)"`
	IssuedAt   time.Time  `gorm:"not null"`
	ExpiresAt  time.Time  `gorm:"not null;index"`
	RevokedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (RefreshSessionModel) TableName() string {
	return "refresh_sessions"
}
