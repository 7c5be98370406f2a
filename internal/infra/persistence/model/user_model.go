package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table. PostgreSQL generates UUIDs via
// gen_random_uuid().
type UserModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PublicID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()"`
	Email           string    `gorm:"type:varchar(255);unique;not null"`
	Name            string    `gorm:"type:varchar(100)"`
	PasswordHash    string    `gorm:"type:varchar(255);not null"`
	Role            string    `gorm:"type:varchar(32);not null"`
	IsActive        bool      `gorm:"not null;default:true"`
	IsEmailVerified bool      `gorm:"not null;default:false"`

	TwoFactorEnabled bool   `gorm:"not null;default:false"`
	TwoFactorSecret  string `gorm:"type:varchar(64)"`
	// BackupCodeHashes holds a JSON array of hash strings.
	BackupCodeHashes []byte `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time

	RefreshSessions []RefreshSessionModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
