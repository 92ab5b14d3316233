package model

import (
	"time"

	"github.com/google/uuid"
)

// UserAccount maps an external auth subject to the internal owner identifier.
// The row is created on first use; the subject string is opaque to us.
type UserAccount struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Subject   string    `gorm:"size:255;not null;uniqueIndex" json:"subject"`
}
