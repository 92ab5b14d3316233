package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONBMap stores free-form metadata as JSONB.
type JSONBMap map[string]interface{}

// Value implements the driver.Valuer interface
func (m JSONBMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface
func (m *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONBMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// AuditRecord is an append-only log entry. Rows are never updated or deleted;
// an audit failure never fails the operation it describes.
type AuditRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	RecipeID  uuid.UUID `gorm:"type:uuid;not null;index" json:"recipe_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Action    string    `gorm:"size:50;not null" json:"action"`
	Metadata  JSONBMap  `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
}

// AI job states.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// AIJob is one queued unit of asynchronous enrichment work. The composite
// unique index is the authority preventing two simultaneously active jobs of
// the same type for one recipe; finished rows are deleted so the slot frees up.
type AIJob struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	RecipeID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ai_jobs_recipe_type" json:"recipe_id"`
	JobType   string    `gorm:"size:50;not null;uniqueIndex:idx_ai_jobs_recipe_type" json:"job_type"`
	Status    string    `gorm:"size:20;not null;default:'queued'" json:"status"`
	LastError string    `gorm:"type:text" json:"last_error,omitempty"`
}
