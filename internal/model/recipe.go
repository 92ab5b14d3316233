package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// IngredientEntry is one ingredient inside the structured recipe document.
type IngredientEntry struct {
	Name           string  `json:"name"`
	NormalizedName string  `json:"normalized_name,omitempty"`
	Quantity       float64 `json:"quantity"`
	UnitID         string  `json:"unit_id,omitempty"`
	UnitText       string  `json:"unit_text,omitempty"`
}

// RecipeDocument is the structured recipe payload stored as JSONB alongside
// the raw free text.
type RecipeDocument struct {
	Title       string            `json:"title"`
	Ingredients []IngredientEntry `json:"ingredients"`
	Steps       []string          `json:"steps"`
}

// Value implements the driver.Valuer interface
func (d RecipeDocument) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface
func (d *RecipeDocument) Scan(value interface{}) error {
	if value == nil {
		*d = RecipeDocument{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RecipeDocument", value)
	}

	return json.Unmarshal(bytes, d)
}

// NutritionSummary is the cached nutrition estimate for a recipe. It is
// overwritten by enrichment, never versioned.
type NutritionSummary struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Value implements the driver.Valuer interface
func (n *NutritionSummary) Value() (driver.Value, error) {
	if n == nil {
		return nil, nil
	}
	return json.Marshal(n)
}

// Scan implements the sql.Scanner interface
func (n *NutritionSummary) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into NutritionSummary", value)
	}

	return json.Unmarshal(bytes, n)
}

// Recipe is the persisted recipe row. OwnerID is always set server-side from
// the resolved identity, never from client input.
type Recipe struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"-"`
	OwnerID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Title           string            `gorm:"size:300;not null" json:"title"`
	RawText         string            `gorm:"type:text;not null" json:"raw_text"`
	RecipeData      RecipeDocument    `gorm:"type:jsonb;not null" json:"recipe_data"`
	CachedNutrition *NutritionSummary `gorm:"type:jsonb" json:"cached_nutrition"`
	ImageURL        string            `gorm:"size:255" json:"image_url,omitempty"`
	Embedding       pgvector.Vector   `gorm:"type:vector(3)" json:"-"`
}

// Ingredient is one persisted ingredient row, owned by exactly one recipe.
// Rows are removed by the compensating delete when recipe creation fails.
type Ingredient struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	RecipeID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipe_id"`
	Name           string     `gorm:"size:200;not null" json:"name"`
	NormalizedName string     `gorm:"size:200" json:"normalized_name,omitempty"`
	Quantity       float64    `gorm:"not null" json:"quantity"`
	UnitID         *uuid.UUID `gorm:"type:uuid" json:"unit_id,omitempty"`
	UnitText       string     `gorm:"size:50" json:"unit_text,omitempty"`
}

// Unit is a reference row for well-known measurement units.
type Unit struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name         string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Abbreviation string    `gorm:"size:10" json:"abbreviation"`
	System       string    `gorm:"size:10" json:"system"`
	CreatedAt    time.Time `json:"created_at"`
}
