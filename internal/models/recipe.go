package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/jinzhu/gorm"
)

// StringSlice represents a slice of strings that can be stored in the database
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for StringSlice")
	}
}

// StepType distinguishes steps that finish on confirmation from steps
// that run against a clock.
type StepType string

const (
	StepTypeImmediate StepType = "immediate"
	StepTypeTimer     StepType = "timer"
)

// RecipeDocument is the validated recipe description a session cooks from.
// It is produced upstream (extraction + schema validation) and consumed
// read-only by the engine.
type RecipeDocument struct {
	Recipe      RecipeMeta   `json:"recipe"`
	Ingredients []Ingredient `json:"ingredients,omitempty"`
	Utensils    []string     `json:"utensils,omitempty"`
	Steps       []RecipeStep `json:"steps"`
	Notes       string       `json:"notes,omitempty"`
}

// RecipeMeta holds recipe-level metadata
type RecipeMeta struct {
	Title         string `json:"title"`
	TotalDuration string `json:"total_duration,omitempty"` // ISO-8601
	Servings      int    `json:"servings,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	Locale        string `json:"locale,omitempty"`
	Source        string `json:"source,omitempty"`
}

// Ingredient represents a required ingredient for a recipe
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// RecipeStep represents a single step in a recipe document
type RecipeStep struct {
	ID              string   `json:"id"`
	Description     string   `json:"description"`
	Instructions    string   `json:"instructions,omitempty"`
	Type            StepType `json:"type"`
	AutoStart       bool     `json:"auto_start,omitempty"`
	RequiresConfirm bool     `json:"requires_confirm,omitempty"`
	Duration        string   `json:"duration,omitempty"` // ISO-8601, timer steps only
	DependsOn       []string `json:"depends_on,omitempty"`
}

// Recipe is the persisted form of a recipe document. The document itself
// is stored as a JSON column; scalar columns mirror it for querying.
type Recipe struct {
	gorm.Model
	RecipeID     string `gorm:"column:recipe_id;unique_index"`
	Title        string
	Difficulty   string
	Servings     int
	Locale       string
	Source       string
	DocumentJSON string      `gorm:"type:text"`
	Utensils     StringSlice `gorm:"type:text"`
	Notes        string
	// Transient field (ignored by GORM)
	Document *RecipeDocument `gorm:"-"`
}

// TableName sets the table name for Recipe
func (Recipe) TableName() string {
	return "recipes"
}

// GetDocument returns the deserialized recipe document
func (r *Recipe) GetDocument() (*RecipeDocument, error) {
	if r.Document != nil {
		return r.Document, nil
	}
	if r.DocumentJSON == "" {
		return nil, errors.New("recipe has no document")
	}
	var doc RecipeDocument
	if err := json.Unmarshal([]byte(r.DocumentJSON), &doc); err != nil {
		return nil, err
	}
	r.Document = &doc
	return &doc, nil
}

// SetDocument serializes the recipe document for storage and mirrors its
// metadata into the query columns.
func (r *Recipe) SetDocument(doc *RecipeDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	r.DocumentJSON = string(data)
	r.Document = doc
	r.Title = doc.Recipe.Title
	r.Difficulty = doc.Recipe.Difficulty
	r.Servings = doc.Recipe.Servings
	r.Locale = doc.Recipe.Locale
	r.Source = doc.Recipe.Source
	r.Utensils = StringSlice(doc.Utensils)
	r.Notes = doc.Notes
	return nil
}
