// Package database persists structured recipe documents so sessions can
// be created from a recipe id.
package database

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"souschef/internal/models"
)

// Store wraps the recipe table. It is safe for concurrent use; gorm
// serializes access to the underlying connection pool.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and runs migrations.
// Supported dialects are "sqlite3" and "postgres".
func Open(dialect, dsn string) (*Store, error) {
	switch dialect {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}

	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.AutoMigrate(&models.Recipe{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate recipes table: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveDocument upserts a recipe document under the given recipe id.
func (s *Store) SaveDocument(recipeID string, doc *models.RecipeDocument) error {
	var rec models.Recipe
	err := s.db.Where("recipe_id = ?", recipeID).First(&rec).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	rec.RecipeID = recipeID
	if err := rec.SetDocument(doc); err != nil {
		return err
	}
	return s.db.Save(&rec).Error
}

// GetDocument loads the recipe document stored under the recipe id.
func (s *Store) GetDocument(recipeID string) (*models.RecipeDocument, error) {
	var rec models.Recipe
	if err := s.db.Where("recipe_id = ?", recipeID).First(&rec).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("recipe %q not found", recipeID)
		}
		return nil, err
	}
	return rec.GetDocument()
}

// ListRecipes returns the stored recipes without their documents.
func (s *Store) ListRecipes() ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := s.db.Order("title").Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

// DeleteRecipe removes a stored recipe. Deleting an unknown id is a no-op.
func (s *Store) DeleteRecipe(recipeID string) error {
	return s.db.Where("recipe_id = ?", recipeID).Delete(&models.Recipe{}).Error
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
