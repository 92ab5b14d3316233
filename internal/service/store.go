package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simmer-app/backend/internal/apperror"
	"github.com/simmer-app/backend/internal/model"
)

// RecipeStore is the persistence seam for the recipe write path. The gorm
// implementation below is the real one; tests inject failing fakes to
// exercise the compensation invariant.
type RecipeStore interface {
	InsertRecipe(ctx context.Context, recipe *model.Recipe) error
	InsertIngredients(ctx context.Context, ingredients []model.Ingredient) error
	InsertAudit(ctx context.Context, record *model.AuditRecord) error
	HardDeleteRecipe(ctx context.Context, id uuid.UUID) error

	GetRecipe(ctx context.Context, id uuid.UUID) (*model.Recipe, error)
	GetIngredients(ctx context.Context, recipeID uuid.UUID) ([]model.Ingredient, error)
	ListRecipes(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Recipe, error)
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	DeleteIngredients(ctx context.Context, recipeID uuid.UUID) error
	SoftDeleteRecipe(ctx context.Context, id uuid.UUID) error
	UpdateCachedNutrition(ctx context.Context, id uuid.UUID, summary *model.NutritionSummary) error
	UpdateImageURL(ctx context.Context, id uuid.UUID, url string) error

	EnqueueJob(ctx context.Context, job *model.AIJob) error
	FinishJob(ctx context.Context, recipeID uuid.UUID, jobType string) error

	Transaction(ctx context.Context, fn func(RecipeStore) error) error
}

type gormRecipeStore struct {
	db *gorm.DB
}

// NewRecipeStore creates the gorm-backed store.
func NewRecipeStore(db *gorm.DB) RecipeStore {
	return &gormRecipeStore{db: db}
}

func (s *gormRecipeStore) InsertRecipe(ctx context.Context, recipe *model.Recipe) error {
	return s.db.WithContext(ctx).Create(recipe).Error
}

func (s *gormRecipeStore) InsertIngredients(ctx context.Context, ingredients []model.Ingredient) error {
	if len(ingredients) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&ingredients).Error
}

func (s *gormRecipeStore) InsertAudit(ctx context.Context, record *model.AuditRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// HardDeleteRecipe removes the row outright. This is the compensating action
// for a failed creation, not the user-facing soft delete.
func (s *gormRecipeStore) HardDeleteRecipe(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Unscoped().Delete(&model.Recipe{}, "id = ?", id).Error
}

func (s *gormRecipeStore) GetRecipe(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	var recipe model.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.KindNotFound, "recipe not found")
		}
		return nil, err
	}
	return &recipe, nil
}

func (s *gormRecipeStore) GetIngredients(ctx context.Context, recipeID uuid.UUID) ([]model.Ingredient, error) {
	var ingredients []model.Ingredient
	if err := s.db.WithContext(ctx).Where("recipe_id = ?", recipeID).Order("created_at").Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (s *gormRecipeStore) ListRecipes(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Recipe, error) {
	var recipes []model.Recipe
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)

	if search != "" {
		if s.db.Dialector.Name() == "postgres" {
			vec := GenerateEmbedding(search)
			query = query.Clauses(clause.OrderBy{
				Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{vec}},
			})
		} else {
			like := "%" + strings.ToLower(search) + "%"
			query = query.Where("LOWER(title) LIKE ? OR LOWER(raw_text) LIKE ?", like, like)
		}
	}

	if err := query.Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

func (s *gormRecipeStore) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return s.db.WithContext(ctx).Model(&model.Recipe{}).Where("id = ?", recipe.ID).Updates(map[string]interface{}{
		"title":       recipe.Title,
		"raw_text":    recipe.RawText,
		"recipe_data": recipe.RecipeData,
		"embedding":   recipe.Embedding,
	}).Error
}

func (s *gormRecipeStore) DeleteIngredients(ctx context.Context, recipeID uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&model.Ingredient{}, "recipe_id = ?", recipeID).Error
}

func (s *gormRecipeStore) SoftDeleteRecipe(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&model.Recipe{}, "id = ?", id).Error
}

func (s *gormRecipeStore) UpdateCachedNutrition(ctx context.Context, id uuid.UUID, summary *model.NutritionSummary) error {
	return s.db.WithContext(ctx).Model(&model.Recipe{}).Where("id = ?", id).
		Update("cached_nutrition", summary).Error
}

func (s *gormRecipeStore) UpdateImageURL(ctx context.Context, id uuid.UUID, url string) error {
	return s.db.WithContext(ctx).Model(&model.Recipe{}).Where("id = ?", id).
		Update("image_url", url).Error
}

// EnqueueJob inserts the job row. The unique (recipe_id, job_type) index is
// what prevents two simultaneously active jobs; a violation maps to Conflict.
func (s *gormRecipeStore) EnqueueJob(ctx context.Context, job *model.AIJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		if isDuplicate(err) {
			return apperror.Wrap(apperror.KindConflict, "an active job of this type already exists for the recipe", err)
		}
		return err
	}
	return nil
}

// FinishJob removes the row, freeing the uniqueness slot.
func (s *gormRecipeStore) FinishJob(ctx context.Context, recipeID uuid.UUID, jobType string) error {
	return s.db.WithContext(ctx).Delete(&model.AIJob{}, "recipe_id = ? AND job_type = ?", recipeID, jobType).Error
}

func (s *gormRecipeStore) Transaction(ctx context.Context, fn func(RecipeStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRecipeStore{db: tx})
	})
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
