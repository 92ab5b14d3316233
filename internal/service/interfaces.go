package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/simmer-app/backend/internal/model"
	"github.com/simmer-app/backend/internal/types"
)

// NutritionEnricher is the slice of the enrichment client the write
// coordinator depends on.
type NutritionEnricher interface {
	EstimateNutrition(ctx context.Context, ingredients []model.IngredientEntry, condition string) (*model.NutritionSummary, error)
}

// TokenVerifier verifies a bearer token and returns the external subject.
type TokenVerifier interface {
	VerifySubject(token string) (string, error)
}

// OwnerResolver maps an external auth subject to the internal owner id,
// creating the mapping on first use.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, subject string) (uuid.UUID, error)
}

// IRecipeService defines the interface for recipe operations
type IRecipeService interface {
	CreateRecipe(ctx context.Context, ownerID uuid.UUID, cmd *types.CreateRecipeCommand) (*types.RecipeResponse, error)
	GetRecipe(ctx context.Context, id uuid.UUID) (*types.RecipeResponse, error)
	ListRecipes(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Recipe, error)
	UpdateRecipe(ctx context.Context, ownerID, id uuid.UUID, cmd *types.UpdateRecipeCommand) (*types.RecipeResponse, error)
	DeleteRecipe(ctx context.Context, ownerID, id uuid.UUID) error
}

var (
	_ IRecipeService    = (*RecipeService)(nil)
	_ NutritionEnricher = (*LLMService)(nil)
	_ TokenVerifier     = (*TokenService)(nil)
	_ OwnerResolver     = (*IdentityService)(nil)
)
