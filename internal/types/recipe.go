package types

import (
	"github.com/simmer-app/backend/internal/model"
)

// CreateRecipeCommand is the typed create-recipe payload, bound after the
// structural validator has accepted the raw body. There is deliberately no
// owner field: ownership always comes from the resolved identity.
type CreateRecipeCommand struct {
	Title      string               `json:"title"`
	RawText    string               `json:"raw_text"`
	RecipeData model.RecipeDocument `json:"recipe_data"`
}

// UpdateRecipeCommand mirrors CreateRecipeCommand for full updates.
type UpdateRecipeCommand = CreateRecipeCommand

// RecipeResponse is the assembled recipe returned to clients: the persisted
// recipe row plus its persisted ingredient rows. In the fire-and-forget
// enrichment configuration cached_nutrition is null here even when enrichment
// later succeeds.
type RecipeResponse struct {
	model.Recipe
	Ingredients []model.Ingredient `json:"ingredients"`
}
