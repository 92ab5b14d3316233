package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simmer-app/backend/internal/apperror"
	"github.com/simmer-app/backend/internal/model"
	"github.com/simmer-app/backend/internal/types"
)

const enrichmentTimeout = time.Minute

// RecipeServiceConfig tunes the write coordinator.
type RecipeServiceConfig struct {
	// Atomic wraps the recipe+ingredient writes in a database transaction.
	// When false the coordinator falls back to the compensating-delete
	// sequence for stores without transaction support.
	Atomic bool
	// SyncNutrition awaits enrichment before returning; the default is
	// fire-and-forget, where the immediate response always carries a null
	// cached nutrition.
	SyncNutrition bool
}

// RecipeService coordinates the recipe write path: recipe insert, ingredient
// bulk insert, audit insert, then optional nutrition enrichment.
type RecipeService struct {
	store    RecipeStore
	enricher NutritionEnricher
	logger   *zap.Logger
	cfg      RecipeServiceConfig
}

// NewRecipeService creates a new RecipeService. enricher may be nil, which
// disables enrichment entirely.
func NewRecipeService(store RecipeStore, enricher NutritionEnricher, logger *zap.Logger, cfg RecipeServiceConfig) *RecipeService {
	return &RecipeService{
		store:    store,
		enricher: enricher,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateRecipe durably stores one recipe and its ingredients for the given
// owner. The owner id always comes from the resolved identity, never from the
// command. Audit failures are logged and swallowed; enrichment never blocks
// the response unless sync mode is on.
func (s *RecipeService) CreateRecipe(ctx context.Context, ownerID uuid.UUID, cmd *types.CreateRecipeCommand) (*types.RecipeResponse, error) {
	recipe := &model.Recipe{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Title:      cmd.Title,
		RawText:    cmd.RawText,
		RecipeData: cmd.RecipeData,
		Embedding:  GenerateEmbedding(cmd.Title + " " + cmd.RawText),
	}
	ingredients := buildIngredientRows(recipe.ID, cmd.RecipeData.Ingredients)

	if err := s.writeRecipe(ctx, recipe, ingredients); err != nil {
		return nil, err
	}

	audit := &model.AuditRecord{
		RecipeID: recipe.ID,
		UserID:   ownerID,
		Action:   "create",
		Metadata: model.JSONBMap{"title": recipe.Title},
	}
	if err := s.store.InsertAudit(ctx, audit); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("recipe_id", recipe.ID.String()),
			zap.Error(err),
		)
	}

	if s.enricher != nil {
		if s.cfg.SyncNutrition {
			s.enrichNutrition(ctx, recipe.ID, recipe.RecipeData.Ingredients)
			if updated, err := s.store.GetRecipe(ctx, recipe.ID); err == nil {
				recipe.CachedNutrition = updated.CachedNutrition
			}
		} else {
			go s.enrichDetached(recipe.ID, recipe.RecipeData.Ingredients)
		}
	}

	return &types.RecipeResponse{Recipe: *recipe, Ingredients: ingredients}, nil
}

// writeRecipe performs the recipe insert and ingredient bulk insert, either
// inside one transaction or sequentially with a compensating delete. In the
// non-atomic path a concurrent reader can observe a recipe with no
// ingredients between the two inserts; the compensating delete closes that
// window on failure but cannot make it atomic.
func (s *RecipeService) writeRecipe(ctx context.Context, recipe *model.Recipe, ingredients []model.Ingredient) error {
	if s.cfg.Atomic {
		err := s.store.Transaction(ctx, func(tx RecipeStore) error {
			if err := tx.InsertRecipe(ctx, recipe); err != nil {
				return err
			}
			return tx.InsertIngredients(ctx, ingredients)
		})
		if err != nil {
			s.auditCreateFailed(ctx, recipe, err)
			return apperror.Wrap(apperror.KindPersistence, "failed to create recipe", err)
		}
		return nil
	}

	if err := s.store.InsertRecipe(ctx, recipe); err != nil {
		// Nothing was written, no compensation needed.
		return apperror.Wrap(apperror.KindPersistence, "failed to insert recipe", err)
	}

	if err := s.store.InsertIngredients(ctx, ingredients); err != nil {
		if derr := s.store.HardDeleteRecipe(ctx, recipe.ID); derr != nil {
			// The orphaned row stays behind; make it observable.
			s.logger.Error("compensating delete failed, recipe row orphaned",
				zap.String("recipe_id", recipe.ID.String()),
				zap.Error(derr),
			)
		}
		s.auditCreateFailed(ctx, recipe, err)
		return apperror.Wrap(apperror.KindPersistence, "failed to insert ingredients", err)
	}

	return nil
}

func (s *RecipeService) auditCreateFailed(ctx context.Context, recipe *model.Recipe, cause error) {
	audit := &model.AuditRecord{
		RecipeID: recipe.ID,
		UserID:   recipe.OwnerID,
		Action:   "create_failed",
		Metadata: model.JSONBMap{"title": recipe.Title, "error": cause.Error()},
	}
	if err := s.store.InsertAudit(ctx, audit); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("recipe_id", recipe.ID.String()),
			zap.Error(err),
		)
	}
}

// enrichDetached runs enrichment outside the request lifecycle; it may finish
// after the client already received its 201.
func (s *RecipeService) enrichDetached(recipeID uuid.UUID, ingredients []model.IngredientEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichmentTimeout)
	defer cancel()
	s.enrichNutrition(ctx, recipeID, ingredients)
}

// enrichNutrition requests a nutrition estimate and overwrites the recipe's
// cached summary. Every failure here is non-fatal: the recipe is already
// created. The AIJob row's unique index keeps concurrent enrichment of the
// same recipe out.
func (s *RecipeService) enrichNutrition(ctx context.Context, recipeID uuid.UUID, ingredients []model.IngredientEntry) {
	job := &model.AIJob{RecipeID: recipeID, JobType: "nutrition", Status: model.JobRunning}
	if err := s.store.EnqueueJob(ctx, job); err != nil {
		if apperror.KindOf(err) == apperror.KindConflict {
			s.logger.Info("nutrition job already active, skipping",
				zap.String("recipe_id", recipeID.String()),
			)
		} else {
			s.logger.Warn("failed to enqueue nutrition job",
				zap.String("recipe_id", recipeID.String()),
				zap.Error(err),
			)
		}
		return
	}
	defer func() {
		// The enrichment context may already be cancelled here; the slot
		// must be freed regardless or later enrichments stay blocked.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.FinishJob(cleanupCtx, recipeID, "nutrition"); err != nil {
			s.logger.Warn("failed to finish nutrition job", zap.Error(err))
		}
	}()

	summary, err := s.enricher.EstimateNutrition(ctx, ingredients, "")
	if err != nil {
		s.logger.Warn("nutrition enrichment failed",
			zap.String("recipe_id", recipeID.String()),
			zap.Error(err),
		)
		return
	}

	if err := s.store.UpdateCachedNutrition(ctx, recipeID, summary); err != nil {
		s.logger.Warn("failed to store nutrition estimate",
			zap.String("recipe_id", recipeID.String()),
			zap.Error(err),
		)
	}
}

// GetRecipe returns the assembled recipe.
func (s *RecipeService) GetRecipe(ctx context.Context, id uuid.UUID) (*types.RecipeResponse, error) {
	recipe, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	ingredients, err := s.store.GetIngredients(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to load ingredients", err)
	}
	return &types.RecipeResponse{Recipe: *recipe, Ingredients: ingredients}, nil
}

// ListRecipes lists the owner's recipes, optionally ordered by similarity to
// a search query.
func (s *RecipeService) ListRecipes(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Recipe, error) {
	recipes, err := s.store.ListRecipes(ctx, ownerID, search)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to list recipes", err)
	}
	return recipes, nil
}

// UpdateRecipe replaces the recipe's content and ingredient rows. Only the
// owner may update.
func (s *RecipeService) UpdateRecipe(ctx context.Context, ownerID, id uuid.UUID, cmd *types.UpdateRecipeCommand) (*types.RecipeResponse, error) {
	existing, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, apperror.New(apperror.KindNotFound, "recipe not found")
	}

	existing.Title = cmd.Title
	existing.RawText = cmd.RawText
	existing.RecipeData = cmd.RecipeData
	existing.Embedding = GenerateEmbedding(cmd.Title + " " + cmd.RawText)
	ingredients := buildIngredientRows(id, cmd.RecipeData.Ingredients)

	err = s.store.Transaction(ctx, func(tx RecipeStore) error {
		if err := tx.UpdateRecipe(ctx, existing); err != nil {
			return err
		}
		if err := tx.DeleteIngredients(ctx, id); err != nil {
			return err
		}
		return tx.InsertIngredients(ctx, ingredients)
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, "failed to update recipe", err)
	}

	audit := &model.AuditRecord{
		RecipeID: id,
		UserID:   ownerID,
		Action:   "update",
		Metadata: model.JSONBMap{"title": cmd.Title},
	}
	if err := s.store.InsertAudit(ctx, audit); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}

	return s.GetRecipe(ctx, id)
}

// DeleteRecipe marks the recipe deleted. Only the owner may delete.
func (s *RecipeService) DeleteRecipe(ctx context.Context, ownerID, id uuid.UUID) error {
	existing, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return apperror.New(apperror.KindNotFound, "recipe not found")
	}

	if err := s.store.SoftDeleteRecipe(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindPersistence, "failed to delete recipe", err)
	}

	audit := &model.AuditRecord{
		RecipeID: id,
		UserID:   ownerID,
		Action:   "delete",
		Metadata: model.JSONBMap{"title": existing.Title},
	}
	if err := s.store.InsertAudit(ctx, audit); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}

	return nil
}

// SetImageURL records the uploaded image location. Only the owner may attach
// an image.
func (s *RecipeService) SetImageURL(ctx context.Context, ownerID, id uuid.UUID, url string) error {
	existing, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return apperror.New(apperror.KindNotFound, "recipe not found")
	}
	if err := s.store.UpdateImageURL(ctx, id, url); err != nil {
		return apperror.Wrap(apperror.KindPersistence, "failed to store image url", err)
	}
	return nil
}

func buildIngredientRows(recipeID uuid.UUID, entries []model.IngredientEntry) []model.Ingredient {
	rows := make([]model.Ingredient, 0, len(entries))
	for _, entry := range entries {
		row := model.Ingredient{
			ID:             uuid.New(),
			RecipeID:       recipeID,
			Name:           entry.Name,
			NormalizedName: entry.NormalizedName,
			Quantity:       entry.Quantity,
			UnitText:       entry.UnitText,
		}
		if entry.UnitID != "" {
			if unitID, err := uuid.Parse(entry.UnitID); err == nil {
				row.UnitID = &unitID
			}
		}
		rows = append(rows, row)
	}
	return rows
}
