package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simmer-app/backend/internal/apperror"
	"github.com/simmer-app/backend/internal/model"
	"github.com/simmer-app/backend/internal/types"
)

// fakeStore is an in-memory RecipeStore with injectable failures, used to
// exercise the compensation and audit paths without a database.
type fakeStore struct {
	mu          sync.Mutex
	recipes     map[uuid.UUID]*model.Recipe
	ingredients map[uuid.UUID][]model.Ingredient
	audits      []model.AuditRecord
	jobs        map[string]*model.AIJob

	failInsertRecipe      error
	failInsertIngredients error
	failInsertAudit       error
	failHardDelete        error

	hardDeletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recipes:     make(map[uuid.UUID]*model.Recipe),
		ingredients: make(map[uuid.UUID][]model.Ingredient),
		jobs:        make(map[string]*model.AIJob),
	}
}

func (f *fakeStore) InsertRecipe(ctx context.Context, recipe *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertRecipe != nil {
		return f.failInsertRecipe
	}
	copied := *recipe
	f.recipes[recipe.ID] = &copied
	return nil
}

func (f *fakeStore) InsertIngredients(ctx context.Context, ingredients []model.Ingredient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertIngredients != nil {
		return f.failInsertIngredients
	}
	for _, ing := range ingredients {
		f.ingredients[ing.RecipeID] = append(f.ingredients[ing.RecipeID], ing)
	}
	return nil
}

func (f *fakeStore) InsertAudit(ctx context.Context, record *model.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertAudit != nil {
		return f.failInsertAudit
	}
	f.audits = append(f.audits, *record)
	return nil
}

func (f *fakeStore) HardDeleteRecipe(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hardDeletes++
	if f.failHardDelete != nil {
		return f.failHardDelete
	}
	delete(f.recipes, id)
	delete(f.ingredients, id)
	return nil
}

func (f *fakeStore) GetRecipe(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recipe, ok := f.recipes[id]
	if !ok {
		return nil, apperror.New(apperror.KindNotFound, "recipe not found")
	}
	copied := *recipe
	return &copied, nil
}

func (f *fakeStore) GetIngredients(ctx context.Context, recipeID uuid.UUID) ([]model.Ingredient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Ingredient(nil), f.ingredients[recipeID]...), nil
}

func (f *fakeStore) ListRecipes(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Recipe
	for _, r := range f.recipes {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *recipe
	f.recipes[recipe.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteIngredients(ctx context.Context, recipeID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ingredients, recipeID)
	return nil
}

func (f *fakeStore) SoftDeleteRecipe(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recipes, id)
	return nil
}

func (f *fakeStore) UpdateCachedNutrition(ctx context.Context, id uuid.UUID, summary *model.NutritionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if recipe, ok := f.recipes[id]; ok {
		recipe.CachedNutrition = summary
	}
	return nil
}

func (f *fakeStore) UpdateImageURL(ctx context.Context, id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if recipe, ok := f.recipes[id]; ok {
		recipe.ImageURL = url
	}
	return nil
}

func (f *fakeStore) EnqueueJob(ctx context.Context, job *model.AIJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := job.RecipeID.String() + "/" + job.JobType
	if _, exists := f.jobs[key]; exists {
		return apperror.New(apperror.KindConflict, "an active job of this type already exists for the recipe")
	}
	f.jobs[key] = job
	return nil
}

func (f *fakeStore) FinishJob(ctx context.Context, recipeID uuid.UUID, jobType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, recipeID.String()+"/"+jobType)
	return nil
}

func (f *fakeStore) Transaction(ctx context.Context, fn func(RecipeStore) error) error {
	// No rollback semantics; tests that need atomicity failure semantics use
	// the non-atomic configuration.
	return fn(f)
}

type fakeEnricher struct {
	summary *model.NutritionSummary
	err     error
	calls   int32
}

func (f *fakeEnricher) EstimateNutrition(ctx context.Context, ingredients []model.IngredientEntry, condition string) (*model.NutritionSummary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func salmonCommand() *types.CreateRecipeCommand {
	return &types.CreateRecipeCommand{
		Title:   "Grilled salmon with lemon",
		RawText: "Season the fillets, grill four minutes per side, finish with lemon.",
		RecipeData: model.RecipeDocument{
			Ingredients: []model.IngredientEntry{
				{Name: "salmon fillet", Quantity: 2, UnitText: "piece"},
				{Name: "lemon", Quantity: 1, UnitText: "piece"},
			},
			Steps: []string{
				"Season the fillets generously with salt.",
				"Grill four minutes per side, then rest with lemon.",
			},
		},
	}
}

func newRecipeService(store RecipeStore, enricher NutritionEnricher, cfg RecipeServiceConfig) *RecipeService {
	return NewRecipeService(store, enricher, zap.NewNop(), cfg)
}

func TestCreateRecipe_Success(t *testing.T) {
	store := newFakeStore()
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: false})
	ownerID := uuid.New()

	resp, err := svc.CreateRecipe(context.Background(), ownerID, salmonCommand())
	require.NoError(t, err)

	assert.Equal(t, ownerID, resp.OwnerID, "owner always comes from the resolved identity")
	assert.Nil(t, resp.CachedNutrition, "immediate response carries no nutrition")
	assert.Len(t, resp.Ingredients, 2)
	assert.Len(t, store.ingredients[resp.Recipe.ID], 2)

	require.Len(t, store.audits, 1)
	assert.Equal(t, "create", store.audits[0].Action)
	assert.Equal(t, ownerID, store.audits[0].UserID)
}

func TestCreateRecipe_CompensatingDeleteOnIngredientFailure(t *testing.T) {
	store := newFakeStore()
	store.failInsertIngredients = errors.New("disk full")
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: false})

	_, err := svc.CreateRecipe(context.Background(), uuid.New(), salmonCommand())
	require.Error(t, err)
	assert.Equal(t, apperror.KindPersistence, apperror.KindOf(err))

	assert.Equal(t, 1, store.hardDeletes, "the recipe row must be compensated away")
	assert.Empty(t, store.recipes, "no orphaned recipe row may remain")

	require.Len(t, store.audits, 1)
	assert.Equal(t, "create_failed", store.audits[0].Action)
}

func TestCreateRecipe_CompensationFailureLeavesOrphanButReturnsError(t *testing.T) {
	store := newFakeStore()
	store.failInsertIngredients = errors.New("disk full")
	store.failHardDelete = errors.New("connection lost")
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: false})

	_, err := svc.CreateRecipe(context.Background(), uuid.New(), salmonCommand())
	require.Error(t, err)

	// The orphan stays; the caller still sees the original failure.
	assert.Equal(t, apperror.KindPersistence, apperror.KindOf(err))
	assert.Len(t, store.recipes, 1)
}

func TestCreateRecipe_RecipeInsertFailureNeedsNoCompensation(t *testing.T) {
	store := newFakeStore()
	store.failInsertRecipe = errors.New("connection refused")
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: false})

	_, err := svc.CreateRecipe(context.Background(), uuid.New(), salmonCommand())
	require.Error(t, err)
	assert.Equal(t, 0, store.hardDeletes)
}

func TestCreateRecipe_AuditFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.failInsertAudit = errors.New("audit table locked")
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: false})

	resp, err := svc.CreateRecipe(context.Background(), uuid.New(), salmonCommand())
	require.NoError(t, err, "audit failures never fail the write")
	assert.NotNil(t, store.recipes[resp.Recipe.ID])
}

func TestCreateRecipe_SyncEnrichmentPopulatesNutrition(t *testing.T) {
	store := newFakeStore()
	enricher := &fakeEnricher{summary: &model.NutritionSummary{Calories: 450, Protein: 32, Carbs: 12, Fat: 28}}
	svc := newRecipeService(store, enricher, RecipeServiceConfig{Atomic: true, SyncNutrition: true})

	resp, err := svc.CreateRecipe(context.Background(), uuid.New(), salmonCommand())
	require.NoError(t, err)
	require.NotNil(t, resp.CachedNutrition)
	assert.Equal(t, 450.0, resp.CachedNutrition.Calories)
	assert.Empty(t, store.jobs, "the job slot must be freed after enrichment")
}

func TestCreateRecipe_SyncEnrichmentFailureDoesNotFailCreate(t *testing.T) {
	store := newFakeStore()
	enricher := &fakeEnricher{err: apperror.New(apperror.KindNetwork, "provider unreachable")}
	svc := newRecipeService(store, enricher, RecipeServiceConfig{Atomic: true, SyncNutrition: true})

	resp, err := svc.CreateRecipe(context.Background(), uuid.New(), salmonCommand())
	require.NoError(t, err, "enrichment failures never fail the write")
	assert.Nil(t, resp.CachedNutrition)
}

// blockingEnricher blocks until its context dies, like a provider call that
// never completes within the enrichment deadline.
type blockingEnricher struct{}

func (b *blockingEnricher) EstimateNutrition(ctx context.Context, ingredients []model.IngredientEntry, condition string) (*model.NutritionSummary, error) {
	<-ctx.Done()
	return nil, apperror.Wrap(apperror.KindNetwork, "enrichment cancelled", ctx.Err())
}

func TestEnrichNutrition_TimedOutEnrichmentFreesJobSlot(t *testing.T) {
	store := newFakeStore()
	svc := newRecipeService(store, &blockingEnricher{}, RecipeServiceConfig{})
	recipeID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	svc.enrichNutrition(ctx, recipeID, nil)

	assert.Empty(t, store.jobs, "the job slot must be freed even when enrichment times out")

	// A later enrichment of the same recipe must not be blocked by a stale row.
	follow := &fakeEnricher{summary: &model.NutritionSummary{Calories: 100}}
	svc = newRecipeService(store, follow, RecipeServiceConfig{})
	svc.enrichNutrition(context.Background(), recipeID, nil)
	assert.Equal(t, int32(1), follow.calls)
}

func TestEnrichNutrition_ActiveJobSkips(t *testing.T) {
	store := newFakeStore()
	recipeID := uuid.New()
	require.NoError(t, store.EnqueueJob(context.Background(), &model.AIJob{RecipeID: recipeID, JobType: "nutrition"}))

	enricher := &fakeEnricher{summary: &model.NutritionSummary{Calories: 100}}
	svc := newRecipeService(store, enricher, RecipeServiceConfig{})

	svc.enrichNutrition(context.Background(), recipeID, nil)
	assert.Equal(t, int32(0), enricher.calls, "a second enrichment of the same recipe must not run")
}

func TestUpdateRecipe_OwnershipEnforced(t *testing.T) {
	store := newFakeStore()
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: true})
	ownerID := uuid.New()

	resp, err := svc.CreateRecipe(context.Background(), ownerID, salmonCommand())
	require.NoError(t, err)

	cmd := salmonCommand()
	cmd.Title = "Stolen salmon"
	_, err = svc.UpdateRecipe(context.Background(), uuid.New(), resp.Recipe.ID, (*types.UpdateRecipeCommand)(cmd))
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err), "foreign recipes look like they do not exist")
}

func TestUpdateRecipe_ReplacesIngredients(t *testing.T) {
	store := newFakeStore()
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: true})
	ownerID := uuid.New()

	resp, err := svc.CreateRecipe(context.Background(), ownerID, salmonCommand())
	require.NoError(t, err)

	cmd := salmonCommand()
	cmd.RecipeData.Ingredients = []model.IngredientEntry{{Name: "trout fillet", Quantity: 2, UnitText: "piece"}}
	updated, err := svc.UpdateRecipe(context.Background(), ownerID, resp.Recipe.ID, (*types.UpdateRecipeCommand)(cmd))
	require.NoError(t, err)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "trout fillet", updated.Ingredients[0].Name)
}

func TestDeleteRecipe(t *testing.T) {
	store := newFakeStore()
	svc := newRecipeService(store, nil, RecipeServiceConfig{Atomic: true})
	ownerID := uuid.New()

	resp, err := svc.CreateRecipe(context.Background(), ownerID, salmonCommand())
	require.NoError(t, err)

	require.Error(t, svc.DeleteRecipe(context.Background(), uuid.New(), resp.Recipe.ID))
	require.NoError(t, svc.DeleteRecipe(context.Background(), ownerID, resp.Recipe.ID))

	_, err = svc.GetRecipe(context.Background(), resp.Recipe.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}
