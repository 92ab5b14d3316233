package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simmer-app/backend/internal/apperror"
	"github.com/simmer-app/backend/internal/middleware"
	"github.com/simmer-app/backend/internal/service"
	"github.com/simmer-app/backend/internal/types"
	"github.com/simmer-app/backend/internal/validate"
)

const maxImageBytes = 5 << 20

// imageUploader is the slice of the image service the handler needs.
type imageUploader interface {
	UploadRecipeImage(ctx context.Context, recipeID uuid.UUID, contentType string, body io.Reader) (string, error)
}

// RecipeHandler serves the recipe routes.
type RecipeHandler struct {
	recipeService *service.RecipeService
	imageService  imageUploader
	logger        *zap.Logger
}

// NewRecipeHandler creates a new RecipeHandler. imageService may be nil when
// image storage is not configured.
func NewRecipeHandler(recipeService *service.RecipeService, imageService *service.ImageService, logger *zap.Logger) *RecipeHandler {
	h := &RecipeHandler{
		recipeService: recipeService,
		logger:        logger,
	}
	if imageService != nil {
		h.imageService = imageService
	}
	return h
}

// RegisterRoutes registers the recipe routes on an authenticated group.
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", h.ListRecipes)
		recipes.GET("/:id", h.GetRecipe)
		recipes.POST("", h.CreateRecipe)
		recipes.PUT("/:id", h.UpdateRecipe)
		recipes.DELETE("/:id", h.DeleteRecipe)
		recipes.POST("/:id/image", h.UploadImage)
	}
}

// CreateRecipe handles POST /recipes. The raw body is validated structurally
// before binding; any owner field a client smuggles into the payload is
// ignored because the command type has none.
func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		respondError(c, apperror.New(apperror.KindAuthentication, "not authenticated"))
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondValidation(c, map[string]string{"body": "could not read request body"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		respondValidation(c, map[string]string{"body": "must be a JSON object"})
		return
	}

	if violations := validate.CreateRecipe(payload); len(violations) > 0 {
		respondValidation(c, violations)
		return
	}

	var cmd types.CreateRecipeCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		respondValidation(c, map[string]string{"body": "malformed recipe payload"})
		return
	}

	recipe, err := h.recipeService.CreateRecipe(c.Request.Context(), ownerID, &cmd)
	if err != nil {
		h.logger.Error("recipe creation failed", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, recipe)
}

// GetRecipe handles GET /recipes/:id.
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, map[string]string{"id": "must be a well-formed UUID"})
		return
	}

	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, recipe)
}

// ListRecipes handles GET /recipes with an optional search query.
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		respondError(c, apperror.New(apperror.KindAuthentication, "not authenticated"))
		return
	}

	recipes, err := h.recipeService.ListRecipes(c.Request.Context(), ownerID, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// UpdateRecipe handles PUT /recipes/:id with the same payload rules as
// creation.
func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		respondError(c, apperror.New(apperror.KindAuthentication, "not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, map[string]string{"id": "must be a well-formed UUID"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondValidation(c, map[string]string{"body": "could not read request body"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		respondValidation(c, map[string]string{"body": "must be a JSON object"})
		return
	}

	if violations := validate.CreateRecipe(payload); len(violations) > 0 {
		respondValidation(c, violations)
		return
	}

	var cmd types.UpdateRecipeCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		respondValidation(c, map[string]string{"body": "malformed recipe payload"})
		return
	}

	recipe, err := h.recipeService.UpdateRecipe(c.Request.Context(), ownerID, id, &cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe handles DELETE /recipes/:id (soft delete).
func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		respondError(c, apperror.New(apperror.KindAuthentication, "not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, map[string]string{"id": "must be a well-formed UUID"})
		return
	}

	if err := h.recipeService.DeleteRecipe(c.Request.Context(), ownerID, id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadImage handles POST /recipes/:id/image (multipart form, field "image").
func (h *RecipeHandler) UploadImage(c *gin.Context) {
	if h.imageService == nil {
		respondError(c, apperror.New(apperror.KindUnsupported, "image storage is not configured"))
		return
	}

	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		respondError(c, apperror.New(apperror.KindAuthentication, "not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, map[string]string{"id": "must be a well-formed UUID"})
		return
	}

	// Ownership is settled before anything reaches the bucket, so a
	// rejected upload never leaves an orphaned object behind.
	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if recipe.OwnerID != ownerID {
		respondError(c, apperror.New(apperror.KindNotFound, "recipe not found"))
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		respondValidation(c, map[string]string{"image": "is required"})
		return
	}
	if header.Size > maxImageBytes {
		respondValidation(c, map[string]string{"image": "must be at most 5 MiB"})
		return
	}

	file, err := header.Open()
	if err != nil {
		respondValidation(c, map[string]string{"image": "could not read upload"})
		return
	}
	defer file.Close()

	url, err := h.imageService.UploadRecipeImage(c.Request.Context(), id, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.recipeService.SetImageURL(c.Request.Context(), ownerID, id, url); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": url})
}
