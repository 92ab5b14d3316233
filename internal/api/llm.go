package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simmer-app/backend/internal/apperror"
	"github.com/simmer-app/backend/internal/service"
)

// LLMHandler serves the enrichment routes backed by the LLM provider.
type LLMHandler struct {
	recipeService *service.RecipeService
	llmService    *service.LLMService
	logger        *zap.Logger
}

// NewLLMHandler creates a new LLMHandler.
func NewLLMHandler(recipeService *service.RecipeService, llmService *service.LLMService, logger *zap.Logger) *LLMHandler {
	return &LLMHandler{
		recipeService: recipeService,
		llmService:    llmService,
		logger:        logger,
	}
}

// RegisterRoutes registers the LLM routes on an authenticated group.
func (h *LLMHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/recipes/:id/substitutions", h.SuggestSubstitutions)
}

// SuggestSubstitutions handles POST /recipes/:id/substitutions. The body
// names a health condition; the provider proposes replacements for the
// recipe's ingredient list.
func (h *LLMHandler) SuggestSubstitutions(c *gin.Context) {
	if h.llmService == nil {
		respondError(c, apperror.New(apperror.KindUnsupported, "enrichment provider is not configured"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, map[string]string{"id": "must be a well-formed UUID"})
		return
	}

	var req struct {
		Condition string `json:"condition"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Condition == "" {
		respondValidation(c, map[string]string{"condition": "must be a non-empty string"})
		return
	}

	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	substitutions, err := h.llmService.SuggestSubstitutions(c.Request.Context(), recipe.RecipeData.Ingredients, req.Condition)
	if err != nil {
		h.logger.Warn("substitution request failed",
			zap.String("recipe_id", id.String()),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"substitutions": substitutions})
}
