package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/simmer-app/backend/internal/api"
	"github.com/simmer-app/backend/internal/middleware"
)

// SetupRouter configures the application routes
func SetupRouter(
	recipeHandler *api.RecipeHandler,
	llmHandler *api.LLMHandler,
	healthHandler *api.HealthHandler,
	verifier middleware.TokenVerifier,
	resolver middleware.OwnerResolver,
) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	healthHandler.RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(verifier, resolver))
	{
		recipeHandler.RegisterRoutes(v1)
		llmHandler.RegisterRoutes(v1)
	}

	return router
}
