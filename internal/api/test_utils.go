package api

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/simmer-app/backend/internal/middleware"
	"github.com/simmer-app/backend/internal/model"
	"github.com/simmer-app/backend/internal/service"
)

const testJWTSecret = "test-jwt-secret"

// setupTestDB creates an isolated in-memory sqlite database with the full
// schema. Postgres-only behaviour (jsonb operators, vector ordering) is
// covered by the container-based store tests instead.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&model.UserAccount{},
		&model.Unit{},
		&model.Recipe{},
		&model.Ingredient{},
		&model.AuditRecord{},
		&model.AIJob{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

type testEnv struct {
	router        *gin.Engine
	db            *gorm.DB
	recipeHandler *RecipeHandler
}

// setupTestRouter builds the authenticated API surface against an in-memory
// database, with enrichment and image storage disabled.
func setupTestRouter(t *testing.T, enricher service.NutritionEnricher, cfg service.RecipeServiceConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	logger := zap.NewNop()

	store := service.NewRecipeStore(db)
	recipeService := service.NewRecipeService(store, enricher, logger, cfg)
	tokenService := service.NewTokenService(testJWTSecret)
	identityService := service.NewIdentityService(db)

	recipeHandler := NewRecipeHandler(recipeService, nil, logger)
	llmHandler := NewLLMHandler(recipeService, nil, logger)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(tokenService, identityService))
	recipeHandler.RegisterRoutes(v1)
	llmHandler.RegisterRoutes(v1)

	return &testEnv{router: router, db: db, recipeHandler: recipeHandler}
}

// signToken issues an HS256 token for the given subject, the way the external
// identity provider would.
func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func (e *testEnv) request(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
