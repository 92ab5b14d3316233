package main

import (
	"log"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/simmer-app/backend/config"
	"github.com/simmer-app/backend/internal/database"
	"github.com/simmer-app/backend/internal/model"
)

// Canonical measurement units seeded on every run. Inserts are idempotent;
// existing rows are left untouched.
var seedUnits = []model.Unit{
	{Name: "gram", Abbreviation: "g"},
	{Name: "kilogram", Abbreviation: "kg"},
	{Name: "milliliter", Abbreviation: "ml"},
	{Name: "liter", Abbreviation: "l"},
	{Name: "teaspoon", Abbreviation: "tsp"},
	{Name: "tablespoon", Abbreviation: "tbsp"},
	{Name: "cup", Abbreviation: "cup"},
	{Name: "piece", Abbreviation: "pc"},
	{Name: "pinch", Abbreviation: "pinch"},
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := database.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("schema migrated")

	result := db.Gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&seedUnits)
	if result.Error != nil {
		logger.Fatal("unit seeding failed", zap.Error(result.Error))
	}
	logger.Info("units seeded", zap.Int64("inserted", result.RowsAffected))
}
