package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	database "github.com/skinsage/skinsage/app/db"
	"github.com/skinsage/skinsage/config"
	generativeAI "github.com/skinsage/skinsage/internal/api/generative_ai"
	"github.com/skinsage/skinsage/internal/api/products"
	"github.com/skinsage/skinsage/internal/types"
)

// Backfills the embedding column for catalog products that don't have one
// yet. Run after bulk-importing products.
func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := pgxpool.New(ctx, dbConfig.ConnectionURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Connected to database successfully")

	aiClient, err := generativeAI.NewAIClient(ctx, cfg.AI.GenerationModel, cfg.AI.EmbeddingModel, logger)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	productsRepo := products.NewRepository(dbpool, logger)

	logger.Info("Starting embedding generation for catalog products...")
	if err := generateProductEmbeddings(ctx, aiClient, productsRepo, logger); err != nil {
		logger.Error("Embedding generation finished with errors", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Embedding generation completed!")
}

func generateProductEmbeddings(ctx context.Context, embedder generativeAI.Embedder, repo products.Repository, logger *slog.Logger) error {
	batchSize := 20
	totalProcessed := 0
	totalErrors := 0

	for {
		batch, err := repo.GetProductsWithoutEmbeddings(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("failed to get products without embeddings: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		logger.Info("Processing batch of products", slog.Int("batch_size", len(batch)))

		for _, product := range batch {
			embedding, err := embedder.GenerateQueryEmbedding(ctx, embeddingText(product))
			if err != nil {
				logger.Error("Failed to generate embedding for product",
					slog.Any("error", err),
					slog.String("product_id", product.ID.String()),
					slog.String("product_name", product.Name))
				totalErrors++
				continue
			}

			if err := repo.UpdateProductEmbedding(ctx, product.ID.String(), embedding); err != nil {
				logger.Error("Failed to update product embedding",
					slog.Any("error", err),
					slog.String("product_id", product.ID.String()),
					slog.String("product_name", product.Name))
				totalErrors++
				continue
			}

			totalProcessed++
		}

		if len(batch) < batchSize {
			break
		}
	}

	logger.Info("Batch product embedding generation completed",
		slog.Int("total_processed", totalProcessed),
		slog.Int("total_errors", totalErrors))

	if totalErrors > 0 {
		return fmt.Errorf("embedding generation completed with %d errors out of %d products", totalErrors, totalProcessed+totalErrors)
	}
	return nil
}

// embeddingText flattens a product into the text that gets embedded, the
// same shape retrieval queries are matched against.
func embeddingText(p types.Product) string {
	parts := []string{p.Name}
	if p.Brand != "" {
		parts = append(parts, p.Brand)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.Ingredients) > 0 {
		parts = append(parts, "Ingredients: "+strings.Join(p.Ingredients, ", "))
	}
	return strings.Join(parts, ". ")
}
