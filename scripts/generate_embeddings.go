package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	appLogger "github.com/ogayu22918/Play-Plan/app/logger"
	"github.com/ogayu22918/Play-Plan/config"
	"github.com/ogayu22918/Play-Plan/internal/api/embeddings"
	generativeAI "github.com/ogayu22918/Play-Plan/internal/api/generative_ai"
)

// Precomputes the embedding-matrix file so the server starts without
// embedding the whole catalog on its first request.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "generate-embeddings",
		Usage: "Embed the activity catalog and write the matrix file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "Activity catalog JSON (defaults to embeddings.catalogPath)",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output matrix file (defaults to embeddings.matrixPath)",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Generative provider, gemini or openai (defaults to generation.provider)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Texts per embedding call",
				Value: 50,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Logger mode (development or production)",
				Value: "development",
			},
		},
		Action: generate,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(c *cli.Context) error {
	logger := appLogger.New(c.String("mode"), os.Stderr)

	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	catalogPath := firstNonEmpty(c.String("catalog"), cfg.Embeddings.CatalogPath)
	outPath := firstNonEmpty(c.String("out"), cfg.Embeddings.MatrixPath)
	if p := c.String("provider"); p != "" {
		cfg.Generation.Provider = p
	}
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return cli.Exit("batch-size must be positive", 1)
	}

	provider, err := generativeAI.NewProvider(cfg.Generation, logger)
	if err != nil {
		return err
	}
	if err := provider.Ensure(c.Context); err != nil {
		return err
	}

	catalog, err := embeddings.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("Embedding catalog",
		slog.String("catalog", catalogPath),
		slog.Int("activities", len(catalog)),
		slog.String("provider", provider.Name()))

	start := time.Now()
	vectors := make([][]float32, 0, len(catalog))
	for i := 0; i < len(catalog); i += batchSize {
		end := min(i+batchSize, len(catalog))
		texts := make([]string, 0, end-i)
		for _, a := range catalog[i:end] {
			texts = append(texts, a.EmbeddingText())
		}
		batch, err := provider.EmbedTexts(c.Context, texts)
		if err != nil {
			return fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("batch %d-%d: got %d vectors for %d texts", i, end, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
		logger.Info("Embedded batch", slog.Int("done", end), slog.Int("total", len(catalog)))
	}

	if _, err := embeddings.NewMatrix(vectors); err != nil {
		return err
	}
	if err := embeddings.WriteMatrixFile(outPath, vectors); err != nil {
		return fmt.Errorf("failed to write matrix: %w", err)
	}
	logger.Info("Matrix written",
		slog.String("out", outPath),
		slog.Int("rows", len(vectors)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
