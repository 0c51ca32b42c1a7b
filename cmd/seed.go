package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"recipe-share-backend/internal/config"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/repository"
	"recipe-share-backend/internal/storage"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SeedFile lists the categories to pre-load
type SeedFile struct {
	Categories []SeedCategory `yaml:"categories"`
}

// SeedCategory is one category entry. Image is an http(s) URL or a local path relative
// to the seed file.
type SeedCategory struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// Seed loads categories from a YAML file into the document store
func Seed(path string) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log.Level)

	ctx := context.Background()
	b, err := connect(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect backends")
	}
	defer b.Close()

	seed, err := LoadSeedFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read seed file")
	}

	n, err := SeedCategories(ctx, repository.NewCategoryRepository(b.store), b.pipeline, filepath.Dir(path), seed.Categories)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed categories")
	}
	log.Info().Int("count", n).Msg("Categories seeded")
}

// LoadSeedFile parses a seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// SeedCategories uploads each category image to category_images/<id> and writes the category
func SeedCategories(
	ctx context.Context,
	categories *repository.CategoryRepository,
	pipeline *storage.Pipeline,
	baseDir string,
	entries []SeedCategory,
) (int, error) {
	for i, entry := range entries {
		if entry.ID == "" {
			return i, fmt.Errorf("category %d has no id", i)
		}

		category := &models.Category{
			ID:          entry.ID,
			Name:        entry.Name,
			Description: entry.Description,
		}

		if entry.Image != "" {
			url, err := pipeline.UploadBlob(ctx, storage.NamespaceCategoryImages, entry.ID, seedImage(baseDir, entry.Image))
			if err != nil {
				return i, fmt.Errorf("failed to upload image for category %s: %w", entry.ID, err)
			}
			category.CatImg = url
		}

		if err := categories.Put(ctx, category); err != nil {
			return i, err
		}
		log.Debug().Str("category_id", entry.ID).Msg("Category seeded")
	}
	return len(entries), nil
}

func seedImage(baseDir, image string) storage.ImageRef {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return storage.RemoteImage{URL: image}
	}
	if !filepath.IsAbs(image) {
		image = filepath.Join(baseDir, image)
	}
	return storage.FileImage{Path: image}
}
