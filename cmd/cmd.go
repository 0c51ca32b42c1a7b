package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-share-backend/internal/auth"
	"recipe-share-backend/internal/config"
	"recipe-share-backend/internal/handlers"
	"recipe-share-backend/internal/repository"
	"recipe-share-backend/internal/services"
	"recipe-share-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// backends holds the connections shared by the server and the seeder
type backends struct {
	db       *pgxpool.Pool
	redis    *redis.Client
	store    *repository.PostgresStore
	pipeline *storage.Pipeline
}

func (b *backends) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	b.db.Close()
}

// ErrUsage is returned for a command line Execute does not understand
var ErrUsage = errors.New("usage: recipe-share-backend [seed <file>]")

// Execute runs the server, or the seeder for "seed <file>". args excludes the program name.
func Execute(args []string) error {
	switch {
	case len(args) == 0:
		Run()
		return nil
	case args[0] == "seed" && len(args) == 2:
		Seed(args[1])
		return nil
	default:
		return ErrUsage
	}
}

func Run() {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()
	b, err := connect(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect backends")
	}
	defer b.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(b.store)
	recipeRepo := repository.NewRecipeRepository(b.store)
	categoryRepo := repository.NewCategoryRepository(b.store)

	// Identity gateway
	gateway := auth.NewGateway(
		b.store,
		userRepo,
		auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TokenTTL),
		auth.NewPasswordService(),
		auth.NewRedisSessions(b.redis),
	)

	// Initialize services
	wsHub := services.NewWSHub()
	unsubscribe := gateway.Subscribe(wsHub)
	defer unsubscribe()

	recipeService := services.NewRecipeService(recipeRepo, userRepo, categoryRepo, b.pipeline, gateway, wsHub)
	profileService := services.NewProfileService(userRepo, b.pipeline, gateway)
	catalogService := services.NewCatalogService(categoryRepo, recipeRepo, userRepo)

	// Setup router
	router := handlers.NewRouter(handlers.API{
		Auth:       handlers.NewAuthHandler(gateway),
		Recipes:    handlers.NewRecipeHandler(recipeService, cfg.Storage.MaxImageBytes),
		Categories: handlers.NewCategoryHandler(catalogService),
		Profile:    handlers.NewProfileHandler(profileService, cfg.Storage.MaxImageBytes),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, gateway),
	}, gateway)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server. Hijacked WebSocket connections are not tracked by it.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wsHub.CloseAll()

	log.Info().Msg("Server exited")
}

// connect opens the document store, the blob pipeline and, when withSessions is set, Redis
func connect(ctx context.Context, cfg *config.Config, withSessions bool) (*backends, error) {
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	store := repository.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	b := &backends{db: db, store: store}

	if withSessions {
		b.redis, err = auth.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("Redis connection established")
	}

	s3Client, err := storage.NewS3Client(ctx, cfg.AWS)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.pipeline = storage.NewPipeline(
		storage.NewS3Store(s3Client, cfg.AWS.S3Bucket, cfg.AWS.BucketURL()),
		storage.WithMaxBytes(cfg.Storage.MaxImageBytes),
		storage.WithRandomSuffix(cfg.Storage.RandomSuffix),
	)

	return b, nil
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
