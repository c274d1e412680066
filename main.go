package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"udaay-be/config"
	"udaay-be/controllers"
	"udaay-be/routes"
	"udaay-be/services"
	"udaay-be/store"
	"udaay-be/validation"
)

type backends struct {
	issues        store.IssueStore
	notifications store.NotificationStore
	health        map[string]routes.HealthCheck
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	config.SetupLogger(cfg.Env)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, mongoClient := openStore(ctx, cfg)
	if mongoClient != nil {
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to disconnect MongoDB")
			}
		}()
	}

	var redisClient *redis.Client
	if cfg.RedisAddress != "" {
		redisClient, err = config.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		b.health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Warn().Msg("REDIS_ADDRESS not set, submission rate limit disabled")
	}

	var images services.ImageStore
	if cfg.MinIOEndpoint != "" {
		minioStore, err := services.NewMinIOImageStore(ctx, services.MinIOConfig{
			Endpoint:       cfg.MinIOEndpoint,
			PublicEndpoint: cfg.MinIOPublicEndpoint,
			AccessKey:      cfg.MinIOAccessKey,
			SecretKey:      cfg.MinIOSecretKey,
			Bucket:         cfg.MinIOBucket,
			UseSSL:         cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MinIO storage")
		}
		images = minioStore
		b.health["minio"] = minioStore.HealthCheck
	} else {
		log.Warn().Msg("MINIO_ENDPOINT not set, images are stored inline")
	}

	var geocoder services.Geocoder
	if cfg.GoogleMapsAPIKey != "" {
		geocoder = services.NewGoogleGeocoder(cfg.GoogleMapsAPIKey)
	}

	orchestrator, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize validation providers")
	}

	notifier := services.NewNotifier(b.notifications)
	issueService := services.NewIssueService(b.issues, notifier)
	worker := services.NewValidationWorker(b.issues, issueService, orchestrator, notifier)

	var queue services.ValidationQueue
	var inProcess *services.InProcessQueue
	if cfg.RabbitMQURL != "" {
		rabbit, err := services.NewRabbitMQQueue(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize RabbitMQ queue")
		}
		defer rabbit.Close()
		if err := rabbit.Consume(ctx, worker.Process); err != nil {
			log.Fatal().Err(err).Msg("Failed to start validation consumer")
		}
		queue = rabbit
		b.health["rabbitmq"] = func(context.Context) error { return rabbit.HealthCheck() }
	} else {
		inProcess = services.NewInProcessQueue(worker.Process)
		queue = inProcess
		log.Info().Msg("RABBITMQ_URL not set, validating in process")
	}

	submissions := services.NewSubmissionService(b.issues, images, geocoder, queue)

	if err := controllers.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register validators")
	}
	router := routes.NewRouter(
		controllers.NewIssueController(submissions, issueService),
		controllers.NewNotificationController(notifier),
		routes.Options{
			JWTSecret:       cfg.JWTSecret,
			ClientURL:       cfg.ClientURL,
			Redis:           redisClient,
			RateLimitPrefix: cfg.RateLimitPrefix,
			DailyLimit:      cfg.DailyLimit,
			Health:          b.health,
		},
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", srv.Addr).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if inProcess != nil {
		inProcess.Wait()
	}

	log.Info().Msg("Server exited gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (backends, *mongo.Client) {
	b := backends{health: map[string]routes.HealthCheck{}}

	if cfg.MongoURI == "" {
		log.Warn().Msg("MONGODB_URI not set, using in-memory store")
		m := store.NewMemory()
		b.issues, b.notifications = m, m
		return b, nil
	}

	db, client, err := config.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	s := store.NewMongoStore(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
	}
	b.issues, b.notifications = s, s
	b.health["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	return b, client
}

func buildOrchestrator(ctx context.Context, cfg *config.Config) (*validation.Orchestrator, error) {
	vision, err := validation.NewVisionProvider(ctx, validation.VisionConfig{
		APIKey:     cfg.GeminiAPIKey,
		Project:    cfg.GoogleProjectID,
		Location:   cfg.GoogleLocation,
		Model:      cfg.GeminiModel,
		Confidence: cfg.VisionConfidence,
		Keywords:   cfg.CategoryKeywords,
	})
	if err != nil {
		return nil, err
	}

	providers := []validation.Provider{
		vision,
		validation.NewClassifierProvider(validation.ClassifierConfig{
			BaseURL:    cfg.AIBackendURL,
			Secret:     cfg.InternalJWTSecret,
			Issuer:     cfg.InternalJWTIssuer,
			TokenTTL:   cfg.InternalJWTTTL,
			Confidence: cfg.ClassifierConfidence,
			Keywords:   cfg.CategoryKeywords,
		}),
	}
	if cfg.HeuristicEnabled {
		providers = append(providers, validation.NewHeuristicProvider())
	}

	o := validation.NewOrchestrator(cfg.ProviderTimeout, providers...)
	log.Info().Interface("providers", o.Providers()).Msg("Validation cascade ready")
	return o, nil
}
