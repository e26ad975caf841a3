package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/postpilotapp/postpilot/configs"
	"github.com/postpilotapp/postpilot/internal/api/handlers"
	"github.com/postpilotapp/postpilot/internal/api/middleware"
	"github.com/postpilotapp/postpilot/internal/dispatch"
	job "github.com/postpilotapp/postpilot/internal/jobs"
	"github.com/postpilotapp/postpilot/internal/publisher"
	"github.com/postpilotapp/postpilot/internal/queue"
	"github.com/postpilotapp/postpilot/internal/rewrite"
	"github.com/postpilotapp/postpilot/internal/service"
	"github.com/postpilotapp/postpilot/internal/storage"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	if cfg.APIKey == "" {
		key, err := utils.GenerateRandomKey(32)
		if err != nil {
			log.Fatalf("Failed to generate API key: %v", err)
		}
		cfg.APIKey = key
		log.Printf("API_KEY not set, generated one for this run: %s", key)
	}

	var backend storage.Backend
	var db *sql.DB
	if cfg.PostgresURI != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer closeDB(db)

		if err := db.Ping(); err != nil {
			log.Fatalf("Database is unreachable: %v", err)
		}

		pg := storage.NewPostgres(db, cfg.StorageQuota)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		backend = pg
	} else {
		log.Println("POSTGRES_URI not set, using in-memory storage")
		backend = storage.NewMemory(cfg.StorageQuota)
	}

	postStore := store.New(backend)
	if err := postStore.Load(context.Background()); err != nil {
		log.Fatalf("Failed to load post store: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	pubClient := publisher.NewClient(cfg.PublisherBaseURL, cfg.PublisherAPIKey)
	rewriteClient := rewrite.NewClient(cfg.RewriteBaseURL, cfg.RewriteModel, cfg.RewriteAPIKeys)

	mediaService := service.NewMediaService(cfg)
	postService := service.NewPostService(postStore, mediaService)
	settingsService := service.NewSettingsService(backend, cfg)
	channelService := service.NewChannelService(backend, pubClient)
	linksService := service.NewLinksService(backend)

	dispatcher := dispatch.NewDispatcher(postStore, pubClient)
	rewriteQueue := rewrite.NewQueue(postStore, rewriteClient)

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	auth := handlers.NewAuthHandler(cfg)
	app.Post("/auth/login", auth.Login)
	app.Post("/auth/logout", auth.Logout)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/categories", post.ListCategories)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/remove", post.DeletePosts)
	api.Delete("/posts/category/:category", post.ClearCategory)
	api.Post("/posts/:id/override", post.UpdateOverride)

	schedule := handlers.NewScheduleHandler(dispatcher, client)
	api.Post("/schedule", schedule.SchedulePosts)
	api.Post("/schedule/now", schedule.PublishNow)

	rw := handlers.NewRewriteHandler(rewriteQueue)
	api.Post("/rewrite/start", rw.StartRewrite)
	api.Post("/rewrite/stop", rw.StopRewrite)
	api.Get("/rewrite/status", rw.RewriteStatus)

	channel := handlers.NewChannelHandler(channelService)
	api.Get("/channels", channel.ListChannels)
	api.Get("/channels/platforms", channel.PlatformMappings)

	links := handlers.NewLinksHandler(linksService)
	api.Get("/links", links.ListLinks)
	api.Post("/links", links.AddLink)
	api.Post("/links/remove", links.RemoveLink)

	settings := handlers.NewSettingsHandler(settingsService, pubClient)
	api.Get("/settings/info", settings.GetSettings)
	api.Post("/settings/update", settings.UpdateSettings)
	api.Get("/settings/test", settings.TestConnection)
	api.Get("/presets", settings.ListPresets)
	api.Post("/presets", settings.SavePreset)
	api.Delete("/presets/:name", settings.DeletePreset)

	// cron jobs
	cleanupJob := job.NewCleanupJob(postStore)

	//queue
	queueW := queue.NewQueue(dispatcher)

	c := cron.New()
	c.AddFunc("@every 06h00m00s", cleanupJob.Run)
	c.Start()

	go func() {
		// Dispatch runs must not interleave; one worker at a time.
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 1,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDispatchRun, queueW.HandleDispatchTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	log.Println("Server stopped")
}
