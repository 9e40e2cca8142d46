package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/marking-hub-api/internal/config"
	"github.com/noah-isme/marking-hub-api/internal/database"
	"github.com/noah-isme/marking-hub-api/internal/handler"
	"github.com/noah-isme/marking-hub-api/internal/middleware"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
	"github.com/noah-isme/marking-hub-api/internal/router"
	"github.com/noah-isme/marking-hub-api/internal/service"
	cloud "github.com/noah-isme/marking-hub-api/pkg/cloudinary"
	"github.com/noah-isme/marking-hub-api/pkg/mailer"
	"github.com/noah-isme/marking-hub-api/pkg/reportpdf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Only migrate tables the marking hub owns. Users, challenges and raw
	// submissions belong to the host platform's schema.
	if err := db.AutoMigrate(
		&models.MarkingSubmission{},
		&models.MarkingTutor{},
		&models.TutorAssignment{},
		&models.MarkingDeadline{},
		&models.SubmissionToken{},
		&models.StudentReport{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	cache := service.NewReportCache(nil, cfg.ReportCacheTTL, logger)
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		cache = service.NewReportCache(redisClient, cfg.ReportCacheTTL, logger)
	}

	var events service.EventPublisher
	if cfg.NATSURL != "" {
		natsConn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		events = natsConn
	}

	var archiver service.ReportArchiver
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		archiver = uploader
	}

	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		smtp, err := mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create smtp mailer: %v", err)
		}
		mail = smtp
	} else {
		mail = mailer.NewLog(logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	markingRepo := repository.NewMarkingRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	deadlineRepo := repository.NewDeadlineRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	reportRepo := repository.NewReportRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	renderer := reportpdf.NewRenderer(cfg.CTFName, logger)

	activityService := service.NewActivityService(activityRepo, logger)
	tokenService := service.NewTokenService(tokenRepo, userRepo, challengeRepo, cfg.AutograderSecret, cfg.TokenTTL, events, activityService, validate, logger)
	markingService := service.NewMarkingService(markingRepo, submissionRepo, tutorRepo, cache, activityService, validate, logger)
	tutorService := service.NewTutorService(tutorRepo, userRepo, activityService, validate, logger)
	deadlineService := service.NewDeadlineService(deadlineRepo, challengeRepo, activityService, validate, logger)
	reportService := service.NewReportService(markingRepo, userRepo, challengeRepo, submissionRepo, reportRepo, mail, renderer, cache, archiver, events, activityService, cfg.CTFName, cfg.BaseURL, logger)

	tokenHandler := handler.NewTokenHandler(tokenService, cfg.AutograderSecret, logger)
	markingHandler := handler.NewMarkingHandler(markingService, logger)
	reportHandler := handler.NewReportHandler(reportService, tutorRepo, logger)
	tutorHandler := handler.NewTutorHandler(tutorService, logger)
	deadlineHandler := handler.NewDeadlineHandler(deadlineService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TokenHandler:    tokenHandler,
		MarkingHandler:  markingHandler,
		ReportHandler:   reportHandler,
		TutorHandler:    tutorHandler,
		DeadlineHandler: deadlineHandler,
		ActivityHandler: activityHandler,
		Categories:      handler.CategoriesHandler(reportService, logger),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		TutorGate:       middleware.RequireTutor(tutorRepo),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
