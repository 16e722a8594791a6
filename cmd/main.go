package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"mediavault/internal/auth"
	"mediavault/internal/config"
	"mediavault/internal/handler"
	"mediavault/internal/locker"
	"mediavault/internal/metrics"
	"mediavault/internal/repository"
	"mediavault/internal/scheduler"
	"mediavault/internal/service"
	"mediavault/internal/service/s3"
)

func connectWithRetry(cfg *config.Config, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	dsn := cfg.Database.GetDSN()

	// Сначала подключаемся к системной базе postgres, которая всегда существует
	pgDSN := strings.Replace(dsn, "dbname="+cfg.Database.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Проверяем, существует ли рабочая база данных
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	// Если базы нет, создаем её
	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Database.Name)
		_, err = pgDB.Exec("CREATE DATABASE " + cfg.Database.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Подключаемся к Redis: клиент живет весь срок жизни процесса
	// и внедряется в планировщик для распределенных блокировок
	redisClient := redis.NewClient(&redis.Options{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cancel()
	}

	auth.Init(appConfig.Server.JWTSecret)
	metrics.InitSweepMetrics()

	// Инициализация репозиториев
	quotaRepo := repository.NewQuotaRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	draftRepo := repository.NewDraftRepository(db)

	// Инициализация сервисов
	quotaService := service.NewQuotaService(quotaRepo, appConfig.Upload.DefaultQuota)

	uploadPolicy := service.UploadPolicy{
		MaxUploadBytes:   appConfig.Upload.MaxUploadBytes,
		AllowedMIMETypes: appConfig.Upload.AllowedMIMEList(),
		URLTTL:           appConfig.Upload.URLTTL(),
		PublicBaseURL:    appConfig.Server.PublicBaseURL,
	}
	uploadService := service.NewUploadService(assetRepo, quotaService, s3Client, uploadPolicy)
	gcService := service.NewGCService(assetRepo, appConfig.Server.PublicBaseURL)
	draftService := service.NewDraftService(draftRepo, gcService)
	reconcileService := service.NewReconcileService(
		assetRepo,
		draftRepo,
		quotaService,
		s3Client,
		time.Duration(appConfig.Sweep.OrphanRetentionHours)*time.Hour,
		time.Duration(appConfig.Sweep.PendingGraceHours)*time.Hour,
	)

	// Инициализация хендлеров
	uploadHandler := handler.NewUploadHandler(uploadService)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	draftHandler := handler.NewDraftHandler(draftService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Route("/uploads", func(r chi.Router) {
			r.Post("/presign", uploadHandler.Presign)
			r.Post("/complete", uploadHandler.Complete)
			r.Post("/abort", uploadHandler.Abort)
		})

		r.Get("/quota", quotaHandler.GetQuotaInfo)

		r.Route("/drafts/{id}", func(r chi.Router) {
			r.Get("/", draftHandler.GetDraft)
			r.Put("/", draftHandler.SaveDraft)
			r.Post("/publish", draftHandler.PublishDraft)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Планировщик фоновых свипов
	sched := scheduler.New(locker.New(redisClient))
	sched.Register(scheduler.Job{
		Name:     service.JobOrphanReservations,
		Interval: time.Duration(appConfig.Sweep.OrphanIntervalMinutes) * time.Minute,
		Run:      reconcileService.SweepOrphanReservations,
	})
	sched.Register(scheduler.Job{
		Name:     service.JobPendingDelete,
		Interval: time.Duration(appConfig.Sweep.PendingIntervalMinutes) * time.Minute,
		Run:      reconcileService.SweepPendingDelete,
	})
	sched.Register(scheduler.Job{
		Name:     service.JobExpiredOwners,
		Interval: time.Duration(appConfig.Sweep.ExpiredIntervalMinutes) * time.Minute,
		Run:      reconcileService.SweepExpiredOwners,
	})
	sched.Start()

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Останавливаем HTTP сервер
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	// Останавливаем планировщик и дожидаемся текущих свипов
	sched.Stop()

	// Закрываем Redis
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
	}

	// Закрываем соединение с БД
	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
