package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hms-backend/internal/config"
	"hms-backend/internal/database"
	"hms-backend/internal/handler"
	"hms-backend/internal/metrics"
	"hms-backend/internal/models"
	"hms-backend/internal/notification"
	"hms-backend/internal/repository"
	"hms-backend/internal/service"
	"hms-backend/pkg/logger"
	"hms-backend/pkg/utils"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "hms-backend"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info("Database migrated", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the super admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return seedSuperAdmin(repository.NewUserRepo(db), cfg.Seed, log)
		},
	}
}

// bootstrap loads configuration, builds the logger and opens the database
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg := config.LoadConfig()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	utils.InitJWT(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func seedSuperAdmin(users *repository.UserRepository, seed config.SeedConfig, log *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(seed.SuperAdminEmail))
	if email == "" || seed.SuperAdminPassword == "" {
		return errors.New("SEED_SUPERADMIN_EMAIL and SEED_SUPERADMIN_PASSWORD must be set")
	}

	if _, err := users.GetUserByEmail(email); err == nil {
		log.Info("Super admin already exists", zap.String("email", email))
		return nil
	}

	hash, err := utils.HashPassword(seed.SuperAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := users.CreateUser(&models.User{
		Email:        email,
		FullName:     seed.SuperAdminName,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
	}); err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	log.Info("Super admin created", zap.String("email", email))
	return nil
}

func runServer() error {
	// 1. Load configuration, logger, JWT and database
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize repositories
	hospitalRepo := repository.NewHospitalRepo(db)
	userRepo := repository.NewUserRepo(db)
	patientRepo := repository.NewPatientRepo(db)
	appointmentRepo := repository.NewAppointmentRepo(db)
	visitRepo := repository.NewVisitRepo(db)
	prescriptionRepo := repository.NewPrescriptionRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	// 3. Notifications: local hub, optionally relayed through Redis
	collector := metrics.NewCollector(serviceName)
	collector.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hub := notification.NewHub(log)

	var sink notification.Sink = hub
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Warn("Redis unavailable, notifications stay local", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			relay := notification.NewRedisRelay(rdb, cfg.Redis.Channel, hub, log)
			sink = relay
			go func() {
				if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Redis relay stopped", zap.Error(err))
				}
			}()
			log.Info("Redis notification relay enabled", zap.String("channel", cfg.Redis.Channel))
		}
	}
	sms := notification.NewSMSSender(cfg.SMS, log)

	// 4. Initialize services
	authService := service.NewAuthService(userRepo, auditRepo, collector)
	hospitalService := service.NewHospitalService(hospitalRepo, userRepo, auditRepo)
	userService := service.NewUserService(userRepo, auditRepo)
	patientService := service.NewPatientService(patientRepo, appointmentRepo, auditRepo)
	reportService := service.NewReportService(patientRepo, appointmentRepo)
	appointmentService := service.NewAppointmentService(appointmentRepo, patientRepo, userRepo, auditRepo, sink, collector)
	encounterService := service.NewEncounterService(
		appointmentRepo, visitRepo, prescriptionRepo, patientRepo, auditRepo,
		sink, sms, collector, cfg.Server.FrontendURL, log,
	)
	prescriptionService := service.NewPrescriptionService(prescriptionRepo, auditRepo, sink, collector)

	// 5. Register handlers and routes
	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authService, log),
		Hospital:     handler.NewHospitalHandler(hospitalService, log),
		User:         handler.NewUserHandler(userService, log),
		Patient:      handler.NewPatientHandler(patientService, reportService, log),
		Appointment:  handler.NewAppointmentHandler(appointmentService, encounterService, log),
		Prescription: handler.NewPrescriptionHandler(prescriptionService, log),
		WebSocket:    notification.NewWebSocketHandler(hub, authService.ResolveActor, cfg.CORS.AllowedOrigins, log),
	}
	router := handler.SetupRouter(cfg, handlers, authService, collector, log)

	// 6. Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}
