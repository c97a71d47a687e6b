package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frontdesk/guestlog/internal/audit"
	"github.com/frontdesk/guestlog/internal/backup"
	"github.com/frontdesk/guestlog/internal/config"
	"github.com/frontdesk/guestlog/internal/database"
	"github.com/frontdesk/guestlog/internal/ratelimit"
	"github.com/frontdesk/guestlog/internal/repository"
	"github.com/frontdesk/guestlog/internal/server"
	"github.com/frontdesk/guestlog/internal/service"
)

type Application struct {
	config        *config.Config
	db            *sql.DB
	authService   *service.AuthService
	recordService *service.RecordService
	auditLogger   *audit.Logger
	auditMonitor  *audit.Monitor
	backupMgr     *backup.Manager
	rateLimiter   *ratelimit.RateLimiter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	log.Println("guest log initialized: encrypted storage, audit logging, rate limiting active")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers
	go app.backupMgr.StartAutomatedBackups(ctx, cfg.BackupInterval)
	go app.rateLimiter.StartCleanupWorker(ctx, 1*time.Hour)
	go app.startSecurityMonitoring(ctx)
	go app.startSessionSweeper(ctx)

	router := server.NewRouter(cfg, app.authService, app.recordService)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

// initializeApplication sets up all application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	dbConfig := database.Config{
		Path:          cfg.DBPath,
		EncryptionKey: cfg.DBEncryptionKey,
		MaxOpenConns:  25,
		MaxIdleConns:  5,
		MaxLifetime:   1 * time.Hour,
		MaxIdleTime:   10 * time.Minute,
	}

	db, err := database.Connect(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	auditLogger, err := audit.NewLogger(db, cfg.AuditLogPath, cfg.AuditAsyncMode)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	auditMonitor := audit.NewMonitor(auditLogger)
	rateLimiter := ratelimit.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	userRepo := repository.NewUserRepository(db)
	lockoutRepo := repository.NewLockoutRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	authService := service.NewAuthService(userRepo, lockoutRepo, sessionRepo, rateLimiter, auditLogger, cfg.SessionDuration)
	overrideService := service.NewOverrideService(userRepo)
	recordService := service.NewRecordService(recordRepo, overrideService, rateLimiter, auditLogger)

	backupMgr, err := backup.NewManager(db, cfg.BackupDir, cfg.BackupEncryptionKey, cfg.BackupRetentionDays)
	if err != nil {
		db.Close()
		auditLogger.Close()
		return nil, fmt.Errorf("failed to initialize backup manager: %w", err)
	}

	return &Application{
		config:        cfg,
		db:            db,
		authService:   authService,
		recordService: recordService,
		auditLogger:   auditLogger,
		auditMonitor:  auditMonitor,
		backupMgr:     backupMgr,
		rateLimiter:   rateLimiter,
	}, nil
}

// cleanup performs cleanup operations
func (app *Application) cleanup() {
	log.Println("shutting down")

	if app.auditLogger != nil {
		app.auditLogger.Close()
	}

	if app.db != nil {
		app.db.Close()
	}
}

// startSecurityMonitoring scans the audit trail for repeated failures
func (app *Application) startSecurityMonitoring(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.auditMonitor.DetectSuspiciousActivity(); err != nil {
				log.Printf("security monitoring error: %v", err)
			}
		}
	}
}

// startSessionSweeper prunes expired session rows. Expired sessions are
// already rejected at auth time; this just keeps the table small.
func (app *Application) startSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	sessionRepo := repository.NewSessionRepository(app.db)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessionRepo.DeleteExpired(); err != nil {
				log.Printf("session sweep failed: %v", err)
			}
		}
	}
}
