package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/api"
	"github.com/schoolgate/schoolgate/internal/app"
	"github.com/schoolgate/schoolgate/internal/app/maintenance"
	iauth "github.com/schoolgate/schoolgate/internal/auth"
	"github.com/schoolgate/schoolgate/internal/database"
	"github.com/schoolgate/schoolgate/internal/delivery"
	"github.com/schoolgate/schoolgate/internal/push"
	"github.com/schoolgate/schoolgate/internal/realtime"
	"github.com/schoolgate/schoolgate/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("schoolgate-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	hub := realtime.NewHub(realtime.NewRegistry())

	pushClient, err := initialisePushClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	pushService := push.NewService(db, pushClient)

	dispatcher := delivery.NewDispatcher(hub, pushService)
	defer dispatcher.Wait()

	purger := maintenance.NewPurger(db,
		maintenance.WithPurgeSchedule(cfg.Retention.Schedule))
	if cfg.Retention.Enabled {
		if err := purger.Start(); err != nil {
			return fmt.Errorf("start retention jobs: %w", err)
		}
		defer func() {
			<-purger.Stop().Done()
		}()
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:         db,
		Config:     cfg,
		JWT:        jwtService,
		Hub:        hub,
		Dispatcher: dispatcher,
		Purger:     purger,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseSettings()

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func initialisePushClient(ctx context.Context, cfg *app.Config, log *zap.Logger) (push.Client, error) {
	if !cfg.Push.Firebase.Enabled {
		log.Info("push delivery disabled; notifications reach realtime sessions only")
		return nil, nil
	}

	client, err := push.NewFCMClient(ctx, push.FCMConfig{
		CredentialsFile:  cfg.Push.Firebase.CredentialsFile,
		ProjectID:        cfg.Push.Firebase.ProjectID,
		AndroidChannelID: cfg.Push.Firebase.AndroidChannelID,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise push client: %w", err)
	}

	log.Info("push delivery enabled", zap.String("project_id", cfg.Push.Firebase.ProjectID))
	return client, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable during shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("closing database failed", zap.Error(err))
	}
}
