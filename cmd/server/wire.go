// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"log"

	"picstream_backend/internal/app"
	"picstream_backend/internal/auth"
	"picstream_backend/internal/avatar"
	"picstream_backend/internal/config"
	"picstream_backend/internal/jobs"
	"picstream_backend/internal/platform/database"
	"picstream_backend/internal/platform/logger"
	"picstream_backend/internal/shared"
	"picstream_backend/internal/user"

	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		database.NewGORM,
		provideCleanup,

		// Image derivative pipeline
		provideAvatarService,
		wire.Bind(new(user.DerivativeGenerator), new(*avatar.Service)),

		// Core account services
		user.NewGORMRepository,
		user.NewService,
		wire.Bind(new(shared.Service), new(*user.ServiceImplementation)),
		auth.NewJWTService,
		auth.NewOAuthService,

		// Handlers
		auth.NewHandler,
		user.NewHandler,

		// Jobs
		jobs.NewAvatarSweepJob,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}

func provideAvatarService(cfg *config.Config, appLogger *zap.Logger) (*avatar.Service, error) {
	return avatar.NewService(cfg.AvatarStoragePath, appLogger.Named("avatar"))
}

func provideCleanup(appLogger *zap.Logger, db *gorm.DB) func() {
	return func() {
		appLogger.Info("Executing cleanup tasks...")
		database.CloseGORMDB(db)
		if err := appLogger.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
		log.Println("Cleanup finished.")
	}
}
