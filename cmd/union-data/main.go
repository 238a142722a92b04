package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"union-data/internal/config"
	"union-data/internal/database"
	httpapi "union-data/internal/http"
	"union-data/internal/logger"
	"union-data/internal/repository"
	"union-data/internal/service"
	"union-data/internal/storage"
	"union-data/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "union-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKV(redisClient)

	uploader, err := storage.NewS3Uploader(context.Background(), cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.PublicURL)
	if err != nil {
		log.Fatal("Failed to initialize blob store", zap.Error(err))
	}
	if !uploader.Enabled() {
		log.Warn("Blob store not configured, uploads will be rejected")
	}

	// Repositories
	tenantsRepo := repository.NewPostgresTenantsRepository(db)
	membersRepo := repository.NewPostgresMembersRepository(db)
	parcelsRepo := repository.NewPostgresParcelsRepository(db)
	buildingsRepo := repository.NewPostgresBuildingsRepository(db)
	consentsRepo := repository.NewPostgresConsentsRepository(db)
	invitesRepo := repository.NewPostgresInvitesRepository(db)
	resolver := repository.NewPostgresTenantResolver(db)

	// External clients
	notifier := service.NewNotifyClient(cfg.Notify.BaseURL, cfg.Notify.APIKey, cfg.Notify.Sender, log)
	geocoder := service.NewGeocodeClient(cfg.Geocode.BaseURL, cfg.Geocode.APIKey, log)

	// Services
	memberSvc := service.NewMemberService(membersRepo, notifier, log)
	registrationSvc := service.NewRegistrationService(membersRepo, db, log)
	matchingSvc := service.NewMatchingService(db, log)
	consentSvc := service.NewConsentService(consentsRepo, tenantsRepo, kv, log)
	inviteSvc := service.NewInviteService(invitesRepo, membersRepo, notifier, log)

	// HTTP
	auth := httpapi.NewAuth(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.TTLHours)*time.Hour)
	if !auth.Enabled() {
		log.Warn("JWT secret not configured, admin routes are unauthenticated")
	}

	memberHandler := httpapi.NewMemberHandler(memberSvc, registrationSvc, resolver, log)
	gisHandler := httpapi.NewGISHandler(parcelsRepo, buildingsRepo, matchingSvc, geocoder, resolver, log)
	consentHandler := httpapi.NewConsentHandler(consentSvc, consentsRepo, resolver, log)
	inviteHandler := httpapi.NewInviteHandler(inviteSvc, resolver, log)
	tenantHandler := httpapi.NewTenantHandler(tenantsRepo, log)
	uploadHandler := httpapi.NewUploadHandler(uploader, resolver, log)

	router := httpapi.NewRouter(auth, log)
	router.RegisterOps()
	router.RegisterPublicRoutes(tenantHandler)
	router.RegisterAuthRoutes(memberHandler, inviteHandler)
	router.RegisterAdminRoutes(memberHandler, gisHandler, inviteHandler, tenantHandler, uploadHandler)
	router.RegisterGISRoutes(gisHandler)
	router.RegisterConsentRoutes(consentHandler)

	server := service.NewServer(cfg.HTTP.Addr, router, log)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	_ = redisClient.Close()
}
