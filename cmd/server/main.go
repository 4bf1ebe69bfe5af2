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

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/config"
	apphttp "github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/http"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/llm"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/marketdata"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/reportgen"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository/sqlite"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}
	if strings.TrimSpace(cfg.Hotmart.Hottok) == "" {
		logger.Warn("hotmart hottok not set, webhook will reject every call")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	repos := sqlite.NewRepositories(db)
	if err := repos.Init(ctx); err != nil {
		logger.Fatalf("init repositories: %v", err)
	}

	catalog := permissions.Default()
	if cfg.Permissions.CatalogPath != "" {
		if catalog, err = permissions.Load(cfg.Permissions.CatalogPath); err != nil {
			logger.Fatalf("load permission catalog: %v", err)
		}
	}

	products, err := service.ParseProducts(cfg.Hotmart.Products)
	if err != nil {
		logger.Fatalf("hotmart products: %v", err)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	quotes := marketdata.NewCachedQuoter(
		marketdata.NewBrapiClient(cfg.Brapi.BaseURL, cfg.Brapi.Token, marketdata.WithLogger(logger)),
		buildQuoteCache(ctx, cfg, logger),
		time.Duration(cfg.Brapi.CacheTTLSeconds)*time.Second,
		logger,
	)

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("openai api key not set, report generation will fail")
	}
	generator := reportgen.NewManager(reportgen.Config{
		MaxConcurrent: cfg.Reports.MaxConcurrent,
		Logger:        logger,
	}, repos.Reports, llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model))

	if err := generator.Start(ctx); err != nil {
		logger.Fatalf("start report manager: %v", err)
	}
	if err := generator.Resume(ctx); err != nil {
		logger.Warnf("resume reports: %v", err)
	}

	userService := service.NewUserService(repos.Users, catalog)
	services := apphttp.Services{
		Users: userService,
		Purchases: service.NewPurchaseService(service.HotmartConfig{
			Hottok:       cfg.Hotmart.Hottok,
			PlanDuration: time.Duration(cfg.Hotmart.PlanDurationDays) * 24 * time.Hour,
			Products:     products,
		}, repos.Users, repos.Purchases, repos.Notifications, logger),
		Questions:     service.NewQuestionService(repos.Questions, repos.Notifications, logger),
		Notifications: service.NewNotificationService(repos.Notifications, repos.Users),
		Portfolios:    service.NewPortfolioService(repos.Portfolios, repos.Assets, repos.Events, repos.Proventos, quotes, catalog, logger),
		Proventos: service.NewProventoService(repos.Proventos, service.ImportConfig{
			ChunkSize:  cfg.Proventos.ChunkSize,
			ChunkDelay: time.Duration(cfg.Proventos.ChunkDelayMS) * time.Millisecond,
		}, logger),
		Reports:  service.NewReportService(repos.Reports, generator, storageSvc, logger),
		Analyses: service.NewAnalysisService(repos.Analyses, storageSvc, logger),
		Quotes:   quotes,
	}

	auth := apphttp.NewAuthorizer(apphttp.AuthConfig{
		Secret:       cfg.Auth.JWTSecret,
		TTL:          time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
	}, userService, catalog)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 32 << 20
	apphttp.NewHandler(services, auth, catalog, storageSvc, logger).
		AllowOrigins(cfg.Server.AllowOrigins...).
		RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	generator.Shutdown()

	logger.Info("bye")
}

// buildStorage returns a nil Service when no bucket is configured; PDF uploads
// are then rejected while the rest of the API keeps working.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("storage bucket not set, pdf uploads disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix), nil
}

func buildQuoteCache(ctx context.Context, cfg config.Config, logger *logrus.Logger) marketdata.QuoteCache {
	if cfg.Redis.Addr == "" {
		return marketdata.NewMemoryCache()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnf("redis unavailable at %s, using in-memory quote cache: %v", cfg.Redis.Addr, err)
		rdb.Close()
		return marketdata.NewMemoryCache()
	}
	logger.Infof("caching quotes in redis at %s", cfg.Redis.Addr)
	return marketdata.NewRedisCache(rdb)
}
