package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"gefarm-api/internal/config"
	"gefarm-api/internal/crypto"
	"gefarm-api/internal/db"
	"gefarm-api/internal/email"
	apihttp "gefarm-api/internal/http"
	"gefarm-api/internal/repository"
	"gefarm-api/internal/service"
	"gefarm-api/migrations"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := migrations.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	fieldCipher, err := crypto.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("encryption key", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	codeRepo := repository.NewPgCodeRepository(pool)
	deviceRepo := repository.NewPgDeviceRepository(pool)
	meterRepo := repository.NewPgMeterRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	limiter := service.NewMemoryRateLimiter(10*time.Minute, 3)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, 10*time.Minute, 3)
		}
		cancel()
	}

	jwtSvc := service.NewJWTService(
		cfg.JWTSecret,
		cfg.JWTIssuer,
		cfg.JWTAudience,
		time.Duration(cfg.JWTTTLSeconds)*time.Second,
	)
	hasher := service.NewPasswordHasher(cfg.BcryptCost)
	codeSvc := service.NewCodeService(codeRepo, cfg.CodeLength)
	accountSvc := service.NewAccountService(logger, userRepo, codeRepo, codeSvc, hasher, emailSender, limiter, service.AccountTiming{
		VerifyTTL:      cfg.VerifyCodeTTL,
		ResetTTL:       cfg.ResetCodeTTL,
		VerifyCooldown: cfg.VerifyCooldown,
		ResetCooldown:  cfg.ResetCooldown,
	})
	deviceSvc := service.NewDeviceService(logger, deviceRepo, meterRepo, fieldCipher)

	authHandler := apihttp.NewAuthHandler(logger, accountSvc, jwtSvc)
	userHandler := apihttp.NewUserHandler(logger, accountSvc)
	deviceHandler := apihttp.NewDeviceHandler(logger, deviceSvc)
	meterHandler := apihttp.NewMeterHandler(logger, deviceSvc)
	router := apihttp.NewRouter(logger, jwtSvc, authHandler, userHandler, deviceHandler, meterHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
