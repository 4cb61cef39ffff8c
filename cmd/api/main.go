package main

import (
	"context"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bank-assist/internal/config"
	"bank-assist/internal/db"
	"bank-assist/internal/email"
	"bank-assist/internal/guardrails"
	apihttp "bank-assist/internal/http"
	"bank-assist/internal/llm"
	"bank-assist/internal/repository"
	"bank-assist/internal/service"
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

	rules, err := guardrails.NewRuleset(guardrails.Options{
		MaxInputLen:     cfg.MaxInputLen,
		OffTopicEnabled: cfg.OffTopicBlock,
		ExtraInjection:  cfg.InjectionExtra,
		ExtraOffTopic:   cfg.OffTopicExtra,
		ExtraHighRisk:   cfg.HighRiskExtra,
	})
	if err != nil {
		logger.Fatal("guardrail config", zap.Error(err))
	}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.EmbeddingModel, cfg.LLMTimeout, logger)
	if cfg.LLMAPIKey == "" {
		logger.Warn("llm api key not configured; classifier and handlers will fail to safe defaults")
	}

	var (
		accountRepo  repository.AccountRepository
		policyFinder service.PolicyFinder
		userRepo     repository.UserRepository
		auditRepo    repository.MessageRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()

		accountRepo = repository.NewPgAccountRepository(pool)
		policyFinder = service.NewSemanticPolicyFinder(llmClient, repository.NewPgPolicyRepository(pool), logger)
		userRepo = repository.NewPgUserRepository(pool)
		auditRepo = repository.NewPgMessageRepository(pool)
	} else {
		logger.Info("no database configured, using csv demo data", zap.String("data_dir", cfg.DataDir))
		csvAccounts, err := repository.NewCSVAccountRepository(cfg.DataDir)
		if err != nil {
			logger.Fatal("load account data", zap.Error(err))
		}
		csvPolicies, err := repository.NewCSVPolicyRepository(cfg.DataDir)
		if err != nil {
			logger.Fatal("load policy data", zap.Error(err))
		}
		csvUsers, err := repository.NewCSVUserRepository(cfg.DataDir)
		if err != nil {
			logger.Fatal("load user data", zap.Error(err))
		}
		accountRepo = csvAccounts
		policyFinder = service.NewBasicPolicyFinder(csvPolicies)
		userRepo = csvUsers
	}

	var limiter service.ChatRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limiter", zap.Error(err))
		} else {
			limiter = service.NewRedisChatRateLimiter(redisClient, cfg.RateLimitWindow, cfg.RateLimitMax)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewMemoryChatRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
	}

	sessions := service.NewSessionStore(cfg.SessionMaxMessages, cfg.SessionIdleTTL)
	defer sessions.Close()

	guardian := service.NewGuardianService(llmClient, logger)
	router := service.NewRouterService(llmClient, cfg.AccountKeywords, logger)
	accountHandler := service.NewAccountHandler(llmClient, accountRepo, logger)
	infoHandler := service.NewInfoHandler(llmClient, policyFinder, logger)

	dispatcher := service.NewDispatchService(rules, guardian, router, accountHandler, infoHandler, sessions, cfg.DemoUserID, logger)
	if auditRepo != nil {
		dispatcher.WithAudit(auditRepo)
	}
	if cfg.SMTPHost != "" && cfg.SupportEmail != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			dispatcher.WithEscalation(sender, cfg.SupportEmail)
		}
	}

	var flows *service.FlowService
	stepsPath := filepath.Join(cfg.DataDir, "steps.csv")
	flows, err = service.NewFlowServiceFromCSV(stepsPath)
	if err != nil {
		logger.Warn("guided flow disabled", zap.String("path", stepsPath), zap.Error(err))
		flows = nil
	}

	var (
		jwtSvc      *service.JWTService
		authHandler *apihttp.AuthHandler
	)
	if cfg.JWTSecret != "" {
		jwtSvc = service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
		userSvc := service.NewUserService(logger, userRepo)
		authHandler = apihttp.NewAuthHandler(logger, userSvc, jwtSvc)
	} else {
		logger.Warn("jwt secret not configured, chat runs with the demo user only")
	}

	chatHandler := apihttp.NewChatHandler(logger, dispatcher, limiter, flows)
	engine := apihttp.NewRouter(logger, chatHandler, authHandler, jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
