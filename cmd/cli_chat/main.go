package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bank-assist/internal/config"
	"bank-assist/internal/guardrails"
	"bank-assist/internal/llm"
	"bank-assist/internal/repository"
	"bank-assist/internal/service"
)

// REPL local contra el pipeline de despacho, con datos CSV demo.
// Util para probar guardrails y ruteo sin levantar el servidor HTTP.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	rules, err := guardrails.NewRuleset(guardrails.Options{
		MaxInputLen:     cfg.MaxInputLen,
		OffTopicEnabled: cfg.OffTopicBlock,
		ExtraInjection:  cfg.InjectionExtra,
		ExtraOffTopic:   cfg.OffTopicExtra,
		ExtraHighRisk:   cfg.HighRiskExtra,
	})
	if err != nil {
		log.Fatal(err)
	}

	accountRepo, err := repository.NewCSVAccountRepository(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}
	policyRepo, err := repository.NewCSVPolicyRepository(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.EmbeddingModel, cfg.LLMTimeout, logger)

	sessions := service.NewSessionStore(cfg.SessionMaxMessages, cfg.SessionIdleTTL)
	defer sessions.Close()

	guardian := service.NewGuardianService(llmClient, logger)
	router := service.NewRouterService(llmClient, cfg.AccountKeywords, logger)
	accountHandler := service.NewAccountHandler(llmClient, accountRepo, logger)
	infoHandler := service.NewInfoHandler(llmClient, service.NewBasicPolicyFinder(policyRepo), logger)

	dispatcher := service.NewDispatchService(rules, guardian, router, accountHandler, infoHandler, sessions, cfg.DemoUserID, logger)

	sessionID := uuid.NewString()
	fmt.Printf("bank-assist cli (session %s). Type 'exit' to quit.\n", sessionID)

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return
		}

		result := dispatcher.Dispatch(ctx, sessionID, cfg.DemoUserID, line)
		fmt.Println(result.Response)
	}
}
