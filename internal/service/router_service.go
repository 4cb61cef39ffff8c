package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bank-assist/internal/domain"
)

const routerPromptTemplate = `Classify user intent strictly.
User input: %q
Return exactly one of: ACCOUNT, INFO, BLOCK. Nothing else.`

var defaultAccountKeywords = []string{
	"balance", "money", "spent", "spend", "spendings", "transaction",
	"checking", "savings", "transfer", "pay", "deposit", "withdraw",
}

// routerLLM es el contrato minimo que el router necesita del clasificador.
type routerLLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RouterService decide que especialista atiende un pedido permitido.
// Orden de resolucion: vacio -> INFO; keyword de cuenta -> ACCOUNT sin
// llamada externa; si no, clasificador LLM con default seguro INFO.
type RouterService struct {
	llmClient routerLLM
	keywords  []string
	logger    *zap.Logger
}

func NewRouterService(llmClient routerLLM, extraKeywords []string, logger *zap.Logger) *RouterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	keywords := make([]string, 0, len(defaultAccountKeywords)+len(extraKeywords))
	keywords = append(keywords, defaultAccountKeywords...)
	for _, k := range extraKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return &RouterService{llmClient: llmClient, keywords: keywords, logger: logger}
}

// Route nunca devuelve ACCOUNT por una falla: el camino privilegiado
// exige keyword explicita o clasificacion valida.
func (s *RouterService) Route(ctx context.Context, text string) domain.Destination {
	if strings.TrimSpace(text) == "" {
		return domain.DestinationInfo
	}

	lower := strings.ToLower(text)
	for _, k := range s.keywords {
		if strings.Contains(lower, k) {
			return domain.DestinationAccount
		}
	}

	if s.llmClient == nil {
		return domain.DestinationInfo
	}

	raw, err := s.llmClient.Generate(ctx, fmt.Sprintf(routerPromptTemplate, text))
	if err != nil {
		s.logger.Warn("router classification failed, defaulting to INFO", zap.Error(err))
		return domain.DestinationInfo
	}

	dest := ParseDestination(raw)
	if dest == domain.DestinationInvalid {
		s.logger.Warn("router output invalid, defaulting to INFO", zap.String("raw", raw))
		return domain.DestinationInfo
	}
	return dest
}
