package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bank-assist/internal/domain"
	"bank-assist/internal/llm"
	"bank-assist/internal/repository"
)

// Handler es el contrato comun de los especialistas: historial de solo
// lectura + mensaje nuevo, un mensaje de assistant de salida.
type Handler interface {
	Handle(ctx context.Context, history []domain.Message, userID, text string) (string, error)
}

// maxToolRounds acota el loop de herramientas de cada turno.
const maxToolRounds = 3

var errToolUnknown = errors.New("unknown tool")

const accountPromptTemplate = `You are a professional Banking Assistant in a DEMO environment.
Only use the tools get_my_balance and get_my_transactions.
Do not provide any non-banking advice.
Never refuse a legitimate in-scope banking request.
Always provide multi-step options if data is missing.

To call a tool, respond ONLY with a JSON object:
{"tool": "get_my_balance"} or {"tool": "get_my_transactions"}
When you have enough data, respond with plain text for the user.

Conversation so far:
%s

%sUser request: %s`

const infoPromptTemplate = `You are a professional Bank Consultant. Answer questions about fees, rates, and policies.
Do not access user account information.
Never answer non-banking requests.

To look up a policy, respond ONLY with a JSON object:
{"tool": "get_bank_policies", "topic": "<topic>"}
When you have enough data, respond with plain text for the user.

Conversation so far:
%s

%sUser request: %s`

// toolCall es la forma JSON con la que el modelo pide una herramienta.
type toolCall struct {
	Tool  string `json:"tool"`
	Topic string `json:"topic,omitempty"`
}

// AccountHandler atiende consultas de cuenta. Solo puede usar balance y
// transacciones del usuario de la sesion; nunca muta datos.
type AccountHandler struct {
	llmClient llm.LLMClient
	accounts  repository.AccountRepository
	logger    *zap.Logger
}

func NewAccountHandler(llmClient llm.LLMClient, accounts repository.AccountRepository, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{llmClient: llmClient, accounts: accounts, logger: logger}
}

func (h *AccountHandler) Handle(ctx context.Context, history []domain.Message, userID, text string) (string, error) {
	if h.llmClient == nil || h.accounts == nil {
		return "", errors.New("account handler not configured")
	}
	return runToolLoop(ctx, h.llmClient, h.logger, accountPromptTemplate, history, text, func(call toolCall) (string, error) {
		switch call.Tool {
		case "get_my_balance":
			b, err := h.accounts.GetBalance(ctx, userID)
			if err != nil {
				return "", fmt.Errorf("get balance: %w", err)
			}
			return fmt.Sprintf("Balance: $%.2f (%s)", b.Amount, b.AccountType), nil
		case "get_my_transactions":
			txns, err := h.accounts.ListTransactions(ctx, userID, 5)
			if err != nil {
				return "", fmt.Errorf("list transactions: %w", err)
			}
			if len(txns) == 0 {
				return "No recent transactions.", nil
			}
			lines := make([]string, 0, len(txns))
			for _, t := range txns {
				lines = append(lines, fmt.Sprintf("%s: %s ($%.2f)", t.Date.Format("2006-01-02"), t.Merchant, t.Amount))
			}
			return strings.Join(lines, "\n"), nil
		default:
			return "", errToolUnknown
		}
	})
}

// InfoHandler responde preguntas generales del banco. No tiene acceso a
// datos por usuario.
type InfoHandler struct {
	llmClient llm.LLMClient
	policies  PolicyFinder
	logger    *zap.Logger
}

func NewInfoHandler(llmClient llm.LLMClient, policies PolicyFinder, logger *zap.Logger) *InfoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InfoHandler{llmClient: llmClient, policies: policies, logger: logger}
}

func (h *InfoHandler) Handle(ctx context.Context, history []domain.Message, _ string, text string) (string, error) {
	if h.llmClient == nil || h.policies == nil {
		return "", errors.New("info handler not configured")
	}
	return runToolLoop(ctx, h.llmClient, h.logger, infoPromptTemplate, history, text, func(call toolCall) (string, error) {
		if call.Tool != "get_bank_policies" {
			return "", errToolUnknown
		}
		p, err := h.policies.Find(ctx, call.Topic)
		if errors.Is(err, repository.ErrNotFound) {
			return "I couldn't find a specific policy on that.", nil
		}
		if err != nil {
			return "", fmt.Errorf("find policy: %w", err)
		}
		return p.Content, nil
	})
}

// BlockHandler devuelve el rechazo fijo. Sin LLM, sin herramientas.
type BlockHandler struct{}

func NewBlockHandler() *BlockHandler {
	return &BlockHandler{}
}

func (h *BlockHandler) Handle(_ context.Context, _ []domain.Message, _, _ string) (string, error) {
	return ReplyOffTopicBlocked, nil
}

// runToolLoop ejecuta el ciclo modelo -> tool -> observacion hasta que el
// modelo responde texto plano o se agotan las rondas. Con las rondas
// agotadas, la ultima salida del modelo se toma como respuesta final.
func runToolLoop(
	ctx context.Context,
	client llm.LLMClient,
	logger *zap.Logger,
	promptTemplate string,
	history []domain.Message,
	text string,
	execTool func(toolCall) (string, error),
) (string, error) {
	var observations strings.Builder

	var raw string
	for round := 0; round <= maxToolRounds; round++ {
		prompt := fmt.Sprintf(promptTemplate, formatHistory(history), observations.String(), text)

		var err error
		raw, err = client.Generate(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("llm generate: %w", err)
		}

		call, ok := parseToolCall(raw)
		if !ok || round == maxToolRounds {
			break
		}

		result, err := execTool(call)
		if err != nil {
			if errors.Is(err, errToolUnknown) {
				logger.Warn("model requested unknown tool", zap.String("tool", call.Tool))
				result = "Error: unknown tool " + call.Tool
			} else {
				logger.Warn("tool execution failed", zap.String("tool", call.Tool), zap.Error(err))
				result = "Error: tool temporarily unavailable"
			}
		}
		fmt.Fprintf(&observations, "Tool %s returned:\n%s\n\n", call.Tool, result)
	}

	final := CleanLLMResponse(raw)
	if final == "" {
		return "", errors.New("llm empty final response")
	}
	return final, nil
}

// parseToolCall detecta si la salida del modelo es un pedido de
// herramienta JSON en lugar de texto final.
func parseToolCall(raw string) (toolCall, bool) {
	candidate := extractFirstJSONObject(CleanLLMResponse(raw))
	if candidate == "" {
		return toolCall{}, false
	}
	var call toolCall
	if err := json.Unmarshal([]byte(candidate), &call); err != nil {
		return toolCall{}, false
	}
	if strings.TrimSpace(call.Tool) == "" {
		return toolCall{}, false
	}
	call.Tool = strings.TrimSpace(call.Tool)
	call.Topic = strings.TrimSpace(call.Topic)
	return call, true
}
