package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bank-assist/internal/domain"
	"bank-assist/internal/service"
)

// defaultSessionID mantiene compatibilidad con clientes demo que no
// mandan session_id.
const defaultSessionID = "user_session_101"

// ChatHandler atiende el endpoint de chat y las paginas de servicio.
type ChatHandler struct {
	logger     *zap.Logger
	dispatcher *service.DispatchService
	limiter    service.ChatRateLimiter
	flows      *service.FlowService
}

func NewChatHandler(
	logger *zap.Logger,
	dispatcher *service.DispatchService,
	limiter service.ChatRateLimiter,
	flows *service.FlowService,
) *ChatHandler {
	return &ChatHandler{
		logger:     logger,
		dispatcher: dispatcher,
		limiter:    limiter,
		flows:      flows,
	}
}

type chatRequest struct {
	Message       string `json:"message"`
	SessionID     string `json:"session_id"`
	CurrentStepID string `json:"current_step_id"`
}

type chatResponse struct {
	Response string              `json:"response"`
	Options  []domain.FlowOption `json:"options,omitempty"`
	NextStep *string             `json:"next_step,omitempty"`
}

// Chat maneja POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	if h.limiter != nil && !h.limiter.Allow(sessionID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": service.ReplyRateLimited})
		return
	}

	// Flujo guiado: si el paso actual resuelve el mensaje, la respuesta
	// sale del grafo y no se invoca ningun agente.
	if h.flows != nil && req.CurrentStepID != "" {
		if resp, ok := h.resolveFlow(req); ok {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	userID := ""
	if claims, ok := GetAuthClaims(c); ok {
		userID = claims.UserID
	}

	result := h.dispatcher.Dispatch(c.Request.Context(), sessionID, userID, req.Message)
	c.JSON(http.StatusOK, chatResponse{Response: result.Response})
}

func (h *ChatHandler) resolveFlow(req chatRequest) (chatResponse, bool) {
	var (
		step domain.FlowStep
		err  error
	)
	if req.Message == "" {
		step, err = h.flows.Step(req.CurrentStepID)
	} else {
		step, err = h.flows.Resolve(req.CurrentStepID, req.Message)
	}
	if errors.Is(err, service.ErrFlowStepNotFound) {
		return chatResponse{}, false
	}
	if err != nil {
		return chatResponse{}, false
	}

	resp := chatResponse{Response: step.Prompt, Options: step.Options}
	if len(step.Options) > 0 {
		resp.NextStep = &step.ID
	}
	return resp, true
}

// Landing maneja GET / con una pagina minima embebida.
func (h *ChatHandler) Landing(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(landingPage))
}

// Health maneja GET /healthz.
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

const landingPage = `<!DOCTYPE html>
<html>
<head><title>Bank Assist Demo</title></head>
<body>
<h1>Bank Assist Demo</h1>
<p>POST /chat with {"message": "...", "session_id": "..."} to talk to the assistant.</p>
</body>
</html>`
