package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bank-assist/internal/domain"
	"bank-assist/internal/email"
	"bank-assist/internal/guardrails"
	"bank-assist/internal/repository"
)

// dispatchState traza el recorrido de un turno por el pipeline.
type dispatchState string

const (
	stateReceived        dispatchState = "RECEIVED"
	stateSanitized       dispatchState = "SANITIZED"
	stateBlockedPrecheck dispatchState = "BLOCKED_PRECHECK"
	stateClassifying     dispatchState = "CLASSIFYING"
	stateBlockedGuardian dispatchState = "BLOCKED_GUARDIAN"
	stateRouted          dispatchState = "ROUTED"
	stateHandled         dispatchState = "HANDLED"
	statePostprocessed   dispatchState = "POSTPROCESSED"
	stateDone            dispatchState = "DONE"
)

// DispatchService es la maquina de estados de cada turno: sanitiza,
// aplica guardrails, clasifica, despacha al especialista y post-filtra.
// Se re-entra fresca por mensaje; solo el historial de sesion cruza
// turnos. Los caminos bloqueados convergen a rechazos fijos sin tocar
// handlers ni herramientas.
type DispatchService struct {
	rules          *guardrails.Ruleset
	guardian       *GuardianService
	router         *RouterService
	accountHandler Handler
	infoHandler    Handler
	blockHandler   Handler
	sessions       *SessionStore
	audit          repository.MessageRepository
	escalations    email.Sender
	supportEmail   string
	defaultUserID  string
	logger         *zap.Logger
}

func NewDispatchService(
	rules *guardrails.Ruleset,
	guardian *GuardianService,
	router *RouterService,
	accountHandler Handler,
	infoHandler Handler,
	sessions *SessionStore,
	defaultUserID string,
	logger *zap.Logger,
) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchService{
		rules:          rules,
		guardian:       guardian,
		router:         router,
		accountHandler: accountHandler,
		infoHandler:    infoHandler,
		blockHandler:   NewBlockHandler(),
		sessions:       sessions,
		defaultUserID:  defaultUserID,
		logger:         logger,
	}
}

// WithAudit espeja el historial a un MessageRepository (best effort).
func (s *DispatchService) WithAudit(repo repository.MessageRepository) *DispatchService {
	s.audit = repo
	return s
}

// WithEscalation habilita la notificacion por mail de pedidos de alto
// riesgo que quedan pendientes de aprobacion humana.
func (s *DispatchService) WithEscalation(sender email.Sender, supportEmail string) *DispatchService {
	s.escalations = sender
	s.supportEmail = supportEmail
	return s
}

// Dispatch procesa un mensaje entrante y devuelve la respuesta final ya
// post-procesada. Nunca devuelve error: toda falla interna degrada al
// texto fijo correspondiente y queda en el log.
func (s *DispatchService) Dispatch(ctx context.Context, sessionID, userID, raw string) domain.DispatchResult {
	st := stateReceived

	text := s.rules.Sanitize(raw)
	st = stateSanitized

	// Input vacio: respuesta fija, sin clasificador, sin historial.
	if text == "" {
		return s.finish(sessionID, st, domain.DispatchResult{
			Response:    ReplyEmptyInput,
			Destination: domain.DestinationInfo,
			SessionID:   sessionID,
		})
	}

	if s.rules.DetectInjection(text) {
		st = stateBlockedPrecheck
		s.logger.Warn("prompt injection attempt blocked", zap.String("session_id", sessionID))
		return s.finish(sessionID, st, domain.DispatchResult{
			Response:    ReplyInjectionBlocked,
			Destination: domain.DestinationBlock,
			SessionID:   sessionID,
		})
	}

	if s.rules.DetectOffTopic(text) {
		st = stateBlockedPrecheck
		s.logger.Info("off-topic request blocked", zap.String("session_id", sessionID))
		return s.finish(sessionID, st, domain.DispatchResult{
			Response:    ReplyOffTopicBlocked,
			Destination: domain.DestinationBlock,
			SessionID:   sessionID,
		})
	}

	// Alto riesgo: queda pendiente de aprobacion humana, nunca llega a
	// un agente. La escalacion corre aparte para no bloquear el turno.
	if s.rules.DetectHighRisk(text) {
		st = stateBlockedPrecheck
		s.logger.Info("high-risk request parked for manual approval", zap.String("session_id", sessionID))
		s.escalate(sessionID, text)
		return s.finish(sessionID, st, domain.DispatchResult{
			Response:    ReplyHighRiskPending,
			Destination: domain.DestinationBlock,
			SessionID:   sessionID,
		})
	}

	st = stateClassifying

	var result domain.DispatchResult
	err := s.sessions.WithLock(sessionID, s.effectiveUser(userID), func(session *domain.Session) error {
		boundUser := session.UserID
		if boundUser == "" {
			boundUser = s.effectiveUser(userID)
			session.UserID = boundUser
		}

		history := make([]domain.Message, len(session.Messages))
		copy(history, session.Messages)

		dest := domain.DestinationInfo
		if s.guardian != nil {
			if decision := s.guardian.Review(ctx, history, text); !decision.Allowed {
				st = stateBlockedGuardian
				s.logger.Info("guardian blocked request",
					zap.String("session_id", sessionID),
					zap.String("reason", decision.Reason),
				)
				dest = domain.DestinationBlock
			}
		}

		if st != stateBlockedGuardian {
			dest = s.router.Route(ctx, text)
			st = stateRouted
		}

		var handler Handler
		switch dest {
		case domain.DestinationAccount:
			handler = s.accountHandler
		case domain.DestinationBlock:
			handler = s.blockHandler
		default:
			handler = s.infoHandler
		}

		draft, err := handler.Handle(ctx, history, boundUser, text)
		if err != nil {
			// Falla de handler degrada al texto generico; el error nunca
			// llega al usuario.
			s.logger.Error("handler failed", zap.String("destination", string(dest)), zap.Error(err))
			draft = ReplyServiceUnavailable
		}
		st = stateHandled

		final := s.rules.RedactSensitive(draft)
		if s.rules.CheckProhibited(final) {
			s.logger.Warn("prohibited content discarded", zap.String("session_id", sessionID))
			final = ReplyProhibitedFallback
		}
		st = statePostprocessed

		now := time.Now().UTC()
		userMsg := domain.Message{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			UserID:    boundUser,
			Role:      domain.RoleUser,
			Content:   text,
			CreatedAt: now,
		}
		assistantMsg := domain.Message{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      domain.RoleAssistant,
			Content:   final,
			CreatedAt: now,
		}
		s.sessions.Append(session, userMsg, assistantMsg)
		s.mirror(ctx, userMsg, assistantMsg)

		result = domain.DispatchResult{
			Response:    final,
			Destination: dest,
			SessionID:   sessionID,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("dispatch turn failed", zap.Error(err))
		return domain.DispatchResult{
			Response:    ReplyServiceUnavailable,
			Destination: domain.DestinationInfo,
			SessionID:   sessionID,
		}
	}

	return s.finish(sessionID, st, result)
}

func (s *DispatchService) finish(sessionID string, last dispatchState, result domain.DispatchResult) domain.DispatchResult {
	s.logger.Debug("dispatch done",
		zap.String("session_id", sessionID),
		zap.String("last_state", string(last)),
		zap.String("final_state", string(stateDone)),
		zap.String("destination", string(result.Destination)),
	)
	return result
}

func (s *DispatchService) effectiveUser(userID string) string {
	if userID != "" {
		return userID
	}
	return s.defaultUserID
}

// mirror persiste ambos mensajes en el espejo de auditoria. Best effort:
// una falla se loguea y el turno sigue.
func (s *DispatchService) mirror(ctx context.Context, msgs ...domain.Message) {
	if s.audit == nil {
		return
	}
	for _, m := range msgs {
		if err := s.audit.Create(ctx, m); err != nil {
			s.logger.Warn("audit mirror failed", zap.String("message_id", m.ID), zap.Error(err))
		}
	}
}

func (s *DispatchService) escalate(sessionID, text string) {
	if s.escalations == nil || s.supportEmail == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.escalations.SendEscalation(ctx, s.supportEmail, sessionID, text); err != nil {
			s.logger.Warn("escalation email failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}
