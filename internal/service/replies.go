package service

// Textos fijos de respuesta. Ninguno sale de un LLM: los caminos
// bloqueados y los fallbacks responden siempre con estas constantes.
const (
	// ReplyEmptyInput responde a input vacio o solo whitespace.
	ReplyEmptyInput = "Please type a valid message."

	// ReplyInjectionBlocked responde a intentos de prompt injection.
	ReplyInjectionBlocked = "Unsafe input detected — please rephrase."

	// ReplyOffTopicBlocked enumera las 4 acciones permitidas.
	ReplyOffTopicBlocked = "I am a banking assistant and cannot answer off-topic or unsafe requests." +
		" Please choose one of the following professional options:\n" +
		"1. Check account balance\n2. View transactions\n3. Ask about bank policies or fees\n4. Contact human support"

	// ReplyHighRiskPending responde a pedidos que requieren aprobacion humana.
	ReplyHighRiskPending = "This action requires manual approval. We have created a request and will follow up."

	// ReplyProhibitedFallback sustituye borradores con contenido prohibido.
	ReplyProhibitedFallback = "I'm unable to fulfill that request. Please choose one of the professional options:\n" +
		"1. Contact human support\n2. Retry with a banking query\n3. View FAQs"

	// ReplyServiceUnavailable es el unico texto visible ante fallas internas.
	ReplyServiceUnavailable = "The assistant is temporarily unavailable. Please try again in a moment."

	// ReplyRateLimited acompaña el status 429.
	ReplyRateLimited = "Rate limit exceeded."
)
