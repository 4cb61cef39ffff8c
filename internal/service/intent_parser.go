package service

import (
	"strings"

	"bank-assist/internal/domain"
)

// ParseDestination valida la salida libre del clasificador contra el
// conjunto cerrado de destinos. Cualquier cosa fuera del conjunto es
// INVALID; el caller mapea INVALID al default seguro.
func ParseDestination(raw string) domain.Destination {
	s := strings.ToUpper(CleanLLMResponse(raw))
	if s == "" {
		return domain.DestinationInvalid
	}

	// Match exacto primero: es el contrato pedido al clasificador.
	switch domain.Destination(s) {
	case domain.DestinationAccount, domain.DestinationInfo, domain.DestinationBlock:
		return domain.Destination(s)
	}
	if s == "OFF_TOPIC" {
		return domain.DestinationBlock
	}

	// Tolerancia a decoracion alrededor del token ("Answer: ACCOUNT").
	// BLOCK se chequea primero: ante salida ambigua gana el camino de
	// menor privilegio.
	switch {
	case strings.Contains(s, "OFF_TOPIC") || strings.Contains(s, string(domain.DestinationBlock)):
		return domain.DestinationBlock
	case strings.Contains(s, string(domain.DestinationAccount)):
		return domain.DestinationAccount
	case strings.Contains(s, string(domain.DestinationInfo)):
		return domain.DestinationInfo
	}

	return domain.DestinationInvalid
}
