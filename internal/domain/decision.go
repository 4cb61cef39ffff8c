package domain

// Destination es el conjunto cerrado de destinos de ruteo.
type Destination string

const (
	DestinationAccount Destination = "ACCOUNT"
	DestinationInfo    Destination = "INFO"
	DestinationBlock   Destination = "BLOCK"
	// DestinationInvalid marca salida no parseable del clasificador.
	// Nunca se despacha: el router la mapea al default seguro (INFO).
	DestinationInvalid Destination = "INVALID"
)

// GuardDecision es el resultado de la etapa guardian (allow/block).
type GuardDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// DispatchResult es la respuesta final ya post-procesada de un turno.
type DispatchResult struct {
	Response    string      `json:"response"`
	Destination Destination `json:"destination"`
	SessionID   string      `json:"session_id"`
}
