package domain

// FlowOption es una opcion presentada al usuario dentro de un flujo guiado.
type FlowOption struct {
	Label    string `json:"label"`
	NextStep string `json:"next_step"`
}

// FlowStep es un nodo del grafo de pasos cargado desde datos tabulares.
type FlowStep struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Options []FlowOption `json:"options"`
}
