package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
// Responses se consume en orden; agotado, repite Response.
// Seguro para uso concurrente.
type MockClient struct {
	Response  string
	Responses []string
	Err       error

	mu      sync.Mutex
	Calls   int
	Prompts []string
}

func (m *MockClient) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	return m.Response, nil
}

// MockEmbedder devuelve un vector fijo para tests de busqueda semantica.
type MockEmbedder struct {
	Vector []float32
	Err    error
}

func (m *MockEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}
