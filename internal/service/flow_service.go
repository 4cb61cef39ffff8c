package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"bank-assist/internal/domain"
)

var ErrFlowStepNotFound = errors.New("flow step not found")

// FlowService sirve el grafo de pasos guiados cargado desde datos
// tabulares. Se consulta antes del pipeline de agentes: si el request
// trae current_step_id valido, la respuesta sale del grafo.
type FlowService struct {
	steps map[string]domain.FlowStep
}

// NewFlowServiceFromCSV carga steps.csv con columnas
// step_id,prompt,options. options es "label>next;label>next"; un next
// vacio significa salir del flujo guiado.
func NewFlowServiceFromCSV(path string) (*FlowService, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open steps: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}

	svc := &FlowService{steps: make(map[string]domain.FlowStep)}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("steps.csv row %d: expected at least 2 columns, got %d", i+1, len(row))
		}
		step := domain.FlowStep{
			ID:     strings.TrimSpace(row[0]),
			Prompt: strings.TrimSpace(row[1]),
		}
		if step.ID == "" {
			return nil, fmt.Errorf("steps.csv row %d: empty step_id", i+1)
		}
		if len(row) >= 3 {
			step.Options = parseFlowOptions(row[2])
		}
		svc.steps[step.ID] = step
	}

	// Validar que todo next apunte a un paso existente.
	for _, step := range svc.steps {
		for _, opt := range step.Options {
			if opt.NextStep == "" {
				continue
			}
			if _, ok := svc.steps[opt.NextStep]; !ok {
				return nil, fmt.Errorf("step %q: option %q points to unknown step %q", step.ID, opt.Label, opt.NextStep)
			}
		}
	}

	return svc, nil
}

// Step devuelve el paso pedido o ErrFlowStepNotFound.
func (s *FlowService) Step(id string) (domain.FlowStep, error) {
	if s == nil {
		return domain.FlowStep{}, ErrFlowStepNotFound
	}
	step, ok := s.steps[strings.TrimSpace(id)]
	if !ok {
		return domain.FlowStep{}, ErrFlowStepNotFound
	}
	return step, nil
}

// Resolve avanza el flujo: busca en el paso actual la opcion cuyo label
// matchea el mensaje del usuario y devuelve el paso siguiente. Un next
// vacio o sin match devuelve ErrFlowStepNotFound y el caller pasa el
// mensaje al pipeline de agentes.
func (s *FlowService) Resolve(currentStepID, userMessage string) (domain.FlowStep, error) {
	current, err := s.Step(currentStepID)
	if err != nil {
		return domain.FlowStep{}, err
	}
	msg := strings.ToLower(strings.TrimSpace(userMessage))
	for _, opt := range current.Options {
		if strings.ToLower(opt.Label) == msg && opt.NextStep != "" {
			return s.Step(opt.NextStep)
		}
	}
	return domain.FlowStep{}, ErrFlowStepNotFound
}

func parseFlowOptions(raw string) []domain.FlowOption {
	var opts []domain.FlowOption
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, next, _ := strings.Cut(part, ">")
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		opts = append(opts, domain.FlowOption{
			Label:    label,
			NextStep: strings.TrimSpace(next),
		})
	}
	return opts
}
