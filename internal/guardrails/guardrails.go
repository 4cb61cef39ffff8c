package guardrails

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultMaxInputLen limita el largo del input sanitizado.
	DefaultMaxInputLen = 2000
	// RedactionToken reemplaza secuencias que parecen tarjetas/SSN/cuentas.
	RedactionToken = "[REDACTED]"
)

// piiRe cubre corridas largas de digitos (tarjeta/cuenta), SSN con guiones
// y corridas de 9 digitos.
var piiRe = regexp.MustCompile(`\b(?:\d{12,19}|\d{3}-\d{2}-\d{4}|\d{9})\b`)

var controlCharReplacer = func() *strings.Replacer {
	var pairs []string
	for c := rune(0); c < 0x20; c++ {
		if c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		pairs = append(pairs, string(c), "")
	}
	pairs = append(pairs, string(rune(0x7f)), "")
	return strings.NewReplacer(pairs...)
}()

// Ruleset compila los patrones configurables una sola vez al arranque.
type Ruleset struct {
	maxInputLen     int
	offTopicEnabled bool
	injectionRe     *regexp.Regexp
	prohibitedRe    *regexp.Regexp
	offTopic        []string
	highRisk        []string
}

// Options extiende los defaults; las listas se concatenan.
type Options struct {
	MaxInputLen     int
	OffTopicEnabled bool
	ExtraInjection  []string
	ExtraOffTopic   []string
	ExtraProhibited []string
	ExtraHighRisk   []string
}

// NewRuleset valida y compila las reglas. Un patron extra invalido es
// error de configuracion, no se ignora en silencio.
func NewRuleset(opts Options) (*Ruleset, error) {
	maxLen := opts.MaxInputLen
	if maxLen <= 0 {
		maxLen = DefaultMaxInputLen
	}

	injectionRe, err := compileAlternation(defaultInjectionPatterns, opts.ExtraInjection)
	if err != nil {
		return nil, fmt.Errorf("compile injection patterns: %w", err)
	}
	prohibitedRe, err := compileAlternation(defaultProhibitedPatterns, opts.ExtraProhibited)
	if err != nil {
		return nil, fmt.Errorf("compile prohibited patterns: %w", err)
	}

	return &Ruleset{
		maxInputLen:     maxLen,
		offTopicEnabled: opts.OffTopicEnabled,
		injectionRe:     injectionRe,
		prohibitedRe:    prohibitedRe,
		offTopic:        mergeLower(defaultOffTopicKeywords, opts.ExtraOffTopic),
		highRisk:        mergeLower(defaultHighRiskKeywords, opts.ExtraHighRisk),
	}, nil
}

// MustDefaultRuleset es para tests y modo demo; los defaults compilan siempre.
func MustDefaultRuleset() *Ruleset {
	rs, err := NewRuleset(Options{OffTopicEnabled: true})
	if err != nil {
		panic(err)
	}
	return rs
}

// Sanitize elimina caracteres de control (salvo \t \n \r), recorta espacios
// y trunca al maximo configurado. Funcion total: nunca falla.
func (r *Ruleset) Sanitize(raw string) string {
	s := controlCharReplacer.Replace(raw)
	s = strings.TrimSpace(s)
	if len(s) > r.maxInputLen {
		s = s[:r.maxInputLen]
		// No dejar un codepoint multibyte partido por el truncado.
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// DetectInjection responde true si el texto matchea algun patron de
// override de instrucciones. Case-insensitive.
func (r *Ruleset) DetectInjection(text string) bool {
	return text != "" && r.injectionRe.MatchString(text)
}

// DetectOffTopic responde true si el bloqueo off-topic esta habilitado y
// el texto contiene alguna keyword fuera de dominio.
func (r *Ruleset) DetectOffTopic(text string) bool {
	if !r.offTopicEnabled || text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range r.offTopic {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// DetectHighRisk marca pedidos que requieren aprobacion humana
// (transferencias, cierres de cuenta) antes de llegar a cualquier agente.
func (r *Ruleset) DetectHighRisk(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range r.highRisk {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// RedactSensitive reemplaza secuencias tipo tarjeta/SSN por el token fijo.
// El resto del texto queda intacto.
func (r *Ruleset) RedactSensitive(text string) string {
	if text == "" {
		return text
	}
	return piiRe.ReplaceAllString(text, RedactionToken)
}

// CheckProhibited responde true si el borrador contiene frases de
// divulgacion prohibida; el caller debe descartar el borrador completo.
func (r *Ruleset) CheckProhibited(text string) bool {
	return text != "" && r.prohibitedRe.MatchString(text)
}

func compileAlternation(base, extra []string) (*regexp.Regexp, error) {
	patterns := make([]string, 0, len(base)+len(extra))
	patterns = append(patterns, base...)
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		patterns = append(patterns, p)
	}
	return regexp.Compile("(?i)(?:" + strings.Join(patterns, ")|(?:") + ")")
}

func mergeLower(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	for _, k := range base {
		out = append(out, strings.ToLower(k))
	}
	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
