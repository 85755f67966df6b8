// Package atlas provides the model-backed ability executor: prompt
// rendering, response caching, degraded-mode fallbacks, and output
// normalization.
package atlas

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tpl.md
var promptFS embed.FS

// ErrPromptTemplate marks a missing or broken prompt template. Template
// faults are configuration defects, not runtime conditions, so they fail
// the stage rather than degrade.
var ErrPromptTemplate = errors.New("prompt template error")

// AbilityTemplate names an embedded prompt template.
type AbilityTemplate string

// Prompt templates for model-backed abilities.
const (
	ExtractEntitiesTemplate      AbilityTemplate = "extract_entities"
	EnrichRecordsTemplate        AbilityTemplate = "enrich_records"
	ClarifyQuestionTemplate      AbilityTemplate = "clarify_question"
	ExtractAnswerTemplate        AbilityTemplate = "extract_answer"
	KnowledgeBaseSearchTemplate  AbilityTemplate = "knowledge_base_search"
	EscalationDecisionTemplate   AbilityTemplate = "escalation_decision"
	UpdateTicketTemplate         AbilityTemplate = "update_ticket"
	CloseTicketTemplate          AbilityTemplate = "close_ticket"
	ExecuteAPICallsTemplate      AbilityTemplate = "execute_api_calls"
	TriggerNotificationsTemplate AbilityTemplate = "trigger_notifications"
)

// TemplateData holds the data for prompt rendering.
type TemplateData struct {
	// State is the request payload serialized as JSON.
	State string
	// Threshold is the escalation score threshold, used by the
	// escalation decision prompt.
	Threshold int
}

// Renderer renders ability prompts from embedded templates.
type Renderer struct {
	templates map[AbilityTemplate]*template.Template
}

// NewRenderer loads and parses every embedded prompt template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[AbilityTemplate]*template.Template)}

	names := []AbilityTemplate{
		ExtractEntitiesTemplate,
		EnrichRecordsTemplate,
		ClarifyQuestionTemplate,
		ExtractAnswerTemplate,
		KnowledgeBaseSearchTemplate,
		EscalationDecisionTemplate,
		UpdateTicketTemplate,
		CloseTicketTemplate,
		ExecuteAPICallsTemplate,
		TriggerNotificationsTemplate,
	}

	for _, name := range names {
		content, err := promptFS.ReadFile(fmt.Sprintf("prompts/%s.tpl.md", name))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read template %s: %v", ErrPromptTemplate, name, err)
		}

		tmpl, err := template.New(string(name)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse template %s: %v", ErrPromptTemplate, name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the prompt for an ability with the given data.
func (r *Renderer) Render(name AbilityTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[name]
	if !exists {
		return "", fmt.Errorf("%w: no template for ability %s", ErrPromptTemplate, name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: failed to render template %s: %v", ErrPromptTemplate, name, err)
	}
	return buf.String(), nil
}

// Has reports whether a prompt template exists for the ability.
func (r *Renderer) Has(name AbilityTemplate) bool {
	_, exists := r.templates[name]
	return exists
}
