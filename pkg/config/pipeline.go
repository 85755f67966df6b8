// Package config provides loading and validation of the pipeline
// configuration: the ordered stage list, each ability's execution mode, the
// escalation policy, and model provider settings. Configuration is loaded
// once before a run begins and treated as immutable for the run's lifetime.
package config

import (
	"fmt"
	"time"
)

// Mode declares how an ability executes.
type Mode string

const (
	// ModeLocal marks deterministic abilities executed in-process.
	ModeLocal Mode = "local"
	// ModeHuman marks abilities answered by a human collaborator.
	ModeHuman Mode = "human"
	// ModeModel marks abilities routed through the model-completion collaborator.
	ModeModel Mode = "model"
)

// IsValid checks whether the mode is one of the declared values.
func (m Mode) IsValid() bool {
	return m == ModeLocal || m == ModeHuman || m == ModeModel
}

// Ability describes one unit of work inside a stage.
type Ability struct {
	Name string `yaml:"name"`
	Mode Mode   `yaml:"mode"`
}

// Stage is a named, ordered group of abilities.
type Stage struct {
	Name      string    `yaml:"name"`
	Abilities []Ability `yaml:"abilities"`
}

// Escalation configures the DECIDE-stage escalation policy.
type Escalation struct {
	// Threshold is the minimum solution-evaluation score (0-100) below
	// which the request escalates to a human.
	Threshold int `yaml:"threshold"`
	// Handler names the human ability that receives the escalated request.
	Handler string `yaml:"handler"`
}

// Duration wraps time.Duration with YAML support for "30s"-style values.
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "30s" or "1h".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Model configures the model-completion collaborator.
type Model struct {
	Provider    string   `yaml:"provider"` // anthropic | openai | gemini | ollama | mock
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"` // Ollama server URL, unused by hosted providers
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float32  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
	CacheTTL    Duration `yaml:"cache_ttl"`
}

// Pipeline is the full configuration surface consumed by the orchestrator.
type Pipeline struct {
	Stages     []Stage    `yaml:"stages"`
	Escalation Escalation `yaml:"escalation"`
	Model      Model      `yaml:"model"`
}

// Default returns the built-in support pipeline: eleven stages from INTAKE
// through COMPLETE with the standard ability assignments.
func Default() Pipeline {
	return Pipeline{
		Stages: []Stage{
			{Name: "INTAKE", Abilities: []Ability{
				{Name: "accept_payload", Mode: ModeLocal},
			}},
			{Name: "UNDERSTAND", Abilities: []Ability{
				{Name: "parse_request_text", Mode: ModeLocal},
				{Name: "extract_entities", Mode: ModeModel},
			}},
			{Name: "PREPARE", Abilities: []Ability{
				{Name: "normalize_fields", Mode: ModeLocal},
				{Name: "enrich_records", Mode: ModeModel},
				{Name: "add_flags_calculations", Mode: ModeLocal},
			}},
			{Name: "ASK", Abilities: []Ability{
				{Name: "clarify_question", Mode: ModeHuman},
			}},
			{Name: "WAIT", Abilities: []Ability{
				{Name: "extract_answer", Mode: ModeHuman},
				{Name: "store_answer", Mode: ModeLocal},
			}},
			{Name: "RETRIEVE", Abilities: []Ability{
				{Name: "knowledge_base_search", Mode: ModeLocal},
				{Name: "store_data", Mode: ModeLocal},
			}},
			{Name: "DECIDE", Abilities: []Ability{
				{Name: "solution_evaluation", Mode: ModeLocal},
				{Name: "escalation_decision", Mode: ModeLocal},
				{Name: "update_payload", Mode: ModeLocal},
			}},
			{Name: "UPDATE", Abilities: []Ability{
				{Name: "update_ticket", Mode: ModeLocal},
				{Name: "close_ticket", Mode: ModeLocal},
			}},
			{Name: "CREATE", Abilities: []Ability{
				{Name: "response_generation", Mode: ModeLocal},
			}},
			{Name: "DO", Abilities: []Ability{
				{Name: "execute_api_calls", Mode: ModeModel},
				{Name: "trigger_notifications", Mode: ModeLocal},
			}},
			{Name: "COMPLETE", Abilities: []Ability{
				{Name: "output_payload", Mode: ModeLocal},
			}},
		},
		Escalation: Escalation{
			Threshold: 90,
			Handler:   "escalation_review",
		},
		Model: Model{
			Provider:    "mock",
			Name:        "",
			MaxTokens:   4096,
			Temperature: 0.3,
			Timeout:     Duration(30 * time.Second),
			CacheTTL:    Duration(time.Hour),
		},
	}
}

// Validate rejects malformed pipelines before a run starts. A validation
// failure is a configuration bug, surfaced as a fatal fault.
func (p *Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	seen := make(map[string]string)
	for _, stage := range p.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage with empty name")
		}
		if len(stage.Abilities) == 0 {
			return fmt.Errorf("stage %s has no abilities", stage.Name)
		}
		for _, ability := range stage.Abilities {
			if ability.Name == "" {
				return fmt.Errorf("stage %s contains an ability with empty name", stage.Name)
			}
			if !ability.Mode.IsValid() {
				return fmt.Errorf("ability %s has invalid mode %q", ability.Name, ability.Mode)
			}
			if owner, dup := seen[ability.Name]; dup {
				return fmt.Errorf("ability %s declared in both %s and %s", ability.Name, owner, stage.Name)
			}
			seen[ability.Name] = stage.Name
		}
	}

	if p.Escalation.Threshold < 0 || p.Escalation.Threshold > 100 {
		return fmt.Errorf("escalation threshold %d out of range [0,100]", p.Escalation.Threshold)
	}
	if p.Escalation.Handler == "" {
		return fmt.Errorf("escalation handler ability not configured")
	}

	return nil
}
