package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictParseWrapsUnderAbility(t *testing.T) {
	result := Normalize("extract_entities", `{"software": "App", "action": "login"}`)

	assert.Equal(t, "extract_entities", result.Ability)
	entities, ok := result.Updates["extract_entities"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "App", entities["software"])
}

func TestStrictParseKeepsMatchingKey(t *testing.T) {
	result := Normalize("escalation_decision", `{"escalation_decision": {"escalate": true}}`)

	decision, ok := result.Updates["escalation_decision"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, decision["escalate"])
}

func TestExtractsBalancedSubstring(t *testing.T) {
	raw := "Sure! Here is the JSON you asked for:\n```json\n{\"found\": true, \"article_title\": \"Login Fixes\"}\n```\nHope that helps."
	result := Normalize("knowledge_base_search", raw)

	kb, ok := result.Updates["knowledge_base_search"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, kb["found"])
	assert.Equal(t, "Login Fixes", kb["article_title"])
}

func TestBracesInsideStringsDoNotConfuseScan(t *testing.T) {
	raw := `noise {"note": "use {curly} braces", "ok": true} trailing`
	result := Normalize("enrich_records", raw)

	enriched, ok := result.Updates["enrich_records"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "use {curly} braces", enriched["note"])
}

func TestArrayPayload(t *testing.T) {
	result := Normalize("extract_entities", `["login failure", "crash"]`)

	entities, ok := result.Updates["extract_entities"].([]any)
	require.True(t, ok)
	assert.Len(t, entities, 2)
}

func TestMalformedFallsBackToRaw(t *testing.T) {
	result := Normalize("summarize", "not json {broken")

	fallback, ok := result.Updates["summarize"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "not json {broken", fallback["raw"])
	assert.Equal(t, false, fallback["parsed"])
}

func TestTotality(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"plain prose with no structure",
		"{",
		"}{",
		`{"unterminated": "string`,
		"[[[[",
		"{}}",
		"null",
		"42",
		"true",
		`{"nested": {"deep": [1, {"x": "}"}]}}`,
		"\x00\xff binary-ish garbage \x01",
		`{"a": 1} {"b": 2}`,
	}

	for _, input := range inputs {
		result := Normalize("probe", input)
		assert.Equal(t, "probe", result.Ability, "input %q", input)
		assert.NotNil(t, result.Updates, "input %q", input)
		assert.Contains(t, result.Updates, "probe", "input %q", input)
	}
}

func TestNormalizeStringTrims(t *testing.T) {
	result := NormalizeString("clarify_question", "  Which OS are you on?  \n")
	assert.Equal(t, "Which OS are you on?", result.Updates["clarify_question"])
}
