package repair

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"json fence", "```json\n{\"agrees\": true}\n```", `{"agrees": true}`},
		{"bare fence", "```\n{\"agrees\": true}\n```", `{"agrees": true}`},
		{"single line", "```{\"agrees\": true}```", `{"agrees": true}`},
		{"prose around", "Here you go:\n```JSON\n{\"agrees\": false}\n```\nThanks", `{"agrees": false}`},
		{"no fence", "  {\"agrees\": true}  ", `{"agrees": true}`},
		{"unterminated", "```json\n{\"agrees\": true}", `{"agrees": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFence(tt.in))
		})
	}
}

func TestFindObject(t *testing.T) {
	got, ok := FindObject(`My assessment: {"note": {"x": 1}} then {"agrees": true, "reasoning": "fits {classic}"} done`)
	require.True(t, ok)
	assert.Equal(t, `{"agrees": true, "reasoning": "fits {classic}"}`, got)

	got, ok = FindObject(`{"agrees": true} trailing words`)
	require.True(t, ok)
	assert.Equal(t, `{"agrees": true}`, got)

	_, ok = FindObject("I am unable to assess this case.")
	assert.False(t, ok)

	_, ok = FindObject(`prose {"other": 1}`)
	assert.False(t, ok)
}

func TestRules(t *testing.T) {
	tests := []struct {
		rule, in, want string
	}{
		{"placeholder-bool", `{"agrees": true/false}`, `{"agrees": true}`},
		{"placeholder-bool", `{"agrees": True / False}`, `{"agrees": true}`},
		{"trailing-commas", `{"a": [1, 2,], "b": 1,}`, `{"a": [1, 2], "b": 1}`},
		{"single-quotes", `{'agrees': 'yes'}`, `{"agrees": "yes"}`},
		{"single-quotes", `{'reasoning': 'the patient's fever'}`, `{"reasoning": "the patient's fever"}`},
		{"single-quotes", `{'reasoning': 'a "quoted" word'}`, `{"reasoning": "a \"quoted\" word"}`},
		{"single-quotes", `{"reasoning": "it's fine"}`, `{"reasoning": "it's fine"}`},
		{"null-variants", `{"a": None, "b": NULL, "c": nil}`, `{"a": null, "b": null, "c": null}`},
		{"null-variants", `{"reasoning": "None of these"}`, `{"reasoning": "None of these"}`},
		{"python-bools", `{"a": True, "b": False}`, `{"a": true, "b": false}`},
		{"python-bools", `{"reasoning": "True story"}`, `{"reasoning": "True story"}`},
	}
	byName := map[string]Rule{}
	for _, r := range Rules {
		byName[r.Name] = r
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			rule, ok := byName[tt.rule]
			require.True(t, ok, "rule %q not in table", tt.rule)
			once := rule.Apply(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, rule.Apply(once), "rule must be idempotent")
		})
	}
}

func TestRulesOrder(t *testing.T) {
	var names []string
	for _, r := range Rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"placeholder-bool", "trailing-commas", "single-quotes", "null-variants", "python-bools"}, names)
}

func TestExtractOpinion(t *testing.T) {
	influenza := "Influenza"
	tests := []struct {
		name string
		in   string
		want Opinion
	}{
		{
			name: "placeholder single quotes trailing comma",
			in:   `{'agrees': true/false, 'confidence_adjustment': 0.1,}`,
			want: Opinion{Agrees: true, Delta: 0.1, Reasoning: DefaultReasoning},
		},
		{
			name: "fenced disagreement",
			in: "```json\n{\"agrees\": false, \"confidence_adjustment\": -0.1, " +
				"\"reasoning\": \"Symptoms suggest a viral infection.\", \"alternative_diagnosis\": \"Influenza\"}\n```",
			want: Opinion{Agrees: false, Delta: -0.1, Reasoning: "Symptoms suggest a viral infection.", Alternative: &influenza},
		},
		{
			name: "python literals and clamping",
			in:   `Answer: {'agrees': False, 'confidence_adjustment': 0.4, 'reasoning': 'The patient's fever is mild.', 'alternative_diagnosis': None}`,
			want: Opinion{Agrees: false, Delta: 0.15, Reasoning: "The patient's fever is mild."},
		},
		{
			name: "negative clamp",
			in:   `{"agrees": false, "confidence_adjustment": -2}`,
			want: Opinion{Agrees: false, Delta: -0.15, Reasoning: DefaultReasoning},
		},
		{
			name: "defaults",
			in:   `{"agrees": true}`,
			want: Opinion{Agrees: true, Reasoning: DefaultReasoning},
		},
		{
			name: "null string alternative",
			in:   `{"agrees": true, "confidence_adjustment": 0.05, "alternative_diagnosis": "null"}`,
			want: Opinion{Agrees: true, Delta: 0.05, Reasoning: DefaultReasoning},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractOpinion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Agrees, got.Agrees)
			assert.InDelta(t, tt.want.Delta, got.Delta, 1e-9)
			assert.Equal(t, tt.want.Reasoning, got.Reasoning)
			assert.Equal(t, tt.want.Alternative, got.Alternative)
		})
	}
}

func TestExtractOpinion_Failures(t *testing.T) {
	for name, in := range map[string]string{
		"no json":       "I'm sorry, I cannot provide medical advice.",
		"empty":         "",
		"broken":        `{"agrees": true, "reasoning": }`,
		"wrong type":    `{"agrees": "maybe"}`,
		"not an object": "```\njust text\n```",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractOpinion(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "want ErrParse, got %v", err)
		})
	}
}
