package prompt

import (
	"testing"

	"github.com/inkwell-hq/inkwell/internal/domain"
	"github.com/stretchr/testify/assert"
)

var testBrief = domain.Brief{
	Recipients:  []string{"john.doe@company.com", "jane.smith@company.com"},
	Purpose:     "Schedule a team meeting for next week",
	Tone:        domain.ToneFriendly,
	Constraints: "Keep it short, mention the deadline",
}

func TestContextPrompt(t *testing.T) {
	p := ContextPrompt(testBrief)

	assert.Contains(t, p, "john.doe@company.com, jane.smith@company.com")
	assert.Contains(t, p, testBrief.Purpose)
	assert.Contains(t, p, "friendly")
	assert.Contains(t, p, testBrief.Constraints)
	// The context step must ask for the JSON contract keys verbatim.
	assert.Contains(t, p, `"purpose"`)
	assert.Contains(t, p, `"subject_suggestion"`)
	assert.Contains(t, p, `"constraints"`)
}

func TestContextPrompt_NoConstraints(t *testing.T) {
	brief := testBrief
	brief.Constraints = ""

	assert.Contains(t, ContextPrompt(brief), "Constraints: None")
}

func TestDraftPrompt(t *testing.T) {
	p := DraftPrompt(testBrief, `{"purpose": "rephrased"}`, "Team meeting next week")

	assert.Contains(t, p, `{"purpose": "rephrased"}`)
	assert.Contains(t, p, "Subject: Team meeting next week")
	assert.Contains(t, p, testBrief.Purpose)
	assert.Contains(t, p, "Maintain a friendly tone.")
	assert.Contains(t, p, "150 words")
	assert.Contains(t, p, "call-to-action")
	assert.Contains(t, p, "signature placeholder")
}

func TestRevisionPrompt(t *testing.T) {
	p := RevisionPrompt(testBrief, "Hi team, let's meet.", "Make it more formal and add a date")

	assert.Contains(t, p, "Original Draft: Hi team, let's meet.")
	assert.Contains(t, p, "User Feedback: Make it more formal and add a date")
	assert.Contains(t, p, testBrief.Purpose)
	assert.Contains(t, p, "friendly")
}

func TestPrompts_AreDeterministic(t *testing.T) {
	assert.Equal(t, ContextPrompt(testBrief), ContextPrompt(testBrief))
	assert.Equal(t, DraftPrompt(testBrief, "ctx", "subj"), DraftPrompt(testBrief, "ctx", "subj"))
	assert.Equal(t, RevisionPrompt(testBrief, "d", "f"), RevisionPrompt(testBrief, "d", "f"))
}
